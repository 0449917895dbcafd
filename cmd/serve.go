package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/adapters/mintapi"
	"github.com/bnema/evm-wallet-cli/internal/adapters/provider/bridge"
	"github.com/bnema/evm-wallet-cli/internal/adapters/sessionapi"
	"github.com/bnema/evm-wallet-cli/internal/application"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type serverDeps struct {
	mint    mintapi.Service
	session sessionapi.Manager
	feed    sessionapi.Feed
	catalog domain.ChainCatalog
	bridge  *bridge.Bridge
}

// newServerRouter wires the mint and session APIs under /api. The wallet
// bridge is mounted when present.
func newServerRouter(app *app, deps serverDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if deps.bridge != nil {
		mountBridge(r, deps.bridge)
	}

	r.Route("/api", func(api chi.Router) {
		mintapi.NewHandler(deps.mint, app.logger.New("component", "mintapi")).RegisterRoutes(api)
		if deps.session != nil {
			sessionapi.NewHandler(deps.session, deps.catalog, deps.feed, app.logger.New("component", "sessionapi")).RegisterRoutes(api)
		}
	})

	return r
}

func newServeCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mint and session HTTP APIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listen, _ := cmd.Flags().GetString("listen")
			if listen == "" {
				listen = app.cfg.ServerListen
			}
			ctx := cmd.Context()

			mintSvc, releaseMint, err := app.localMintService(ctx)
			if err != nil {
				return err
			}
			defer releaseMint()

			deps := serverDeps{mint: mintSvc, catalog: app.catalog}
			feed := application.NewSnapshotFeed()
			defer feed.Close()

			var manager *application.SessionManager
			switch app.cfg.ProviderKind {
			case providerKindBridge:
				deps.bridge = app.newBridge()
				defer deps.bridge.Close()
				manager = application.NewSessionManager(deps.bridge, app.catalog, app.logger.New("component", "session"), application.WithObserver(feed.Publish))
				go startWhenAttached(ctx, app, deps.bridge, manager)
			default:
				p, err := app.openProvider(ctx, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer p.release()
				manager = application.NewSessionManager(p, app.catalog, app.logger.New("component", "session"), application.WithObserver(feed.Publish))
				if _, err := manager.Start(ctx); err != nil {
					app.logger.Warn("Wallet session not started", "err", err)
				}
			}
			defer func() { _ = manager.Close() }()
			deps.session = manager
			deps.feed = feed

			listener, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", listen, err)
			}
			server := &http.Server{Handler: newServerRouter(app, deps), ReadHeaderTimeout: 10 * time.Second}

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Serving on http://%s\n", listener.Addr())
			app.logger.Info("Server listening", "addr", listener.Addr(), "provider", app.cfg.ProviderKind)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Serve(listener)
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			feed.Close()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("listen", "", "Listen address (default from server.listen)")
	return cmd
}

// startWhenAttached restores the session once a wallet page connects.
func startWhenAttached(ctx context.Context, app *app, b *bridge.Bridge, manager *application.SessionManager) {
	if err := b.WaitForPeer(ctx); err != nil {
		return
	}
	if _, err := manager.Start(ctx); err != nil {
		app.logger.Warn("Wallet session not started", "err", err)
	}
}
