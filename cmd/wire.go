package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/adapters/minter"
	"github.com/bnema/evm-wallet-cli/internal/adapters/mintapi"
	"github.com/bnema/evm-wallet-cli/internal/adapters/provider/bridge"
	"github.com/bnema/evm-wallet-cli/internal/adapters/provider/rpc"
	tomlrepo "github.com/bnema/evm-wallet-cli/internal/adapters/repo/toml"
	"github.com/bnema/evm-wallet-cli/internal/adapters/secrets"
	"github.com/bnema/evm-wallet-cli/internal/application"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/bnema/evm-wallet-cli/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"
)

type app struct {
	cfg     config
	catalog domain.ChainCatalog
	logger  log.Logger
	records *tomlrepo.Repository
	secrets ports.SecretResolver
	now     func() time.Time
}

func wireApp() (*app, error) {
	v := viper.New()
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	catalog, err := domain.NewChainCatalog(cfg.NetworkRPCs)
	if err != nil {
		return nil, fmt.Errorf("wire chain catalog: %w", err)
	}

	records, err := tomlrepo.NewRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire mint record repository: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	return &app{
		cfg:     cfg,
		catalog: catalog,
		logger:  logger,
		records: records,
		secrets: secrets.NewResolver(filepath.Join(homeDir, configDirName, "secrets")),
		now:     time.Now,
	}, nil
}

// walletProvider is a provider plus the func that releases it.
type walletProvider struct {
	ports.WalletProvider
	release func()
}

// openProvider connects to the configured wallet. For the bridge it serves
// the wallet page and waits for a browser to attach.
func (a *app) openProvider(ctx context.Context, status io.Writer) (walletProvider, error) {
	switch a.cfg.ProviderKind {
	case providerKindBridge:
		return a.openBridge(ctx, status)
	default:
		accounts := make([]common.Address, 0, len(a.cfg.Accounts))
		for _, raw := range a.cfg.Accounts {
			if !common.IsHexAddress(raw) {
				return walletProvider{}, fmt.Errorf("invalid address %q in %s", raw, keyProviderAccounts)
			}
			accounts = append(accounts, common.HexToAddress(raw))
		}

		p, err := rpc.Dial(ctx, a.cfg.ProviderURL,
			rpc.WithAccounts(accounts...),
			rpc.WithPollInterval(a.cfg.PollInterval),
			rpc.WithLogger(a.logger.New("provider", "rpc")),
		)
		if err != nil {
			return walletProvider{}, err
		}
		return walletProvider{WalletProvider: p, release: p.Close}, nil
	}
}

func (a *app) openBridge(ctx context.Context, status io.Writer) (walletProvider, error) {
	b := a.newBridge()
	r := chi.NewRouter()
	mountBridge(r, b)

	listener, err := net.Listen("tcp", a.cfg.BridgeListen)
	if err != nil {
		b.Close()
		return walletProvider{}, fmt.Errorf("listen on %s: %w", a.cfg.BridgeListen, err)
	}
	server := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Wallet bridge server stopped", "err", err)
		}
	}()

	release := func() {
		b.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}

	_, _ = fmt.Fprintf(status, "Open http://%s%s in a browser with a wallet extension.\n", listener.Addr(), bridge.PagePath)

	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.BridgeWait)
	defer cancel()
	if err := b.WaitForPeer(waitCtx); err != nil {
		release()
		return walletProvider{}, fmt.Errorf("%w: no wallet page attached: %w", domain.ErrProviderUnavailable, err)
	}

	return walletProvider{WalletProvider: b, release: release}, nil
}

func (a *app) newBridge() *bridge.Bridge {
	return bridge.New(
		bridge.WithRequestTimeout(a.cfg.RequestTimeout),
		bridge.WithLogger(a.logger.New("provider", "bridge")),
	)
}

func mountBridge(r chi.Router, b *bridge.Bridge) {
	r.Handle(bridge.SocketPath, b)
	r.Handle(bridge.PagePath, bridge.PageHandler())
}

// openSession starts a session manager over the configured provider. The
// returned func closes both.
func (a *app) openSession(ctx context.Context, status io.Writer, opts ...application.SessionOption) (*application.SessionManager, func(), error) {
	p, err := a.openProvider(ctx, status)
	if err != nil {
		return nil, nil, err
	}

	manager := application.NewSessionManager(p, a.catalog, a.logger.New("component", "session"), opts...)
	closeAll := func() {
		_ = manager.Close()
		p.release()
	}

	if _, err := manager.Start(ctx); err != nil {
		closeAll()
		return nil, nil, err
	}

	return manager, closeAll, nil
}

// mintStore returns the remote mint API client when mint.base_url is set and
// a local service otherwise.
func (a *app) mintStore(ctx context.Context) (ports.MintRecordStore, func(), error) {
	if a.cfg.MintBaseURL != "" {
		return mintapi.NewClient(a.cfg.MintBaseURL, nil), func() {}, nil
	}

	svc, release, err := a.localMintService(ctx)
	if err != nil {
		return nil, nil, err
	}
	return svc, release, nil
}

// localMintService signs with the configured key. Without an RPC URL or key
// the service can still list records but every mint fails.
func (a *app) localMintService(ctx context.Context) (*application.MintService, func(), error) {
	logger := a.logger.New("component", "mint")
	var signer ports.Minter = minter.Unconfigured{}
	release := func() {}

	if a.cfg.MintRPCURL != "" && a.cfg.MintContract != "" {
		rawKey, err := a.secrets.Resolve(ctx, a.cfg.MintKeyRef)
		switch {
		case errors.Is(err, domain.ErrSecretNotFound):
			logger.Warn("Mint signer key not found, minting disabled", "ref", a.cfg.MintKeyRef)
		case err != nil:
			return nil, nil, fmt.Errorf("resolve mint signer key: %w", err)
		default:
			key, err := minter.ParseKey(rawKey)
			if err != nil {
				return nil, nil, err
			}
			if !common.IsHexAddress(a.cfg.MintContract) {
				return nil, nil, fmt.Errorf("invalid %s %q", keyMintContract, a.cfg.MintContract)
			}
			m, err := minter.Dial(ctx, a.cfg.MintRPCURL, common.HexToAddress(a.cfg.MintContract), key, logger)
			if err != nil {
				return nil, nil, err
			}
			signer = m
			release = m.Close
		}
	}

	return application.NewMintService(signer, a.records, ports.SystemClock{}, logger), release, nil
}
