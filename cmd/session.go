package cmd

import (
	"context"
	"fmt"

	sessionrender "github.com/bnema/evm-wallet-cli/internal/adapters/render/session"
	"github.com/bnema/evm-wallet-cli/internal/adapters/sessionapi"
	"github.com/bnema/evm-wallet-cli/internal/application"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/spf13/cobra"
)

// sessionAction runs fn against a started session and prints the snapshot
// it returns.
func sessionAction(app *app, label string, fn func(context.Context, *application.SessionManager) (domain.Snapshot, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		manager, closeSession, err := app.openSession(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeSession()

		var snapshot domain.Snapshot
		err = runSpinner(cmd.Context(), cmd.ErrOrStderr(), label, func(ctx context.Context) error {
			var actionErr error
			snapshot, actionErr = fn(ctx, manager)
			return actionErr
		})
		if err != nil {
			return err
		}

		return writeSnapshotOutput(cmd, app, snapshot, asJSON)
	}
}

func newConnectCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Request wallet accounts and show the session",
		Args:  cobra.NoArgs,
		RunE: sessionAction(app, "Waiting for the wallet...", func(ctx context.Context, m *application.SessionManager) (domain.Snapshot, error) {
			return m.Connect(ctx)
		}),
	}
	cmd.Flags().Bool("json", false, "Output JSON")
	return cmd
}

func newDisconnectCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the wallet account for this session",
		Long:  "disconnect clears the local session. The wallet keeps its own authorization.",
		Args:  cobra.NoArgs,
		RunE: sessionAction(app, "Disconnecting...", func(_ context.Context, m *application.SessionManager) (domain.Snapshot, error) {
			return m.Disconnect(), nil
		}),
	}
	cmd.Flags().Bool("json", false, "Output JSON")
	return cmd
}

func newSwitchCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "switch <network>",
		Short: "Add and switch the wallet to a known network",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			keys := make([]string, 0)
			for _, descriptor := range app.catalog.List() {
				keys = append(keys, string(descriptor.Key))
			}
			return keys, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			key := domain.NetworkKey(args[0])
			if _, err := app.catalog.Lookup(key); err != nil {
				return err
			}
			return sessionAction(app, fmt.Sprintf("Switching to %s...", key), func(ctx context.Context, m *application.SessionManager) (domain.Snapshot, error) {
				return m.SwitchChain(ctx, key)
			})(cmd, args)
		},
	}
	cmd.Flags().Bool("json", false, "Output JSON")
	return cmd
}

func newBalanceCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the native balance of the connected account",
		Args:  cobra.NoArgs,
		RunE: sessionAction(app, "Fetching balance...", func(ctx context.Context, m *application.SessionManager) (domain.Snapshot, error) {
			if m.Snapshot().Account == nil {
				return m.Snapshot(), fmt.Errorf("balance: %w", domain.ErrNoAccounts)
			}
			return m.RefreshBalance(ctx)
		}),
	}
	cmd.Flags().Bool("json", false, "Output JSON")
	return cmd
}

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show the account and network the wallet reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			manager, closeSession, err := app.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeSession()

			details, err := manager.InspectAccount(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, sessionapi.NewAccountResponse(details))
			}

			rendered, err := sessionrender.RenderAccount(details)
			if err != nil {
				return fmt.Errorf("render account: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	cmd.Flags().Bool("json", false, "Output JSON")
	return cmd
}

func newWatchCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the session live as the wallet changes account or network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			feed := application.NewSnapshotFeed()
			defer feed.Close()
			updates, cancel := feed.Subscribe()
			defer cancel()

			manager, closeSession, err := app.openSession(cmd.Context(), cmd.ErrOrStderr(), application.WithObserver(feed.Publish))
			if err != nil {
				return err
			}
			defer closeSession()

			return sessionrender.Watch(cmd.Context(), manager.Snapshot(), updates, app.catalog, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
