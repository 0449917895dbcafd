package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ew",
		Short:         "EVM wallet CLI (ew): connect a wallet, switch networks and mint NFTs",
		Long:          "ew (EVM wallet CLI) connects to a wallet over JSON-RPC or a browser bridge, tracks the account, network and balance, switches between known networks, and mints NFTs with a local record of every mint.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newNetworksCmd(app),
		newConnectCmd(app),
		newDisconnectCmd(app),
		newSwitchCmd(app),
		newBalanceCmd(app),
		newAccountCmd(app),
		newWatchCmd(app),
		newMintCmd(app),
		newNFTsCmd(app),
		newServeCmd(app),
	)

	return rootCmd
}
