package cmd

import (
	"fmt"

	"github.com/bnema/evm-wallet-cli/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ew build version",
		Long:  "version prints the ew build version, set at link time with -ldflags \"-X github.com/bnema/evm-wallet-cli/internal/version.Version=<v>\".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "ew %s\n", version.Version)
			return err
		},
	}
}
