package cmd

import (
	"fmt"

	sessionrender "github.com/bnema/evm-wallet-cli/internal/adapters/render/session"
	"github.com/spf13/cobra"
)

type networkOutput struct {
	Key      string   `json:"key"`
	ChainID  string   `json:"chainId"`
	Name     string   `json:"name"`
	Symbol   string   `json:"symbol"`
	Decimals uint8    `json:"decimals"`
	RPCURLs  []string `json:"rpcUrls"`
	Explorer []string `json:"blockExplorerUrls,omitempty"`
}

func newNetworksCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List the networks the wallet can switch to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				descriptors := app.catalog.List()
				out := make([]networkOutput, 0, len(descriptors))
				for _, descriptor := range descriptors {
					out = append(out, networkOutput{
						Key:      string(descriptor.Key),
						ChainID:  descriptor.HexChainID(),
						Name:     descriptor.ChainName,
						Symbol:   descriptor.NativeCurrency.Symbol,
						Decimals: descriptor.NativeCurrency.Decimals,
						RPCURLs:  descriptor.RPCURLs,
						Explorer: descriptor.BlockExplorerURLs,
					})
				}
				return writeJSON(cmd, out)
			}

			rendered, err := sessionrender.RenderNetworks(app.catalog, 0)
			if err != nil {
				return fmt.Errorf("render networks: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	cmd.Flags().Bool("json", false, "Output JSON")
	return cmd
}
