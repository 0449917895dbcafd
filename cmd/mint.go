package cmd

import (
	"context"
	"fmt"
	"time"

	sessionrender "github.com/bnema/evm-wallet-cli/internal/adapters/render/session"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/spf13/cobra"
)

type mintOutput struct {
	Message string `json:"message"`
	TxHash  string `json:"txHash"`
}

func newMintCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint <token-uri>",
		Short: "Mint an NFT for the token URI and record it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			store, release, err := app.mintStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			var receipt domain.MintReceipt
			err = runSpinner(cmd.Context(), cmd.ErrOrStderr(), "Minting...", func(ctx context.Context) error {
				var mintErr error
				receipt, mintErr = store.Mint(ctx, args[0])
				return mintErr
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, mintOutput{Message: receipt.Message, TxHash: receipt.TxHash})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\ntx: %s\n", receipt.Message, receipt.TxHash)
			return err
		},
	}
	cmd.Flags().Bool("json", false, "Output JSON")
	return cmd
}

type recordOutput struct {
	ID        string `json:"id"`
	TokenURI  string `json:"tokenURI"`
	TxHash    string `json:"txHash"`
	Recipient string `json:"recipient,omitempty"`
	MintedAt  string `json:"mintedAt"`
}

func newNFTsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nfts",
		Short: "List minted NFTs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			store, release, err := app.mintStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				out := make([]recordOutput, 0, len(records))
				for _, record := range records {
					out = append(out, recordOutput{
						ID:        string(record.ID),
						TokenURI:  record.TokenURI,
						TxHash:    record.TxHash,
						Recipient: record.Recipient,
						MintedAt:  record.MintedAt.UTC().Format(time.RFC3339),
					})
				}
				return writeJSON(cmd, out)
			}

			rendered, err := sessionrender.RenderMints(records, app.now())
			if err != nil {
				return fmt.Errorf("render nfts: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	cmd.Flags().Bool("json", false, "Output JSON")
	return cmd
}
