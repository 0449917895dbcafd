package cmd

import (
	"encoding/json"
	"fmt"

	sessionrender "github.com/bnema/evm-wallet-cli/internal/adapters/render/session"
	"github.com/bnema/evm-wallet-cli/internal/adapters/sessionapi"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/spf13/cobra"
)

func writeJSON(cmd *cobra.Command, payload interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func writeSnapshotOutput(cmd *cobra.Command, app *app, snapshot domain.Snapshot, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, sessionapi.NewSnapshotResponse(snapshot, app.catalog))
	}

	rendered, err := sessionrender.Render(snapshot, app.catalog)
	if err != nil {
		return fmt.Errorf("render session: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
