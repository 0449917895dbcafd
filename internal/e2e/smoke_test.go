package e2e

import (
	"bytes"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/bnema/evm-wallet-cli/internal/adapters/provider/rpc/rpctest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	account := common.HexToAddress("0x6000000000000000000000000000000000000006")
	node := rpctest.NewNode(1, account)
	t.Cleanup(node.Close)
	node.SetBalance(56, big.NewInt(7_000_000_000_000_000_000))
	env := []string{"EW_PROVIDER_URL=" + node.URL()}

	stdout, stderr, err := runEW(t, binaryPath, home, env, "connect")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, account.Hex())

	stdout, stderr, err = runEW(t, binaryPath, home, env, "switch", "binance-mainnet")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Binance Smart Chain Mainnet (0x38)")
	assert.Contains(t, stdout, "7 BNB")

	stdout, stderr, err = runEW(t, binaryPath, home, env, "nfts")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "No NFTs minted yet.")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "ew-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/ew")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build ew binary: %s", string(output))
	return binaryPath
}

func runEW(t *testing.T, binaryPath, home string, env []string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Dir = home
	cmd.Env = append(append(os.Environ(), "HOME="+home), env...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
