package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/evm-wallet-cli/internal/adapters/mintapi"
	"github.com/bnema/evm-wallet-cli/internal/adapters/provider/rpc/rpctest"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var walletAccount = common.HexToAddress("0x5000000000000000000000000000000000000005")

func TestVersionPrintsBuildVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "ew dev\n", stdout)
}

func TestNetworksListsCatalog(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "networks")
	require.NoError(t, err)
	assert.Contains(t, stdout, "networks: 4")
	assert.Contains(t, stdout, "sepolia-testnet")
	assert.Contains(t, stdout, "Binance Smart Chain Mainnet")
}

func TestNetworksJSONAppliesConfiguredRPCURLs(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, `
[networks.sepolia-testnet]
rpc_urls = ["https://sepolia.example.org"]
`))

	stdout, _, err := executeCLI(t, home, "networks", "--json")
	require.NoError(t, err)

	var networks []networkOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &networks))
	require.Len(t, networks, 4)
	assert.Equal(t, "sepolia-testnet", networks[3].Key)
	assert.Equal(t, "0xaa36a7", networks[3].ChainID)
	assert.Equal(t, []string{"https://sepolia.example.org"}, networks[3].RPCURLs)
}

func TestUnknownNetworkOverrideFailsWiring(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, `
[networks.not-a-real-network]
rpc_urls = ["https://example.org"]
`))

	_, _, err := executeCLI(t, home, "networks")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidNetwork)
}

func TestUnsupportedProviderKindFailsWiring(t *testing.T) {
	t.Setenv("EW_PROVIDER_KIND", "carrier-pigeon")

	_, _, err := executeCLI(t, t.TempDir(), "networks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider.kind")
}

func TestConnectShowsAccountAndBalance(t *testing.T) {
	node := walletNode(t, 1)
	node.SetBalance(1, ether(2.5))

	stdout, _, err := executeCLI(t, t.TempDir(), "connect")
	require.NoError(t, err)
	assert.Contains(t, stdout, "connected")
	assert.Contains(t, stdout, walletAccount.Hex())
	assert.Contains(t, stdout, "Ethereum Mainnet (0x1)")
	assert.Contains(t, stdout, "2.5 ETH")
	assert.Equal(t, 1, node.Calls("eth_requestAccounts"))
}

func TestConnectJSONOutput(t *testing.T) {
	node := walletNode(t, 56)
	node.SetBalance(56, big.NewInt(42))

	stdout, _, err := executeCLI(t, t.TempDir(), "connect", "--json")
	require.NoError(t, err)

	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &snapshot))
	assert.Equal(t, "connected", snapshot["state"])
	assert.Equal(t, "0x38", snapshot["chainId"])
	assert.Equal(t, "42", snapshot["balanceWei"])
	assert.Equal(t, true, snapshot["balanceFresh"])
}

func TestConnectRejectedByUser(t *testing.T) {
	node := walletNode(t, 1)
	node.FailRequestAccounts(4001, "User rejected the request.")

	_, _, err := executeCLI(t, t.TempDir(), "connect")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUserRejected)
}

func TestSwitchToSepoliaKeepsAccount(t *testing.T) {
	node := walletNode(t, 1)
	node.SetBalance(11155111, ether(0.25))

	stdout, _, err := executeCLI(t, t.TempDir(), "switch", "sepolia-testnet")
	require.NoError(t, err)
	assert.Contains(t, stdout, walletAccount.Hex())
	assert.Contains(t, stdout, "Sepolia Testnet (0xaa36a7)")
	assert.Contains(t, stdout, "0.25 SepETH")
	assert.Equal(t, uint64(11155111), node.ChainID())
}

func TestSwitchUnknownNetworkMakesNoProviderCalls(t *testing.T) {
	node := walletNode(t, 1)

	_, _, err := executeCLI(t, t.TempDir(), "switch", "not-a-real-network")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidNetwork)
	assert.Zero(t, node.Calls("eth_chainId"))
	assert.Zero(t, node.Calls("wallet_addEthereumChain"))
}

func TestSwitchRejectedKeepsChain(t *testing.T) {
	node := walletNode(t, 1)
	node.FailAddChain(4001, "User rejected the request.")

	_, _, err := executeCLI(t, t.TempDir(), "switch", "binance-testnet")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUserRejected)
	assert.Equal(t, uint64(1), node.ChainID())
}

func TestBalanceRequiresAccount(t *testing.T) {
	walletNode(t, 1).SetAccounts()

	_, _, err := executeCLI(t, t.TempDir(), "balance")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestBalanceShowsFreshAmount(t *testing.T) {
	node := walletNode(t, 97)
	node.SetBalance(97, ether(3))

	stdout, _, err := executeCLI(t, t.TempDir(), "balance")
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 BNB")
}

func TestDisconnectShowsInitialState(t *testing.T) {
	walletNode(t, 1)

	stdout, _, err := executeCLI(t, t.TempDir(), "disconnect", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"disconnected","balanceFresh":false}`, stdout)
}

func TestAccountShowsWalletView(t *testing.T) {
	walletNode(t, 11155111)

	stdout, _, err := executeCLI(t, t.TempDir(), "account")
	require.NoError(t, err)
	assert.Contains(t, stdout, walletAccount.Hex())
	assert.Contains(t, stdout, "Sepolia Testnet (0xaa36a7)")

	stdout, _, err = executeCLI(t, t.TempDir(), "account", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"connected": true`)
}

func TestUnreachableProviderIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	t.Setenv("EW_PROVIDER_URL", url)

	_, _, err := executeCLI(t, t.TempDir(), "connect")
	require.Error(t, err)
	assert.True(t, errorIsAny(err, domain.ErrProviderUnavailable, domain.ErrNetwork), "got %v", err)
}

func TestNFTsEmptyList(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "nfts")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No NFTs minted yet.")
}

func TestNFTsListsRecordedMints(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeMintsFixture(home))

	stdout, _, err := executeCLI(t, home, "nfts", "--json")
	require.NoError(t, err)

	var records []recordOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "rec-2", records[0].ID, "newest first")
	assert.Equal(t, "ipfs://second", records[0].TokenURI)
	assert.Equal(t, "2026-03-02T10:00:00Z", records[0].MintedAt)
	assert.Equal(t, "rec-1", records[1].ID)
}

func TestMintWithoutSignerFails(t *testing.T) {
	t.Setenv("EW_MINT_RPC_URL", "")

	_, _, err := executeCLI(t, t.TempDir(), "mint", "ipfs://token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract is not initialized")
}

func TestMintBlankTokenURIFails(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "mint", "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTokenURIRequired)
}

func TestMintAndListThroughRemoteAPI(t *testing.T) {
	svc := &stubMintService{receipt: domain.MintReceipt{Message: "NFT Minted and saved to DB!", TxHash: "0xfeed"}}
	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		mintapi.NewHandler(svc, log.NewLogger(log.DiscardHandler())).RegisterRoutes(api)
	})
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	t.Setenv("EW_MINT_BASE_URL", server.URL+"/api")

	stdout, _, err := executeCLI(t, t.TempDir(), "mint", "ipfs://remote", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"NFT Minted and saved to DB!","txHash":"0xfeed"}`, stdout)
	assert.Equal(t, []string{"ipfs://remote"}, svc.minted)

	stdout, _, err = executeCLI(t, t.TempDir(), "nfts")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ipfs://remote")
}

func TestServerRouterServesAPIsAndBridgePage(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	app, err := wireApp()
	require.NoError(t, err)

	svc := &stubMintService{}
	handler := newServerRouter(app, serverDeps{mint: svc, catalog: app.catalog, bridge: app.newBridge()})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/nfts", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/mint", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.JSONEq(t, `{"error":"tokenURI is required"}`, resp.Body.String())

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/wallet", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "window.ethereum")

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code, "session routes need a manager")
}

type stubMintService struct {
	receipt domain.MintReceipt
	minted  []string
}

func (s *stubMintService) Mint(_ context.Context, tokenURI string) (domain.MintReceipt, error) {
	normalized, err := domain.NormalizeTokenURI(tokenURI)
	if err != nil {
		return domain.MintReceipt{}, err
	}
	s.minted = append(s.minted, normalized)
	return s.receipt, nil
}

func (s *stubMintService) List(context.Context) ([]domain.MintRecord, error) {
	records := make([]domain.MintRecord, 0, len(s.minted))
	for _, uri := range s.minted {
		records = append(records, domain.MintRecord{ID: domain.MintRecordID(uri), TokenURI: uri, TxHash: s.receipt.TxHash})
	}
	return records, nil
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// walletNode starts a JSON-RPC wallet holding walletAccount and points the
// CLI at it.
func walletNode(t *testing.T, chainID uint64) *rpctest.Node {
	t.Helper()

	node := rpctest.NewNode(chainID, walletAccount)
	t.Cleanup(node.Close)
	t.Setenv("EW_PROVIDER_URL", node.URL())
	return node
}

func ether(amount float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(amount), big.NewFloat(1e18)).Int(nil)
	return wei
}

func errorIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeConfigFixture(home, body string) error {
	configDir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(configDir, configFileName), []byte(body), 0o600)
}

func writeMintsFixture(home string) error {
	configDir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	mints := `version = 1

[[mints]]
id = "rec-1"
token_uri = "ipfs://first"
tx_hash = "0x01"
minted_at = "2026-03-01T10:00:00Z"

[[mints]]
id = "rec-2"
token_uri = "ipfs://second"
tx_hash = "0x02"
recipient = "0x5000000000000000000000000000000000000005"
minted_at = "2026-03-02T10:00:00Z"
`

	return os.WriteFile(filepath.Join(configDir, "mints.toml"), []byte(mints), 0o600)
}
