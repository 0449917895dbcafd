package rpc

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/adapters/provider/rpc/rpctest"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/bnema/evm-wallet-cli/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var account = common.HexToAddress("0x2000000000000000000000000000000000000002")

func newNode(t *testing.T, chainID uint64, accounts ...common.Address) *rpctest.Node {
	t.Helper()

	node := rpctest.NewNode(chainID, accounts...)
	t.Cleanup(node.Close)
	return node
}

func dial(t *testing.T, url string, opts ...Option) *Provider {
	t.Helper()

	opts = append([]Option{WithLogger(log.NewLogger(log.DiscardHandler()))}, opts...)
	p, err := Dial(context.Background(), url, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestProviderReadsAccountsBalanceAndChain(t *testing.T) {
	t.Parallel()

	node := newNode(t, 56, account)
	node.SetBalance(56, big.NewInt(42_000))
	p := dial(t, node.URL())
	ctx := context.Background()

	accounts, err := p.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{account}, accounts)

	accounts, err = p.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{account}, accounts)
	assert.Equal(t, 1, node.Calls("eth_requestAccounts"))

	chainID, err := p.GetChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(56), chainID)

	balance, err := p.GetBalance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(42_000), balance.Int64())
}

func TestProviderRequestAccountsFallsBackOnPlainNode(t *testing.T) {
	t.Parallel()

	node := newNode(t, 1, account)
	node.DisableWallet()
	p := dial(t, node.URL())

	accounts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{account}, accounts)
	assert.Equal(t, 1, node.Calls("eth_accounts"))
}

func TestProviderWatchAccountsSkipNode(t *testing.T) {
	t.Parallel()

	node := newNode(t, 1)
	p := dial(t, node.URL(), WithAccounts(account))

	accounts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{account}, accounts)
	assert.Equal(t, 0, node.Calls("eth_requestAccounts"))
	assert.Equal(t, 0, node.Calls("eth_accounts"))
}

func TestProviderRequestAddChainUsesWalletMethod(t *testing.T) {
	t.Parallel()

	node := newNode(t, 1, account)
	p := dial(t, node.URL())

	sepolia, err := domain.DefaultChainCatalog().Lookup(domain.NetworkSepoliaTestnet)
	require.NoError(t, err)
	require.NoError(t, p.RequestAddChain(context.Background(), sepolia))

	assert.Equal(t, uint64(11155111), node.ChainID())
	assert.Equal(t, node.URL(), p.Endpoint())
}

func TestProviderRequestAddChainSurfacesProviderCode(t *testing.T) {
	t.Parallel()

	node := newNode(t, 1, account)
	node.FailAddChain(4001, "User rejected the request.")
	p := dial(t, node.URL())

	bsc, err := domain.DefaultChainCatalog().Lookup(domain.NetworkBinanceMainnet)
	require.NoError(t, err)
	err = p.RequestAddChain(context.Background(), bsc)

	var coded ports.CodedError
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, 4001, coded.ErrorCode())
	assert.Equal(t, uint64(1), node.ChainID())
}

func TestProviderRequestAddChainSwitchesEndpointOnPlainNode(t *testing.T) {
	t.Parallel()

	mainnet := newNode(t, 1, account)
	mainnet.DisableWallet()
	bsc := newNode(t, 56, account)
	bsc.SetBalance(56, big.NewInt(7))

	catalog, err := domain.NewChainCatalog(map[domain.NetworkKey][]string{
		domain.NetworkBinanceMainnet: {"http://127.0.0.1:1", bsc.URL()},
	})
	require.NoError(t, err)
	descriptor, err := catalog.Lookup(domain.NetworkBinanceMainnet)
	require.NoError(t, err)

	p := dial(t, mainnet.URL())
	require.NoError(t, p.RequestAddChain(context.Background(), descriptor))
	assert.Equal(t, bsc.URL(), p.Endpoint())

	chainID, err := p.GetChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(56), chainID)
}

func TestProviderRequestAddChainRejectsEndpointOnWrongChain(t *testing.T) {
	t.Parallel()

	mainnet := newNode(t, 1, account)
	mainnet.DisableWallet()
	impostor := newNode(t, 97, account)

	catalog, err := domain.NewChainCatalog(map[domain.NetworkKey][]string{
		domain.NetworkBinanceMainnet: {impostor.URL()},
	})
	require.NoError(t, err)
	descriptor, err := catalog.Lookup(domain.NetworkBinanceMainnet)
	require.NoError(t, err)

	p := dial(t, mainnet.URL())
	err = p.RequestAddChain(context.Background(), descriptor)
	require.Error(t, err)
	assert.ErrorContains(t, err, "reports chain 97, want 56")
	assert.Equal(t, mainnet.URL(), p.Endpoint())
}

func TestProviderPollsChainChanges(t *testing.T) {
	t.Parallel()

	node := newNode(t, 1, account)
	p := dial(t, node.URL(), WithPollInterval(5*time.Millisecond))

	var mu sync.Mutex
	var events []string
	sub, err := p.SubscribeChainChanged(func(chainIDHex string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, chainIDHex)
	})
	require.NoError(t, err)

	node.SetChainID(56)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1 && events[0] == "0x38"
	}, 2*time.Second, time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()

	node.SetChainID(97)
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"0x38"}, events)
}

func TestProviderClosedReportsUnavailable(t *testing.T) {
	t.Parallel()

	node := newNode(t, 1, account)
	p := dial(t, node.URL())
	p.Close()

	_, err := p.GetChainID(context.Background())
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
}
