package application

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/bnema/evm-wallet-cli/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/mock"
)

var testAccount = common.HexToAddress("0x1000000000000000000000000000000000000001")

func testLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type providerRPCError struct {
	code    int
	message string
}

func (e providerRPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.code, e.message)
}

func (e providerRPCError) ErrorCode() int {
	return e.code
}

// mockWalletProvider is a testify mock used where exact call counts matter.
type mockWalletProvider struct {
	mock.Mock
}

func (m *mockWalletProvider) ListAccounts(ctx context.Context) ([]common.Address, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]common.Address)
	return accounts, args.Error(1)
}

func (m *mockWalletProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]common.Address)
	return accounts, args.Error(1)
}

func (m *mockWalletProvider) GetBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	args := m.Called(ctx, account)
	balance, _ := args.Get(0).(*big.Int)
	return balance, args.Error(1)
}

func (m *mockWalletProvider) GetChainID(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	chainID, _ := args.Get(0).(uint64)
	return chainID, args.Error(1)
}

func (m *mockWalletProvider) RequestAddChain(ctx context.Context, chain domain.ChainDescriptor) error {
	args := m.Called(ctx, chain)
	return args.Error(0)
}

func (m *mockWalletProvider) SubscribeChainChanged(handler func(string)) (ports.Subscription, error) {
	args := m.Called(handler)
	subscription, _ := args.Get(0).(ports.Subscription)
	return subscription, args.Error(1)
}

// fakeProvider is a scripted wallet that keeps one balance per chain, so a
// balance read under the wrong chain is detectable.
type fakeProvider struct {
	mu       sync.Mutex
	chainID  uint64
	accounts []common.Address
	balances map[uint64]*big.Int

	requestAccountsErr error
	addChainErr        error
	chainIDErr         error

	beforeBalance         func()
	beforeRequestAccounts func()

	handler     func(string)
	subscribes  atomic.Int32
	unsubscribe atomic.Int32

	requestAccountsCalls atomic.Int32
	balanceCalls         map[uint64]int
}

func newFakeProvider(chainID uint64, accounts ...common.Address) *fakeProvider {
	return &fakeProvider{
		chainID:  chainID,
		accounts: accounts,
		balances: map[uint64]*big.Int{
			1:        big.NewInt(1_000),
			56:       big.NewInt(56_000),
			97:       big.NewInt(97_000),
			11155111: big.NewInt(11_155_111),
		},
		balanceCalls: map[uint64]int{},
	}
}

func (f *fakeProvider) ListAccounts(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.Address(nil), f.accounts...), nil
}

func (f *fakeProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	f.requestAccountsCalls.Add(1)
	f.mu.Lock()
	hook := f.beforeRequestAccounts
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requestAccountsErr != nil {
		return nil, f.requestAccountsErr
	}
	return append([]common.Address(nil), f.accounts...), nil
}

func (f *fakeProvider) GetBalance(context.Context, common.Address) (*big.Int, error) {
	f.mu.Lock()
	measuredOn := f.chainID
	value := new(big.Int).Set(f.balances[measuredOn])
	f.balanceCalls[measuredOn]++
	hook := f.beforeBalance
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return value, nil
}

func (f *fakeProvider) GetChainID(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chainIDErr != nil {
		return 0, f.chainIDErr
	}
	return f.chainID, nil
}

func (f *fakeProvider) RequestAddChain(_ context.Context, chain domain.ChainDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addChainErr != nil {
		return f.addChainErr
	}
	f.chainID = chain.ChainID
	return nil
}

func (f *fakeProvider) SubscribeChainChanged(handler func(string)) (ports.Subscription, error) {
	f.subscribes.Add(1)
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	return fakeSubscription{provider: f}, nil
}

// switchTo changes the wallet chain and fires the event like a wallet would.
func (f *fakeProvider) switchTo(chainID uint64) {
	f.mu.Lock()
	f.chainID = chainID
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(fmt.Sprintf("0x%x", chainID))
	}
}

// setChainSilently changes the wallet chain without emitting an event.
func (f *fakeProvider) setChainSilently(chainID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainID = chainID
}

func (f *fakeProvider) setChainIDErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainIDErr = err
}

func (f *fakeProvider) setBeforeBalance(hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeBalance = hook
}

func (f *fakeProvider) setBeforeRequestAccounts(hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeRequestAccounts = hook
}

func (f *fakeProvider) balanceCallsOn(chainID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balanceCalls[chainID]
}

func (f *fakeProvider) balanceOn(chainID uint64) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balances[chainID])
}

type fakeSubscription struct {
	provider *fakeProvider
}

func (s fakeSubscription) Unsubscribe() {
	s.provider.unsubscribe.Add(1)
	s.provider.mu.Lock()
	s.provider.handler = nil
	s.provider.mu.Unlock()
}

type countingSubscription struct {
	calls atomic.Int32
}

func (s *countingSubscription) Unsubscribe() {
	s.calls.Add(1)
}
