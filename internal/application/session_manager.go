package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/bnema/evm-wallet-cli/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
)

var ErrSessionClosed = errors.New("session manager closed")

type SessionOption func(*SessionManager)

// WithObserver registers fn to receive every committed snapshot. Observers are
// called one at a time and must not block.
func WithObserver(fn func(domain.Snapshot)) SessionOption {
	return func(m *SessionManager) {
		if fn != nil {
			m.observers = append(m.observers, fn)
		}
	}
}

// SessionManager owns the wallet session. The mutex only covers reads and
// commits of the session; provider round trips run unlocked and re-validate
// the generation before they write.
type SessionManager struct {
	provider  ports.WalletProvider
	catalog   domain.ChainCatalog
	logger    log.Logger
	observers []func(domain.Snapshot)

	mu         sync.Mutex
	session    domain.Session
	generation uint64
	owners     map[domain.ActionKind]uint64
	nextToken  uint64
	started    bool
	closed     bool

	subscription ports.Subscription
	tasks        sync.WaitGroup
	baseCtx      context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
	notifyMu     sync.Mutex
}

func NewSessionManager(provider ports.WalletProvider, catalog domain.ChainCatalog, logger log.Logger, opts ...SessionOption) *SessionManager {
	if logger == nil {
		logger = log.Root()
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	m := &SessionManager{
		provider: provider,
		catalog:  catalog,
		logger:   logger,
		owners:   map[domain.ActionKind]uint64{},
		baseCtx:  baseCtx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *SessionManager) Snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Snapshot()
}

// Start subscribes to chain changes and restores an already-authorized
// account without prompting. A failed listing is logged and leaves the
// session disconnected.
func (m *SessionManager) Start(ctx context.Context) (domain.Snapshot, error) {
	if m.provider == nil {
		return m.Snapshot(), fmt.Errorf("start session: %w", domain.ErrProviderUnavailable)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return m.Snapshot(), ErrSessionClosed
	}
	if m.started {
		snapshot := m.session.Snapshot()
		m.mu.Unlock()
		return snapshot, nil
	}
	m.started = true
	m.mu.Unlock()

	subscription, err := m.provider.SubscribeChainChanged(m.HandleChainChanged)
	if err != nil {
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
		m.logger.Error("Subscribe to chain changes failed", "err", err)
		return m.Snapshot(), fmt.Errorf("subscribe chain changes: %w", classifyProviderError(err))
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		subscription.Unsubscribe()
		return m.Snapshot(), ErrSessionClosed
	}
	m.subscription = subscription
	gen := m.generation
	m.mu.Unlock()

	accounts, err := m.provider.ListAccounts(ctx)
	if err != nil {
		m.logger.Warn("List authorized accounts failed", "err", err)
		return m.Snapshot(), nil
	}
	if len(accounts) == 0 {
		m.logger.Debug("No authorized accounts")
		return m.Snapshot(), nil
	}
	chainID, err := m.provider.GetChainID(ctx)
	if err != nil {
		m.logger.Warn("Read chain id failed", "err", err)
		return m.Snapshot(), nil
	}

	if !m.commitAccount(gen, accounts[0], chainID) {
		return m.Snapshot(), nil
	}
	m.logger.Info("Restored wallet session", "account", accounts[0], "chain", chainID)
	m.refreshAfterCommit(ctx)

	return m.Snapshot(), nil
}

// Connect prompts for accounts. A second call while one is pending returns the
// current snapshot without touching the provider.
func (m *SessionManager) Connect(ctx context.Context) (domain.Snapshot, error) {
	if m.provider == nil {
		return m.Snapshot(), fmt.Errorf("connect: %w", domain.ErrProviderUnavailable)
	}

	token, gen, ok := m.begin(domain.ActionConnect, false)
	if !ok {
		return m.Snapshot(), nil
	}

	accounts, err := m.provider.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = domain.ErrNoAccounts
	}
	var chainID uint64
	if err == nil {
		chainID, err = m.provider.GetChainID(ctx)
	}
	if err != nil {
		m.logger.Warn("Connect wallet failed", "err", err)
		m.resetAccount(domain.ActionConnect, token, gen)
		return m.Snapshot(), fmt.Errorf("connect: %w", classifyProviderError(err))
	}

	committed := m.commitAccount(gen, accounts[0], chainID)
	m.finish(domain.ActionConnect, token)
	if !committed {
		m.logger.Debug("Connect result superseded")
		return m.Snapshot(), nil
	}
	m.logger.Info("Wallet connected", "account", accounts[0], "chain", chainID)
	m.refreshAfterCommit(ctx)

	return m.Snapshot(), nil
}

// Disconnect resets the session to its initial state. The provider session
// is not revoked and results of in-flight actions are dropped. A connect or
// switch still waiting on the wallet keeps its pending slot until the wallet
// answers.
func (m *SessionManager) Disconnect() domain.Snapshot {
	m.mu.Lock()
	m.session = domain.Session{Pending: m.session.Pending}
	m.interruptLocked()
	m.mu.Unlock()

	m.logger.Info("Wallet disconnected")
	m.notify()

	return m.Snapshot()
}

// SwitchChain asks the provider to add and switch to the network named by key,
// then re-reads accounts and chain id. It requires a connected account and
// returns ErrNotConnected otherwise. On failure the prior account and chain
// are kept.
func (m *SessionManager) SwitchChain(ctx context.Context, key domain.NetworkKey) (domain.Snapshot, error) {
	descriptor, err := m.catalog.Lookup(key)
	if err != nil {
		return m.Snapshot(), fmt.Errorf("switch chain: %w", err)
	}
	if m.provider == nil {
		return m.Snapshot(), fmt.Errorf("switch chain: %w", domain.ErrProviderUnavailable)
	}

	if snapshot := m.Snapshot(); snapshot.Account == nil {
		return snapshot, fmt.Errorf("switch chain to %s: %w", key, domain.ErrNotConnected)
	}

	token, gen, ok := m.begin(domain.ActionSwitch, false)
	if !ok {
		return m.Snapshot(), nil
	}

	err = m.provider.RequestAddChain(ctx, descriptor)
	var accounts []common.Address
	if err == nil {
		accounts, err = m.provider.RequestAccounts(ctx)
	}
	if err == nil && len(accounts) == 0 {
		err = domain.ErrNoAccounts
	}
	var chainID uint64
	if err == nil {
		chainID, err = m.provider.GetChainID(ctx)
	}
	if err != nil {
		m.finish(domain.ActionSwitch, token)
		m.logger.Warn("Switch chain failed", "network", key, "err", err)
		return m.Snapshot(), fmt.Errorf("switch chain to %s: %w", key, classifyProviderError(err))
	}
	if chainID != descriptor.ChainID {
		m.logger.Warn("Provider reports a different chain after switch", "network", key, "want", descriptor.ChainID, "got", chainID)
	}

	committed := m.commitAccount(gen, accounts[0], chainID)
	m.finish(domain.ActionSwitch, token)
	if !committed {
		m.logger.Debug("Switch result superseded", "network", key)
		return m.Snapshot(), nil
	}
	m.logger.Info("Switched chain", "network", key, "chain", chainID)
	m.refreshAfterCommit(ctx)

	return m.Snapshot(), nil
}

// RefreshBalance fetches the balance of the current account. It is a no-op
// without an account or while another refresh is pending.
func (m *SessionManager) RefreshBalance(ctx context.Context) (domain.Snapshot, error) {
	if m.provider == nil {
		return m.Snapshot(), fmt.Errorf("refresh balance: %w", domain.ErrProviderUnavailable)
	}

	err := m.refresh(ctx, false)
	if errors.Is(err, domain.ErrStaleResult) {
		return m.Snapshot(), nil
	}
	if err != nil {
		return m.Snapshot(), fmt.Errorf("refresh balance: %w", classifyProviderError(err))
	}

	return m.Snapshot(), nil
}

// InspectAccount reads the current account and chain straight from the
// provider without modifying the session.
func (m *SessionManager) InspectAccount(ctx context.Context) (domain.AccountDetails, error) {
	if m.provider == nil {
		return domain.AccountDetails{}, fmt.Errorf("inspect account: %w", domain.ErrProviderUnavailable)
	}

	accounts, err := m.provider.ListAccounts(ctx)
	if err != nil {
		return domain.AccountDetails{}, fmt.Errorf("inspect account: %w", classifyProviderError(err))
	}
	chainID, err := m.provider.GetChainID(ctx)
	if err != nil {
		return domain.AccountDetails{}, fmt.Errorf("inspect account: %w", classifyProviderError(err))
	}

	details := domain.AccountDetails{
		ChainID:     chainID,
		NetworkName: m.catalog.NetworkName(chainID),
	}
	if len(accounts) > 0 {
		account := accounts[0]
		details.Account = &account
	}

	return details, nil
}

// HandleChainChanged is the provider callback. It supersedes the results of
// every in-flight action and re-resolves accounts for the announced chain in
// the background.
func (m *SessionManager) HandleChainChanged(chainIDHex string) {
	chainID, err := hexutil.DecodeUint64(chainIDHex)
	if err != nil {
		m.logger.Warn("Ignoring malformed chain id in event", "chain", chainIDHex, "err", err)
		chainID = 0
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if chainID != 0 && chainID != m.session.ChainID {
		m.session.ChainID = chainID
		m.session.MarkBalanceStale()
	}
	m.interruptLocked()
	gen := m.generation
	m.tasks.Add(1)
	m.mu.Unlock()

	m.logger.Info("Chain changed", "chain", chainIDHex)
	m.notify()

	go func() {
		defer m.tasks.Done()
		m.resolveAfterChainChange(m.baseCtx, gen, chainID)
	}()
}

// Close releases the chain-change subscription and waits for background work.
func (m *SessionManager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		subscription := m.subscription
		m.subscription = nil
		m.mu.Unlock()

		if subscription != nil {
			subscription.Unsubscribe()
		}
		m.cancel()
		m.tasks.Wait()
	})

	return nil
}

func (m *SessionManager) resolveAfterChainChange(ctx context.Context, gen uint64, announced uint64) {
	accounts, err := m.provider.ListAccounts(ctx)
	if err != nil {
		m.logger.Warn("Resolve accounts after chain change failed", "err", err)
		return
	}

	chainID := announced
	if chainID == 0 {
		chainID, err = m.provider.GetChainID(ctx)
		if err != nil {
			m.logger.Warn("Read chain id after chain change failed", "err", err)
			return
		}
	}

	if len(accounts) == 0 {
		m.mu.Lock()
		if m.generation == gen {
			m.session.Account = nil
			m.session.Balance = nil
			m.session.ChainID = chainID
		}
		m.mu.Unlock()
		m.notify()
		return
	}

	if !m.commitAccount(gen, accounts[0], chainID) {
		return
	}
	m.refreshAfterCommit(ctx)
}

// refreshAfterCommit runs the balance refresh owed after an account or chain
// commit. It takes the refresh slot from any older refresh, which is stale.
func (m *SessionManager) refreshAfterCommit(ctx context.Context) {
	if err := m.refresh(ctx, true); err != nil && !errors.Is(err, domain.ErrStaleResult) {
		m.logger.Warn("Balance refresh failed", "err", err)
	}
}

func (m *SessionManager) refresh(ctx context.Context, force bool) error {
	m.mu.Lock()
	if m.session.Account == nil {
		m.mu.Unlock()
		return nil
	}
	account := *m.session.Account
	m.mu.Unlock()

	token, gen, ok := m.begin(domain.ActionRefresh, force)
	if !ok {
		return nil
	}
	defer m.finish(domain.ActionRefresh, token)

	balance, err := m.fetchBalance(ctx, account)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.generation != gen || m.session.Account == nil || *m.session.Account != account {
		m.mu.Unlock()
		m.logger.Debug("Dropping balance from superseded session", "account", account, "chain", balance.ChainID)
		return domain.ErrStaleResult
	}
	if balance.ChainID != m.session.ChainID {
		m.logger.Info("Adopting chain reported by provider", "from", m.session.ChainID, "to", balance.ChainID)
		m.session.ChainID = balance.ChainID
		m.generation++
	}
	m.session.Balance = &balance
	m.mu.Unlock()

	m.logger.Debug("Balance updated", "account", account, "chain", balance.ChainID, "wei", balance.Wei)
	m.notify()

	return nil
}

// fetchBalance reads the chain id on both sides of the balance query and
// reports ErrStaleResult when they disagree.
func (m *SessionManager) fetchBalance(ctx context.Context, account common.Address) (domain.Balance, error) {
	before, err := m.provider.GetChainID(ctx)
	if err != nil {
		return domain.Balance{}, err
	}
	wei, err := m.provider.GetBalance(ctx, account)
	if err != nil {
		return domain.Balance{}, err
	}
	after, err := m.provider.GetChainID(ctx)
	if err != nil {
		return domain.Balance{}, err
	}
	if before != after {
		m.logger.Debug("Chain changed during balance fetch", "before", before, "after", after)
		return domain.Balance{}, domain.ErrStaleResult
	}

	return domain.Balance{Wei: wei, ChainID: after}, nil
}

// begin claims the pending slot for kind. With force the slot is taken over
// from an older holder.
func (m *SessionManager) begin(kind domain.ActionKind, force bool) (token uint64, gen uint64, ok bool) {
	m.mu.Lock()
	if m.session.IsPending(kind) && !force {
		m.mu.Unlock()
		return 0, 0, false
	}
	if m.session.Pending == nil {
		m.session.Pending = map[domain.ActionKind]struct{}{}
	}
	m.nextToken++
	token = m.nextToken
	m.owners[kind] = token
	m.session.Pending[kind] = struct{}{}
	gen = m.generation
	m.mu.Unlock()

	m.notify()
	return token, gen, true
}

func (m *SessionManager) finish(kind domain.ActionKind, token uint64) {
	m.mu.Lock()
	if m.owners[kind] != token {
		m.mu.Unlock()
		return
	}
	delete(m.owners, kind)
	delete(m.session.Pending, kind)
	m.mu.Unlock()

	m.notify()
}

// commitAccount writes account and chain when no newer event or disconnect
// happened since gen. A changed account or chain marks the balance stale.
func (m *SessionManager) commitAccount(gen uint64, account common.Address, chainID uint64) bool {
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return false
	}
	if m.session.Account == nil || *m.session.Account != account || m.session.ChainID != chainID {
		m.session.MarkBalanceStale()
	}
	m.session.Account = &account
	m.session.ChainID = chainID
	m.generation++
	m.mu.Unlock()

	m.notify()
	return true
}

func (m *SessionManager) resetAccount(kind domain.ActionKind, token uint64, gen uint64) {
	m.mu.Lock()
	if m.generation == gen {
		m.session.Account = nil
		m.session.Balance = nil
	}
	m.mu.Unlock()

	m.finish(kind, token)
}

// interruptLocked supersedes every in-flight action. Their results are
// dropped by the generation check. Connect and switch keep their slots until
// the wallet answers so it is never prompted twice; a superseded refresh is
// stale and gives up its slot. Caller holds mu.
func (m *SessionManager) interruptLocked() {
	m.generation++
	delete(m.owners, domain.ActionRefresh)
	delete(m.session.Pending, domain.ActionRefresh)
	if len(m.session.Pending) == 0 {
		m.session.Pending = nil
	}
}

func (m *SessionManager) notify() {
	if len(m.observers) == 0 {
		return
	}
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	snapshot := m.Snapshot()
	for _, observer := range m.observers {
		observer(snapshot)
	}
}
