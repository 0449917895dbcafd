package domain

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

type SessionState string

const (
	StateDisconnected      SessionState = "disconnected"
	StateConnecting        SessionState = "connecting"
	StateConnected         SessionState = "connected"
	StateSwitching         SessionState = "switching"
	StateRefreshingBalance SessionState = "refreshing_balance"
)

type ActionKind string

const (
	ActionConnect ActionKind = "connecting"
	ActionSwitch  ActionKind = "switching"
	ActionRefresh ActionKind = "refreshing"
)

// Balance is a measurement in the chain's smallest unit, tagged with the
// chain it was taken on.
type Balance struct {
	Wei     *big.Int
	ChainID uint64
	Stale   bool
}

func (b *Balance) clone() *Balance {
	if b == nil {
		return nil
	}
	out := *b
	if b.Wei != nil {
		out.Wei = new(big.Int).Set(b.Wei)
	}
	return &out
}

// Session is the mutable record owned by the session manager. A zero
// ChainID means the chain is unknown.
type Session struct {
	Account *common.Address
	ChainID uint64
	Balance *Balance
	Pending map[ActionKind]struct{}
}

func (s Session) IsPending(kind ActionKind) bool {
	_, ok := s.Pending[kind]
	return ok
}

// State derives the state-machine position from the session contents.
func (s Session) State() SessionState {
	switch {
	case s.IsPending(ActionSwitch):
		return StateSwitching
	case s.IsPending(ActionConnect):
		return StateConnecting
	case s.Account == nil:
		return StateDisconnected
	case s.IsPending(ActionRefresh):
		return StateRefreshingBalance
	default:
		return StateConnected
	}
}

// MarkBalanceStale flags the current balance as no longer matching the chain.
func (s *Session) MarkBalanceStale() {
	if s.Balance != nil {
		s.Balance.Stale = true
	}
}

func (s Session) Snapshot() Snapshot {
	snapshot := Snapshot{
		State:   s.State(),
		ChainID: s.ChainID,
		Balance: s.Balance.clone(),
	}
	if s.Account != nil {
		account := *s.Account
		snapshot.Account = &account
	}
	if len(s.Pending) > 0 {
		snapshot.Pending = make([]ActionKind, 0, len(s.Pending))
		for kind := range s.Pending {
			snapshot.Pending = append(snapshot.Pending, kind)
		}
		sort.Slice(snapshot.Pending, func(i, j int) bool {
			return snapshot.Pending[i] < snapshot.Pending[j]
		})
	}

	return snapshot
}

// Snapshot is a read-only copy of a Session handed to readers.
type Snapshot struct {
	State   SessionState
	Account *common.Address
	ChainID uint64
	Balance *Balance
	Pending []ActionKind
}

// FreshBalance returns the balance only when it was measured on the chain the
// snapshot reports and has not been invalidated since.
func (s Snapshot) FreshBalance() (*big.Int, bool) {
	if s.Account == nil || s.Balance == nil || s.Balance.Wei == nil {
		return nil, false
	}
	if s.Balance.Stale || s.Balance.ChainID != s.ChainID {
		return nil, false
	}
	return new(big.Int).Set(s.Balance.Wei), true
}

// AccountDetails is the read-only result of inspecting the provider.
type AccountDetails struct {
	Account     *common.Address
	ChainID     uint64
	NetworkName string
}

func (d AccountDetails) Connected() bool {
	return d.Account != nil
}
