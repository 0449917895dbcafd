package sessionapi

import (
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SnapshotResponse is the wire form of a session snapshot.
type SnapshotResponse struct {
	State        string   `json:"state"`
	Account      string   `json:"account,omitempty"`
	ChainID      string   `json:"chainId,omitempty"`
	Network      string   `json:"network,omitempty"`
	BalanceWei   string   `json:"balanceWei,omitempty"`
	Balance      string   `json:"balance,omitempty"`
	BalanceFresh bool     `json:"balanceFresh"`
	Pending      []string `json:"pending,omitempty"`
}

type AccountResponse struct {
	Connected bool   `json:"connected"`
	Account   string `json:"account,omitempty"`
	ChainID   string `json:"chainId"`
	Network   string `json:"network"`
}

// NewSnapshotResponse converts a snapshot, naming the chain from catalog.
// A balance that no longer matches the chain is reported as not fresh.
func NewSnapshotResponse(snapshot domain.Snapshot, catalog domain.ChainCatalog) SnapshotResponse {
	out := SnapshotResponse{State: string(snapshot.State)}
	if snapshot.Account != nil {
		out.Account = snapshot.Account.Hex()
	}
	if snapshot.ChainID != 0 {
		out.ChainID = hexutil.EncodeUint64(snapshot.ChainID)
		out.Network = catalog.NetworkName(snapshot.ChainID)
	}
	if snapshot.Balance != nil && snapshot.Balance.Wei != nil {
		out.BalanceWei = snapshot.Balance.Wei.String()
		out.Balance = domain.FormatEther(snapshot.Balance.Wei)
	}
	_, out.BalanceFresh = snapshot.FreshBalance()
	for _, kind := range snapshot.Pending {
		out.Pending = append(out.Pending, string(kind))
	}
	return out
}

func NewAccountResponse(details domain.AccountDetails) AccountResponse {
	out := AccountResponse{
		Connected: details.Connected(),
		ChainID:   hexutil.EncodeUint64(details.ChainID),
		Network:   details.NetworkName,
	}
	if details.Account != nil {
		out.Account = details.Account.Hex()
	}
	return out
}
