package ports

import (
	"context"
	"math/big"

	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// WalletProvider is the injected wallet. Every call is a round trip that may
// suspend and may fail with an EIP-1193 coded error.
type WalletProvider interface {
	// ListAccounts returns the accounts already authorized, without prompting.
	ListAccounts(ctx context.Context) ([]common.Address, error)
	// RequestAccounts prompts the user for authorization when needed.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	GetBalance(ctx context.Context, account common.Address) (*big.Int, error)
	GetChainID(ctx context.Context) (uint64, error)
	RequestAddChain(ctx context.Context, chain domain.ChainDescriptor) error
	SubscribeChainChanged(handler func(chainIDHex string)) (Subscription, error)
}

type Subscription interface {
	Unsubscribe()
}

// CodedError is implemented by provider errors that carry an EIP-1193 or
// JSON-RPC error code.
type CodedError interface {
	error
	ErrorCode() int
}
