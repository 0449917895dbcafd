package ports

import (
	"context"

	"github.com/bnema/evm-wallet-cli/internal/domain"
)

// MintRecordStore is the client view of the mint-record service.
type MintRecordStore interface {
	Mint(ctx context.Context, tokenURI string) (domain.MintReceipt, error)
	List(ctx context.Context) ([]domain.MintRecord, error)
}
