package ports

import (
	"context"

	"github.com/bnema/evm-wallet-cli/internal/domain"
)

type MintRecordRepository interface {
	GetByID(ctx context.Context, id domain.MintRecordID) (domain.MintRecord, error)
	List(ctx context.Context) ([]domain.MintRecord, error)
	Save(ctx context.Context, record domain.MintRecord) error
}

// Minter submits a mint transaction for tokenURI and returns once it is mined.
type Minter interface {
	Mint(ctx context.Context, tokenURI string) (txHash string, recipient string, err error)
}
