package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/bnema/evm-wallet-cli/internal/ports"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
)

const MintSuccessMessage = "NFT Minted and saved to DB!"

type MintService struct {
	minter  ports.Minter
	records ports.MintRecordRepository
	clock   ports.Clock
	logger  log.Logger
	newID   func() domain.MintRecordID
}

func NewMintService(minter ports.Minter, records ports.MintRecordRepository, clock ports.Clock, logger log.Logger) *MintService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = log.Root()
	}

	return &MintService{
		minter:  minter,
		records: records,
		clock:   clock,
		logger:  logger,
		newID: func() domain.MintRecordID {
			return domain.MintRecordID(uuid.NewString())
		},
	}
}

// Mint submits the mint transaction and records it once mined.
func (s *MintService) Mint(ctx context.Context, tokenURI string) (domain.MintReceipt, error) {
	tokenURI, err := domain.NormalizeTokenURI(tokenURI)
	if err != nil {
		return domain.MintReceipt{}, err
	}

	txHash, recipient, err := s.minter.Mint(ctx, tokenURI)
	if err != nil {
		s.logger.Error("Mint transaction failed", "tokenURI", tokenURI, "err", err)
		return domain.MintReceipt{}, fmt.Errorf("mint token: %w", err)
	}

	record := domain.MintRecord{
		ID:        s.newID(),
		TokenURI:  tokenURI,
		TxHash:    txHash,
		Recipient: recipient,
		MintedAt:  s.clock.Now(),
	}
	if err := s.records.Save(ctx, record); err != nil {
		s.logger.Error("Saving mint record failed", "tx", txHash, "err", err)
		return domain.MintReceipt{}, fmt.Errorf("save mint record: %w", err)
	}
	s.logger.Info("Minted token", "id", record.ID, "tx", txHash, "recipient", recipient)

	return domain.MintReceipt{Message: MintSuccessMessage, TxHash: txHash}, nil
}

// List returns the recorded mints, newest first.
func (s *MintService) List(ctx context.Context) ([]domain.MintRecord, error) {
	records, err := s.records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mint records: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].MintedAt.After(records[j].MintedAt)
	})

	return records, nil
}
