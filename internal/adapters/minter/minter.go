// Package minter submits mintNFT transactions to the NFT contract.
package minter

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
)

// DefaultContract is the deployed NFT contract used when none is configured.
const DefaultContract = "0x126aA9e42d2fE23C0B5306844914f6DDf1bB63bC"

const mintMethod = "mintNFT"

// ContractABI covers the single method the minter calls.
const ContractABI = `[{"inputs":[{"internalType":"string","name":"tokenURI","type":"string"}],"name":"mintNFT","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}]`

var (
	ErrNotConfigured = errors.New("contract is not initialized")
	ErrReverted      = errors.New("mint transaction reverted")
)

// Backend is the chain access the minter needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

type Minter struct {
	backend  Backend
	contract *bind.BoundContract
	address  common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	logger   log.Logger
	close    func()
}

// ParseKey decodes a hex private key with or without the 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	return key, nil
}

// Dial connects to rpcURL and binds the contract at address.
func Dial(ctx context.Context, rpcURL string, address common.Address, key *ecdsa.PrivateKey, logger log.Logger) (*Minter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial mint rpc %s: %w", rpcURL, err)
	}
	m, err := New(client, address, key, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	m.close = client.Close
	return m, nil
}

func New(backend Backend, address common.Address, key *ecdsa.PrivateKey, logger log.Logger) (*Minter, error) {
	if key == nil {
		return nil, fmt.Errorf("signer key is required")
	}
	if logger == nil {
		logger = log.Root()
	}
	parsed, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	return &Minter{
		backend:  backend,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		address:  address,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		logger:   logger,
	}, nil
}

// Signer is the account that pays for and receives each mint.
func (m *Minter) Signer() common.Address {
	return m.from
}

// Mint sends mintNFT(tokenURI) and waits for it to be mined.
func (m *Minter) Mint(ctx context.Context, tokenURI string) (string, string, error) {
	chainID, err := m.backend.ChainID(ctx)
	if err != nil {
		return "", "", fmt.Errorf("read chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(m.key, chainID)
	if err != nil {
		return "", "", fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := m.contract.Transact(opts, mintMethod, tokenURI)
	if err != nil {
		return "", "", fmt.Errorf("send %s: %w", mintMethod, err)
	}
	m.logger.Info("Submitted mint transaction", "tx", tx.Hash(), "contract", m.address, "chain", chainID)

	receipt, err := bind.WaitMined(ctx, m.backend, tx)
	if err != nil {
		return "", "", fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", "", fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}

	return tx.Hash().Hex(), m.from.Hex(), nil
}

func (m *Minter) Close() {
	if m.close != nil {
		m.close()
	}
}

// Unconfigured fails every mint. It stands in when no contract or key is
// configured so the record listing still works.
type Unconfigured struct{}

func (Unconfigured) Mint(context.Context, string) (string, string, error) {
	return "", "", ErrNotConfigured
}
