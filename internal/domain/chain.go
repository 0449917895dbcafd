package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type NetworkKey string

const (
	NetworkEthereumMainnet NetworkKey = "ethereum-mainnet"
	NetworkSepoliaTestnet  NetworkKey = "sepolia-testnet"
	NetworkBinanceTestnet  NetworkKey = "binance-testnet"
	NetworkBinanceMainnet  NetworkKey = "binance-mainnet"
)

type NativeCurrency struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// ChainDescriptor is the metadata a wallet needs to add or switch to a chain.
type ChainDescriptor struct {
	Key               NetworkKey
	ChainID           uint64
	ChainName         string
	RPCURLs           []string
	NativeCurrency    NativeCurrency
	BlockExplorerURLs []string
}

// HexChainID returns the chain id in the 0x-prefixed form wallets expect.
func (d ChainDescriptor) HexChainID() string {
	return hexutil.EncodeUint64(d.ChainID)
}

func (d ChainDescriptor) Validate() error {
	if strings.TrimSpace(string(d.Key)) == "" {
		return fmt.Errorf("key is required")
	}
	if d.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}
	if strings.TrimSpace(d.ChainName) == "" {
		return fmt.Errorf("chain name is required")
	}
	if len(d.RPCURLs) == 0 {
		return fmt.Errorf("chain %s has no rpc urls", d.Key)
	}

	return nil
}

func (d ChainDescriptor) clone() ChainDescriptor {
	d.RPCURLs = append([]string(nil), d.RPCURLs...)
	d.BlockExplorerURLs = append([]string(nil), d.BlockExplorerURLs...)
	return d
}

// ChainCatalog is the fixed set of networks a session may switch to. It is
// built once at startup and hands out copies.
type ChainCatalog struct {
	byKey map[NetworkKey]ChainDescriptor
}

func DefaultChainDescriptors() []ChainDescriptor {
	return []ChainDescriptor{
		{
			Key:               NetworkEthereumMainnet,
			ChainID:           0x1,
			ChainName:         "Ethereum Mainnet",
			RPCURLs:           []string{"https://mainnet.infura.io/v3/4abd0512745244c995d31aad9685535c"},
			NativeCurrency:    NativeCurrency{Name: "ETH", Symbol: "ETH", Decimals: 18},
			BlockExplorerURLs: []string{"https://etherscan.io"},
		},
		{
			Key:               NetworkSepoliaTestnet,
			ChainID:           0xaa36a7,
			ChainName:         "Sepolia Testnet",
			RPCURLs:           []string{"https://sepolia.infura.io/v3/4abd0512745244c995d31aad9685535c"},
			NativeCurrency:    NativeCurrency{Name: "SepoliaETH", Symbol: "SepETH", Decimals: 18},
			BlockExplorerURLs: []string{"https://sepolia.etherscan.io"},
		},
		{
			Key:               NetworkBinanceTestnet,
			ChainID:           0x61,
			ChainName:         "Binance Smart Chain Testnet",
			RPCURLs:           []string{"https://data-seed-prebsc-1-s1.binance.org:8545"},
			NativeCurrency:    NativeCurrency{Name: "BNB", Symbol: "BNB", Decimals: 18},
			BlockExplorerURLs: []string{"https://testnet.bscscan.com"},
		},
		{
			Key:               NetworkBinanceMainnet,
			ChainID:           0x38,
			ChainName:         "Binance Smart Chain Mainnet",
			RPCURLs:           []string{"https://bsc-dataseed.binance.org/"},
			NativeCurrency:    NativeCurrency{Name: "BNB", Symbol: "BNB", Decimals: 18},
			BlockExplorerURLs: []string{"https://bscscan.com"},
		},
	}
}

// NewChainCatalog builds a catalog from the default descriptors. Entries in
// rpcOverrides replace the RPC URLs of the matching network; unknown keys are
// rejected.
func NewChainCatalog(rpcOverrides map[NetworkKey][]string) (ChainCatalog, error) {
	catalog := ChainCatalog{byKey: make(map[NetworkKey]ChainDescriptor)}
	for _, descriptor := range DefaultChainDescriptors() {
		catalog.byKey[descriptor.Key] = descriptor
	}

	for key, urls := range rpcOverrides {
		descriptor, ok := catalog.byKey[key]
		if !ok {
			return ChainCatalog{}, fmt.Errorf("%w: %q", ErrInvalidNetwork, key)
		}
		cleaned := make([]string, 0, len(urls))
		for _, url := range urls {
			if trimmed := strings.TrimSpace(url); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) == 0 {
			continue
		}
		descriptor.RPCURLs = cleaned
		catalog.byKey[key] = descriptor
	}

	for _, descriptor := range catalog.byKey {
		if err := descriptor.Validate(); err != nil {
			return ChainCatalog{}, err
		}
	}

	return catalog, nil
}

func DefaultChainCatalog() ChainCatalog {
	catalog, err := NewChainCatalog(nil)
	if err != nil {
		panic(err)
	}
	return catalog
}

func (c ChainCatalog) Lookup(key NetworkKey) (ChainDescriptor, error) {
	descriptor, ok := c.byKey[key]
	if !ok {
		return ChainDescriptor{}, fmt.Errorf("%w: %q", ErrInvalidNetwork, key)
	}
	return descriptor.clone(), nil
}

func (c ChainCatalog) LookupByChainID(chainID uint64) (ChainDescriptor, bool) {
	for _, descriptor := range c.byKey {
		if descriptor.ChainID == chainID {
			return descriptor.clone(), true
		}
	}
	return ChainDescriptor{}, false
}

// NetworkName returns the chain name for chainID, or "unknown".
func (c ChainCatalog) NetworkName(chainID uint64) string {
	if descriptor, ok := c.LookupByChainID(chainID); ok {
		return descriptor.ChainName
	}
	return "unknown"
}

// List returns every descriptor ordered by chain id.
func (c ChainCatalog) List() []ChainDescriptor {
	descriptors := make([]ChainDescriptor, 0, len(c.byKey))
	for _, descriptor := range c.byKey {
		descriptors = append(descriptors, descriptor.clone())
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].ChainID < descriptors[j].ChainID
	})
	return descriptors
}
