// Package provider holds the EIP-1193 wire types shared by the wallet
// provider adapters.
package provider

import (
	"fmt"
	"strings"

	"github.com/bnema/evm-wallet-cli/internal/domain"
)

const (
	MethodAccounts         = "eth_accounts"
	MethodRequestAccounts  = "eth_requestAccounts"
	MethodGetBalance       = "eth_getBalance"
	MethodChainID          = "eth_chainId"
	MethodAddEthereumChain = "wallet_addEthereumChain"

	EventChainChanged = "chainChanged"

	CodeMethodNotFound = -32601
)

type NativeCurrencyParams struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// AddChainParams is the wallet_addEthereumChain parameter object.
type AddChainParams struct {
	ChainID           string               `json:"chainId"`
	ChainName         string               `json:"chainName"`
	RPCURLs           []string             `json:"rpcUrls"`
	NativeCurrency    NativeCurrencyParams `json:"nativeCurrency"`
	BlockExplorerURLs []string             `json:"blockExplorerUrls,omitempty"`
}

func NewAddChainParams(chain domain.ChainDescriptor) AddChainParams {
	return AddChainParams{
		ChainID:   chain.HexChainID(),
		ChainName: chain.ChainName,
		RPCURLs:   append([]string(nil), chain.RPCURLs...),
		NativeCurrency: NativeCurrencyParams{
			Name:     chain.NativeCurrency.Name,
			Symbol:   chain.NativeCurrency.Symbol,
			Decimals: chain.NativeCurrency.Decimals,
		},
		BlockExplorerURLs: append([]string(nil), chain.BlockExplorerURLs...),
	}
}

// RPCError is a provider error object as carried in JSON-RPC and EIP-1193
// responses.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = "provider error"
	}
	return fmt.Sprintf("%s (code %d)", message, e.Code)
}

func (e *RPCError) ErrorCode() int {
	return e.Code
}
