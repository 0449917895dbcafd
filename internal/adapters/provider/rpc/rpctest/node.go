// Package rpctest runs an in-process JSON-RPC wallet node for tests.
package rpctest

import (
	"math/big"
	"net/http/httptest"
	"sync"

	"github.com/bnema/evm-wallet-cli/internal/adapters/provider"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Node serves eth_* and wallet_* methods backed by in-memory state. Balances
// are kept per chain so reads under the wrong chain are visible.
type Node struct {
	mu          sync.Mutex
	chainID     uint64
	accounts    []common.Address
	balances    map[uint64]*big.Int
	addChainErr *provider.RPCError
	requestErr  *provider.RPCError
	noWallet    bool
	calls       map[string]int

	server *rpc.Server
	http   *httptest.Server
}

func NewNode(chainID uint64, accounts ...common.Address) *Node {
	node := &Node{
		chainID:  chainID,
		accounts: accounts,
		balances: map[uint64]*big.Int{},
		calls:    map[string]int{},
		server:   rpc.NewServer(),
	}
	if err := node.server.RegisterName("eth", &ethService{node: node}); err != nil {
		panic(err)
	}
	if err := node.server.RegisterName("wallet", &walletService{node: node}); err != nil {
		panic(err)
	}
	node.http = httptest.NewServer(node.server)

	return node
}

func (n *Node) URL() string {
	return n.http.URL
}

func (n *Node) Close() {
	n.http.Close()
	n.server.Stop()
}

func (n *Node) SetChainID(chainID uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chainID = chainID
}

func (n *Node) ChainID() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.chainID
}

func (n *Node) SetBalance(chainID uint64, wei *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[chainID] = new(big.Int).Set(wei)
}

func (n *Node) SetAccounts(accounts ...common.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accounts = append([]common.Address(nil), accounts...)
}

// FailAddChain makes wallet_addEthereumChain return the given error code.
func (n *Node) FailAddChain(code int, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.addChainErr = &provider.RPCError{Code: code, Message: message}
}

// FailRequestAccounts makes eth_requestAccounts return the given error code.
func (n *Node) FailRequestAccounts(code int, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requestErr = &provider.RPCError{Code: code, Message: message}
}

// DisableWallet makes the node behave like a plain execution client that
// does not know eth_requestAccounts or wallet_addEthereumChain.
func (n *Node) DisableWallet() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.noWallet = true
}

func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func (n *Node) record(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[method]++
}

type ethService struct {
	node *Node
}

func (s *ethService) ChainId() hexutil.Uint64 {
	s.node.record(provider.MethodChainID)
	return hexutil.Uint64(s.node.ChainID())
}

func (s *ethService) Accounts() []common.Address {
	s.node.record(provider.MethodAccounts)
	s.node.mu.Lock()
	defer s.node.mu.Unlock()
	return append([]common.Address{}, s.node.accounts...)
}

func (s *ethService) RequestAccounts() ([]common.Address, error) {
	s.node.record(provider.MethodRequestAccounts)
	s.node.mu.Lock()
	defer s.node.mu.Unlock()
	if s.node.noWallet {
		return nil, &provider.RPCError{Code: provider.CodeMethodNotFound, Message: "the method eth_requestAccounts does not exist/is not available"}
	}
	if s.node.requestErr != nil {
		return nil, s.node.requestErr
	}
	return append([]common.Address{}, s.node.accounts...), nil
}

func (s *ethService) GetBalance(_ common.Address, _ string) *hexutil.Big {
	s.node.record(provider.MethodGetBalance)
	s.node.mu.Lock()
	defer s.node.mu.Unlock()
	balance, ok := s.node.balances[s.node.chainID]
	if !ok {
		return (*hexutil.Big)(new(big.Int))
	}
	return (*hexutil.Big)(new(big.Int).Set(balance))
}

type walletService struct {
	node *Node
}

func (s *walletService) AddEthereumChain(params provider.AddChainParams) error {
	s.node.record(provider.MethodAddEthereumChain)
	s.node.mu.Lock()
	defer s.node.mu.Unlock()
	if s.node.noWallet {
		return &provider.RPCError{Code: provider.CodeMethodNotFound, Message: "the method wallet_addEthereumChain does not exist/is not available"}
	}
	if s.node.addChainErr != nil {
		return s.node.addChainErr
	}
	chainID, err := hexutil.DecodeUint64(params.ChainID)
	if err != nil {
		return &provider.RPCError{Code: -32602, Message: "invalid chainId"}
	}
	s.node.chainID = chainID
	return nil
}
