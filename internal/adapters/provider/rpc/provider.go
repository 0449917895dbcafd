// Package rpc implements a wallet provider on top of a JSON-RPC endpoint.
// Chain changes are detected by polling eth_chainId.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/adapters/provider"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/bnema/evm-wallet-cli/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

const DefaultPollInterval = 4 * time.Second

type Option func(*Provider)

// WithAccounts pins the accounts the provider reports instead of asking the
// node. Useful against public endpoints that manage no keys.
func WithAccounts(accounts ...common.Address) Option {
	return func(p *Provider) {
		p.watch = append([]common.Address(nil), accounts...)
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(p *Provider) {
		if interval > 0 {
			p.pollInterval = interval
		}
	}
}

func WithLogger(logger log.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

type Provider struct {
	mu       sync.RWMutex
	client   *gethrpc.Client
	endpoint string

	watch        []common.Address
	pollInterval time.Duration
	logger       log.Logger
}

var _ ports.WalletProvider = (*Provider)(nil)

func Dial(ctx context.Context, endpoint string, opts ...Option) (*Provider, error) {
	client, err := gethrpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %w", endpoint, domain.ErrProviderUnavailable, err)
	}

	p := &Provider{
		client:       client,
		endpoint:     endpoint,
		pollInterval: DefaultPollInterval,
		logger:       log.Root(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("endpoint", endpoint)

	return p, nil
}

// Endpoint returns the URL currently in use. It changes when a chain switch
// falls back to the chain's own RPC URL.
func (p *Provider) Endpoint() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.endpoint
}

func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

func (p *Provider) ListAccounts(ctx context.Context) ([]common.Address, error) {
	if len(p.watch) > 0 {
		return append([]common.Address(nil), p.watch...), nil
	}

	var accounts []common.Address
	if err := p.call(ctx, &accounts, provider.MethodAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// RequestAccounts falls back to eth_accounts on nodes that do not implement
// eth_requestAccounts; a node has no user to prompt.
func (p *Provider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if len(p.watch) > 0 {
		return append([]common.Address(nil), p.watch...), nil
	}

	var accounts []common.Address
	err := p.call(ctx, &accounts, provider.MethodRequestAccounts)
	if isMethodNotFound(err) {
		p.logger.Debug("Node lacks eth_requestAccounts, using eth_accounts")
		return p.ListAccounts(ctx)
	}
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (p *Provider) GetBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance hexutil.Big
	if err := p.call(ctx, &balance, provider.MethodGetBalance, account, "latest"); err != nil {
		return nil, err
	}
	return (*big.Int)(&balance), nil
}

func (p *Provider) GetChainID(ctx context.Context) (uint64, error) {
	var chainID hexutil.Uint64
	if err := p.call(ctx, &chainID, provider.MethodChainID); err != nil {
		return 0, err
	}
	return uint64(chainID), nil
}

// RequestAddChain asks the endpoint to add and switch to chain. Endpoints
// without wallet methods are replaced by a connection to one of the chain's
// RPC URLs.
func (p *Provider) RequestAddChain(ctx context.Context, chain domain.ChainDescriptor) error {
	err := p.call(ctx, nil, provider.MethodAddEthereumChain, provider.NewAddChainParams(chain))
	if !isMethodNotFound(err) {
		return err
	}

	p.logger.Info("Endpoint has no wallet methods, reconnecting to chain RPC", "chain", chain.Key)
	return p.switchEndpoint(ctx, chain)
}

func (p *Provider) SubscribeChainChanged(handler func(chainIDHex string)) (ports.Subscription, error) {
	if handler == nil {
		return nil, errors.New("chain changed handler is nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &pollSubscription{cancel: cancel, done: make(chan struct{})}

	baseline, err := p.GetChainID(ctx)
	if err != nil {
		p.logger.Warn("Initial chain id read failed", "err", err)
	}

	go p.poll(ctx, sub.done, baseline, handler)
	return sub, nil
}

func (p *Provider) poll(ctx context.Context, done chan<- struct{}, last uint64, handler func(string)) {
	defer close(done)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		callCtx, cancel := context.WithTimeout(ctx, p.pollInterval)
		chainID, err := p.GetChainID(callCtx)
		cancel()
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Debug("Chain id poll failed", "err", err)
			}
			continue
		}
		if last == 0 {
			last = chainID
			continue
		}
		if chainID != last {
			last = chainID
			p.logger.Debug("Chain id changed", "chain", chainID)
			handler(hexutil.EncodeUint64(chainID))
		}
	}
}

func (p *Provider) switchEndpoint(ctx context.Context, chain domain.ChainDescriptor) error {
	var errs []error
	for _, url := range chain.RPCURLs {
		client, err := gethrpc.DialContext(ctx, url)
		if err != nil {
			errs = append(errs, fmt.Errorf("dial %s: %w", url, err))
			continue
		}

		var chainID hexutil.Uint64
		if err := client.CallContext(ctx, &chainID, provider.MethodChainID); err != nil {
			client.Close()
			errs = append(errs, fmt.Errorf("probe %s: %w", url, err))
			continue
		}
		if uint64(chainID) != chain.ChainID {
			client.Close()
			errs = append(errs, fmt.Errorf("probe %s: reports chain %d, want %d", url, uint64(chainID), chain.ChainID))
			continue
		}

		p.mu.Lock()
		previous := p.client
		p.client = client
		p.endpoint = url
		p.mu.Unlock()
		if previous != nil {
			previous.Close()
		}
		return nil
	}

	return fmt.Errorf("switch endpoint for %s: %w", chain.Key, errors.Join(errs...))
}

func (p *Provider) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("%s: %w", method, domain.ErrProviderUnavailable)
	}

	if err := client.CallContext(ctx, result, method, args...); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func isMethodNotFound(err error) bool {
	var coded ports.CodedError
	return errors.As(err, &coded) && coded.ErrorCode() == provider.CodeMethodNotFound
}

type pollSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *pollSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
