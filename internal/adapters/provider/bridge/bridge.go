// Package bridge implements a wallet provider that relays EIP-1193 requests
// over a websocket to a browser page holding the injected wallet.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/adapters/provider"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/bnema/evm-wallet-cli/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
)

const (
	SocketPath = "/wallet/ws"
	PagePath   = "/wallet"

	DefaultRequestTimeout = 2 * time.Minute
	writeTimeout          = 10 * time.Second
)

type request struct {
	ID     uint64        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

type inbound struct {
	ID     *uint64            `json:"id,omitempty"`
	Result json.RawMessage    `json:"result,omitempty"`
	Error  *provider.RPCError `json:"error,omitempty"`
	Event  string             `json:"event,omitempty"`
	Data   json.RawMessage    `json:"data,omitempty"`
}

type Option func(*Bridge)

// WithRequestTimeout bounds how long a request waits for the page. Prompts
// wait on the user, so the default is generous.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(b *Bridge) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}

func WithLogger(logger log.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithOriginCheck overrides the websocket origin check.
func WithOriginCheck(check func(r *http.Request) bool) Option {
	return func(b *Bridge) {
		b.upgrader.CheckOrigin = check
	}
}

// Bridge serves the websocket endpoint and implements ports.WalletProvider
// against whichever page is connected. A newly connected page replaces the
// previous one.
type Bridge struct {
	upgrader websocket.Upgrader
	timeout  time.Duration
	logger   log.Logger
	nextID   atomic.Uint64

	mu       sync.Mutex
	peer     *peer
	peerCh   chan struct{}
	handlers map[uint64]func(string)
	nextSub  uint64
}

var _ ports.WalletProvider = (*Bridge)(nil)

func New(opts ...Option) *Bridge {
	b := &Bridge{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		timeout:  DefaultRequestTimeout,
		logger:   log.Root(),
		peerCh:   make(chan struct{}),
		handlers: map[uint64]func(string){},
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// ServeHTTP upgrades the connection and makes it the active peer.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("Wallet page upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	p := newPeer(conn)
	b.attach(p)
	b.logger.Info("Wallet page connected", "remote", r.RemoteAddr)

	b.readLoop(p)

	b.detach(p)
	b.logger.Info("Wallet page disconnected", "remote", r.RemoteAddr)
}

// WaitForPeer blocks until a page is connected.
func (b *Bridge) WaitForPeer(ctx context.Context) error {
	for {
		b.mu.Lock()
		if b.peer != nil {
			b.mu.Unlock()
			return nil
		}
		ch := b.peerCh
		b.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("wait for wallet page: %w", ctx.Err())
		}
	}
}

func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peer != nil
}

// Close drops the active peer.
func (b *Bridge) Close() {
	b.mu.Lock()
	p := b.peer
	b.mu.Unlock()
	if p != nil {
		p.close()
	}
}

func (b *Bridge) ListAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := b.request(ctx, &accounts, provider.MethodAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (b *Bridge) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := b.request(ctx, &accounts, provider.MethodRequestAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (b *Bridge) GetBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance hexutil.Big
	if err := b.request(ctx, &balance, provider.MethodGetBalance, account, "latest"); err != nil {
		return nil, err
	}
	return (*big.Int)(&balance), nil
}

func (b *Bridge) GetChainID(ctx context.Context) (uint64, error) {
	var chainID hexutil.Uint64
	if err := b.request(ctx, &chainID, provider.MethodChainID); err != nil {
		return 0, err
	}
	return uint64(chainID), nil
}

func (b *Bridge) RequestAddChain(ctx context.Context, chain domain.ChainDescriptor) error {
	return b.request(ctx, nil, provider.MethodAddEthereumChain, provider.NewAddChainParams(chain))
}

func (b *Bridge) SubscribeChainChanged(handler func(chainIDHex string)) (ports.Subscription, error) {
	if handler == nil {
		return nil, errors.New("chain changed handler is nil")
	}

	b.mu.Lock()
	b.nextSub++
	id := b.nextSub
	b.handlers[id] = handler
	b.mu.Unlock()

	return &subscription{bridge: b, id: id}, nil
}

func (b *Bridge) request(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	b.mu.Lock()
	p := b.peer
	b.mu.Unlock()
	if p == nil {
		return fmt.Errorf("%s: no wallet page connected: %w", method, domain.ErrProviderUnavailable)
	}

	if params == nil {
		params = []interface{}{}
	}
	id := b.nextID.Add(1)
	replies := p.register(id)
	defer p.unregister(id)

	if err := p.write(request{ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("%s: send to wallet page: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	select {
	case reply := <-replies:
		if reply.Error != nil {
			return fmt.Errorf("%s: %w", method, reply.Error)
		}
		if result == nil || len(reply.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(reply.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
		return nil
	case <-p.done:
		return fmt.Errorf("%s: wallet page disconnected: %w", method, domain.ErrProviderUnavailable)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func (b *Bridge) readLoop(p *peer) {
	for {
		var message inbound
		if err := p.conn.ReadJSON(&message); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Debug("Wallet page read ended", "err", err)
			}
			return
		}

		switch {
		case message.Event != "":
			b.dispatch(message)
		case message.ID != nil:
			p.deliver(*message.ID, message)
		default:
			b.logger.Debug("Ignoring wallet page message without id or event")
		}
	}
}

func (b *Bridge) dispatch(message inbound) {
	if message.Event != provider.EventChainChanged {
		b.logger.Debug("Ignoring wallet event", "event", message.Event)
		return
	}

	var chainIDHex string
	if err := json.Unmarshal(message.Data, &chainIDHex); err != nil {
		b.logger.Warn("Malformed chainChanged payload", "err", err)
		return
	}

	b.mu.Lock()
	handlers := make([]func(string), 0, len(b.handlers))
	for _, handler := range b.handlers {
		handlers = append(handlers, handler)
	}
	b.mu.Unlock()

	for _, handler := range handlers {
		handler(chainIDHex)
	}
}

func (b *Bridge) attach(p *peer) {
	b.mu.Lock()
	previous := b.peer
	b.peer = p
	close(b.peerCh)
	b.peerCh = make(chan struct{})
	b.mu.Unlock()

	if previous != nil {
		previous.close()
	}
}

func (b *Bridge) detach(p *peer) {
	b.mu.Lock()
	if b.peer == p {
		b.peer = nil
	}
	b.mu.Unlock()

	p.close()
}

type peer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan inbound

	done      chan struct{}
	closeOnce sync.Once
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{
		conn:    conn,
		pending: map[uint64]chan inbound{},
		done:    make(chan struct{}),
	}
}

func (p *peer) register(id uint64) <-chan inbound {
	ch := make(chan inbound, 1)
	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	return ch
}

func (p *peer) unregister(id uint64) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *peer) deliver(id uint64, message inbound) {
	p.mu.Lock()
	ch, ok := p.pending[id]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- message:
	default:
	}
}

func (p *peer) write(message request) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := p.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return p.conn.WriteJSON(message)
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

type subscription struct {
	bridge *Bridge
	id     uint64
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bridge.mu.Lock()
		delete(s.bridge.handlers, s.id)
		s.bridge.mu.Unlock()
	})
}
