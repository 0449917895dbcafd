package bridge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/adapters/provider"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/bnema/evm-wallet-cli/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pageAccount = common.HexToAddress("0x3000000000000000000000000000000000000003")

func newBridgeServer(t *testing.T, opts ...Option) (*Bridge, *httptest.Server) {
	t.Helper()

	opts = append([]Option{WithLogger(log.NewLogger(log.DiscardHandler()))}, opts...)
	b := New(opts...)
	mux := http.NewServeMux()
	mux.Handle(SocketPath, b)
	mux.Handle(PagePath, PageHandler())
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	t.Cleanup(b.Close)
	return b, server
}

func connectPage(t *testing.T, b *Bridge, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + SocketPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, b.WaitForPeer(context.Background()))
	return conn
}

// answer plays the browser page: every request is passed to reply and the
// returned message is sent back with the request id.
func answer(t *testing.T, conn *websocket.Conn, reply func(request) map[string]interface{}) {
	t.Helper()

	go func() {
		for {
			var req request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			message := reply(req)
			if message == nil {
				continue
			}
			message["id"] = req.ID
			if err := conn.WriteJSON(message); err != nil {
				return
			}
		}
	}()
}

func TestBridgeWithoutPeerIsUnavailable(t *testing.T) {
	t.Parallel()

	b, _ := newBridgeServer(t)
	_, err := b.GetChainID(context.Background())
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.False(t, b.Connected())
}

func TestBridgeRelaysRequests(t *testing.T) {
	t.Parallel()

	b, server := newBridgeServer(t)
	conn := connectPage(t, b, server)

	var mu sync.Mutex
	seen := map[string][]interface{}{}
	answer(t, conn, func(req request) map[string]interface{} {
		mu.Lock()
		seen[req.Method] = req.Params
		mu.Unlock()
		switch req.Method {
		case provider.MethodChainID:
			return map[string]interface{}{"result": "0x38"}
		case provider.MethodRequestAccounts, provider.MethodAccounts:
			return map[string]interface{}{"result": []string{pageAccount.Hex()}}
		case provider.MethodGetBalance:
			return map[string]interface{}{"result": "0xde0b6b3a7640000"}
		case provider.MethodAddEthereumChain:
			return map[string]interface{}{"result": nil}
		}
		return map[string]interface{}{"error": map[string]interface{}{"code": -32601, "message": "unknown"}}
	})

	ctx := context.Background()
	chainID, err := b.GetChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(56), chainID)

	accounts, err := b.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{pageAccount}, accounts)

	balance, err := b.GetBalance(ctx, pageAccount)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", balance.String())

	bsc, err := domain.DefaultChainCatalog().Lookup(domain.NetworkBinanceMainnet)
	require.NoError(t, err)
	require.NoError(t, b.RequestAddChain(ctx, bsc))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []interface{}{}, seen[provider.MethodChainID])
	assert.Equal(t, []interface{}{strings.ToLower(pageAccount.Hex()), "latest"}, seen[provider.MethodGetBalance])
	require.Len(t, seen[provider.MethodAddEthereumChain], 1)
	params, ok := seen[provider.MethodAddEthereumChain][0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "0x38", params["chainId"])
}

func TestBridgeSurfacesWalletErrorCodes(t *testing.T) {
	t.Parallel()

	b, server := newBridgeServer(t)
	conn := connectPage(t, b, server)
	answer(t, conn, func(request) map[string]interface{} {
		return map[string]interface{}{"error": map[string]interface{}{"code": 4001, "message": "User rejected the request."}}
	})

	_, err := b.RequestAccounts(context.Background())
	var coded ports.CodedError
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, 4001, coded.ErrorCode())
	assert.ErrorContains(t, err, "User rejected the request.")
}

func TestBridgeRequestTimesOut(t *testing.T) {
	t.Parallel()

	b, server := newBridgeServer(t, WithRequestTimeout(20*time.Millisecond))
	conn := connectPage(t, b, server)
	answer(t, conn, func(request) map[string]interface{} { return nil })

	_, err := b.GetChainID(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBridgePeerDisconnectFailsPendingRequest(t *testing.T) {
	t.Parallel()

	b, server := newBridgeServer(t)
	conn := connectPage(t, b, server)
	answer(t, conn, func(request) map[string]interface{} {
		_ = conn.Close()
		return nil
	})

	_, err := b.GetChainID(context.Background())
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	require.Eventually(t, func() bool { return !b.Connected() }, time.Second, time.Millisecond)
}

func TestBridgeDispatchesChainChangedUntilUnsubscribed(t *testing.T) {
	t.Parallel()

	b, server := newBridgeServer(t)
	conn := connectPage(t, b, server)

	events := make(chan string, 4)
	sub, err := b.SubscribeChainChanged(func(chainIDHex string) { events <- chainIDHex })
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": "chainChanged", "data": "0x61"}))
	select {
	case got := <-events:
		assert.Equal(t, "0x61", got)
	case <-time.After(time.Second):
		t.Fatal("chainChanged not dispatched")
	}

	sub.Unsubscribe()
	sub.Unsubscribe()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": "chainChanged", "data": "0x1"}))
	// A request round trip proves the event above was read before asserting.
	answer(t, conn, func(request) map[string]interface{} { return map[string]interface{}{"result": "0x1"} })
	_, err = b.GetChainID(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestBridgeNewPeerReplacesPrevious(t *testing.T) {
	t.Parallel()

	b, server := newBridgeServer(t, WithRequestTimeout(time.Second))
	first := connectPage(t, b, server)
	second := connectPage(t, b, server)

	_, _, err := first.ReadMessage()
	require.Error(t, err)

	answer(t, second, func(request) map[string]interface{} { return map[string]interface{}{"result": "0xaa36a7"} })
	chainID, err := b.GetChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(11155111), chainID)
}

func TestPageHandlerServesBridgeScript(t *testing.T) {
	t.Parallel()

	_, server := newBridgeServer(t)
	resp, err := http.Get(server.URL + PagePath)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), SocketPath)
	assert.Contains(t, string(body), "window.ethereum.request")
}
