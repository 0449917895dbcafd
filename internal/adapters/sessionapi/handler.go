// Package sessionapi exposes the wallet session over HTTP.
package sessionapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/adapters/httpjson"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/ethereum/go-ethereum/log"
	"github.com/go-chi/chi/v5"
)

const keepAliveInterval = 15 * time.Second

// Manager is the session surface the handler drives.
type Manager interface {
	Snapshot() domain.Snapshot
	Connect(ctx context.Context) (domain.Snapshot, error)
	Disconnect() domain.Snapshot
	SwitchChain(ctx context.Context, key domain.NetworkKey) (domain.Snapshot, error)
	RefreshBalance(ctx context.Context) (domain.Snapshot, error)
	InspectAccount(ctx context.Context) (domain.AccountDetails, error)
}

// Feed is an optional source of snapshot updates for the event stream.
type Feed interface {
	Subscribe() (<-chan domain.Snapshot, func())
}

type Handler struct {
	manager Manager
	catalog domain.ChainCatalog
	feed    Feed
	logger  log.Logger
}

func NewHandler(manager Manager, catalog domain.ChainCatalog, feed Feed, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.Root()
	}
	return &Handler{manager: manager, catalog: catalog, feed: feed, logger: logger}
}

// RegisterRoutes mounts the session routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/session", func(s chi.Router) {
		s.Get("/", h.handleSnapshot)
		s.Post("/connect", h.handleConnect)
		s.Post("/disconnect", h.handleDisconnect)
		s.Post("/switch/{network}", h.handleSwitch)
		s.Post("/refresh", h.handleRefresh)
		s.Get("/account", h.handleAccount)
		s.Get("/events", h.handleEvents)
	})
	r.Get("/networks", h.handleNetworks)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	h.respondSnapshot(w, h.manager.Snapshot())
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.manager.Connect(r.Context())
	if err != nil {
		h.respondActionError(w, "connect", err)
		return
	}
	h.respondSnapshot(w, snapshot)
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	h.respondSnapshot(w, h.manager.Disconnect())
}

func (h *Handler) handleSwitch(w http.ResponseWriter, r *http.Request) {
	key := domain.NetworkKey(chi.URLParam(r, "network"))
	snapshot, err := h.manager.SwitchChain(r.Context(), key)
	if err != nil {
		h.respondActionError(w, "switch", err)
		return
	}
	h.respondSnapshot(w, snapshot)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.manager.RefreshBalance(r.Context())
	if err != nil {
		h.respondActionError(w, "refresh", err)
		return
	}
	h.respondSnapshot(w, snapshot)
}

func (h *Handler) handleAccount(w http.ResponseWriter, r *http.Request) {
	details, err := h.manager.InspectAccount(r.Context())
	if err != nil {
		h.respondActionError(w, "account", err)
		return
	}
	httpjson.Respond(w, http.StatusOK, NewAccountResponse(details))
}

type networkResponse struct {
	Key     string `json:"key"`
	ChainID string `json:"chainId"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

func (h *Handler) handleNetworks(w http.ResponseWriter, _ *http.Request) {
	descriptors := h.catalog.List()
	out := make([]networkResponse, 0, len(descriptors))
	for _, descriptor := range descriptors {
		out = append(out, networkResponse{
			Key:     string(descriptor.Key),
			ChainID: descriptor.HexChainID(),
			Name:    descriptor.ChainName,
			Symbol:  descriptor.NativeCurrency.Symbol,
		})
	}
	httpjson.Respond(w, http.StatusOK, out)
}

// handleEvents streams every committed snapshot as server-sent events,
// starting with the current one.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		httpjson.Error(w, http.StatusServiceUnavailable, "session events unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpjson.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, cancel := h.feed.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if !h.sendEvent(w, flusher, h.manager.Snapshot()) {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snapshot, open := <-updates:
			if !open {
				return
			}
			if !h.sendEvent(w, flusher, snapshot) {
				return
			}
		}
	}
}

func (h *Handler) sendEvent(w http.ResponseWriter, flusher http.Flusher, snapshot domain.Snapshot) bool {
	data, err := json.Marshal(NewSnapshotResponse(snapshot, h.catalog))
	if err != nil {
		h.logger.Warn("Failed to encode session event", "err", err)
		return false
	}
	if _, err := fmt.Fprintf(w, "event: session\ndata: %s\n\n", data); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func (h *Handler) respondSnapshot(w http.ResponseWriter, snapshot domain.Snapshot) {
	httpjson.Respond(w, http.StatusOK, NewSnapshotResponse(snapshot, h.catalog))
}

func (h *Handler) respondActionError(w http.ResponseWriter, action string, err error) {
	status := StatusFor(err)
	h.logger.Warn("Session action failed", "action", action, "status", status, "err", err)
	httpjson.Error(w, status, err.Error())
}

// StatusFor maps a session error kind onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidNetwork):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUserRejected):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
