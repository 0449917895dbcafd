// Package mintapi serves and consumes the mint-record HTTP API.
package mintapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/adapters/httpjson"
	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/ethereum/go-ethereum/log"
	"github.com/go-chi/chi/v5"
)

const (
	MintPath = "/mint"
	NFTsPath = "/nfts"

	errFetchingNFTs = "Error fetching NFTs"
)

// Service is the mint backend behind the handler.
type Service interface {
	Mint(ctx context.Context, tokenURI string) (domain.MintReceipt, error)
	List(ctx context.Context) ([]domain.MintRecord, error)
}

type mintRequest struct {
	TokenURI string `json:"tokenURI"`
}

type mintResponse struct {
	Message string `json:"message"`
	TxHash  string `json:"txHash"`
}

type recordResponse struct {
	ID        string    `json:"id"`
	TokenURI  string    `json:"tokenURI"`
	TxHash    string    `json:"txHash"`
	Recipient string    `json:"recipient,omitempty"`
	MintedAt  time.Time `json:"mintedAt"`
}

// Handler exposes a Service over HTTP.
type Handler struct {
	svc    Service
	logger log.Logger
}

func NewHandler(svc Service, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.Root()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the mint routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(MintPath, h.handleMint)
	r.Get(NFTsPath, h.handleList)
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	var payload mintRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receipt, err := h.svc.Mint(r.Context(), payload.TokenURI)
	if err != nil {
		if errors.Is(err, domain.ErrTokenURIRequired) {
			httpjson.Error(w, http.StatusBadRequest, domain.ErrTokenURIRequired.Error())
			return
		}
		h.logger.Error("Mint request failed", "err", err)
		httpjson.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	httpjson.Respond(w, http.StatusOK, mintResponse{Message: receipt.Message, TxHash: receipt.TxHash})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Error("Listing mint records failed", "err", err)
		httpjson.Error(w, http.StatusInternalServerError, errFetchingNFTs)
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toRecordResponse(record))
	}
	httpjson.Respond(w, http.StatusOK, out)
}

func toRecordResponse(record domain.MintRecord) recordResponse {
	return recordResponse{
		ID:        string(record.ID),
		TokenURI:  record.TokenURI,
		TxHash:    record.TxHash,
		Recipient: record.Recipient,
		MintedAt:  record.MintedAt.UTC(),
	}
}

func fromRecordResponse(record recordResponse) domain.MintRecord {
	return domain.MintRecord{
		ID:        domain.MintRecordID(record.ID),
		TokenURI:  record.TokenURI,
		TxHash:    record.TxHash,
		Recipient: record.Recipient,
		MintedAt:  record.MintedAt.UTC(),
	}
}
