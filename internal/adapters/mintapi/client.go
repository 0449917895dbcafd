package mintapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/adapters/httpjson"
	"github.com/bnema/evm-wallet-cli/internal/domain"
)

const DefaultTimeout = 2 * time.Minute

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("mint api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("mint api returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to a mint API rooted at baseURL, for example http://localhost:5000/api.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) Mint(ctx context.Context, tokenURI string) (domain.MintReceipt, error) {
	body, err := json.Marshal(mintRequest{TokenURI: tokenURI})
	if err != nil {
		return domain.MintReceipt{}, fmt.Errorf("encode mint request: %w", err)
	}

	var out mintResponse
	if err := c.do(ctx, http.MethodPost, MintPath, bytes.NewReader(body), &out); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest &&
			statusErr.Message == domain.ErrTokenURIRequired.Error() {
			return domain.MintReceipt{}, fmt.Errorf("%w: %w", domain.ErrTokenURIRequired, err)
		}
		return domain.MintReceipt{}, fmt.Errorf("mint: %w", err)
	}

	return domain.MintReceipt{Message: out.Message, TxHash: out.TxHash}, nil
}

func (c *Client) List(ctx context.Context) ([]domain.MintRecord, error) {
	var out []recordResponse
	if err := c.do(ctx, http.MethodGet, NFTsPath, nil, &out); err != nil {
		return nil, fmt.Errorf("list nfts: %w", err)
	}

	records := make([]domain.MintRecord, 0, len(out))
	for _, record := range out {
		records = append(records, fromRecordResponse(record))
	}
	return records, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", domain.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload httpjson.ErrorBody
		if json.Unmarshal(raw, &payload) != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: payload.Error}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
