package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	ErrUserRejected        = errors.New("request rejected by user")
	ErrInvalidNetwork      = errors.New("invalid network")
	ErrNetwork             = errors.New("network error")

	// ErrStaleResult marks a fetch whose chain changed before it completed.
	// It never reaches the user; the result is dropped.
	ErrStaleResult = errors.New("stale result discarded")

	ErrNoAccounts = fmt.Errorf("no accounts returned: %w", ErrProviderUnavailable)
	// ErrNotConnected rejects actions that need a connected account.
	ErrNotConnected = errors.New("wallet not connected")

	ErrTokenURIRequired = errors.New("tokenURI is required")
	ErrRecordNotFound   = errors.New("mint record not found")
	ErrSecretNotFound   = errors.New("secret not found")
)
