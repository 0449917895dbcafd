package domain

import (
	"strings"
	"time"
)

type MintRecordID string

type MintRecord struct {
	ID        MintRecordID
	TokenURI  string
	TxHash    string
	Recipient string
	MintedAt  time.Time
}

type MintReceipt struct {
	Message string
	TxHash  string
}

func NormalizeTokenURI(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrTokenURIRequired
	}
	return trimmed, nil
}
