package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int            `toml:"version"`
	Mints   []recordSchema `toml:"mints"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported mint records schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type recordSchema struct {
	ID        string `toml:"id"`
	TokenURI  string `toml:"token_uri"`
	TxHash    string `toml:"tx_hash"`
	Recipient string `toml:"recipient,omitempty"`
	MintedAt  string `toml:"minted_at"`
}
