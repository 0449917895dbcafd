package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/bnema/evm-wallet-cli/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	RecordsPathKey  = "mint.records_path"
	recordsFileMode = 0o600
	recordsDirMode  = 0o700
	configDir       = ".ew"
	recordsFile     = "mints.toml"
	tempFilePattern = ".mints-*.toml.tmp"
)

// Repository stores mint records in a single versioned TOML file. Instances
// pointing at the same path share one lock.
type Repository struct {
	recordsPath string
	mu          *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.MintRecordRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.SetDefault(RecordsPathKey, filepath.Join(homeDir, configDir, recordsFile))

	recordsPath := cfg.GetString(RecordsPathKey)
	if recordsPath == "" {
		return nil, errors.New("mint records path is empty")
	}
	recordsPath, err = normalizePath(recordsPath)
	if err != nil {
		return nil, err
	}

	return &Repository{recordsPath: recordsPath, mu: lockForPath(recordsPath)}, nil
}

func (r *Repository) Path() string {
	return r.recordsPath
}

func (r *Repository) Save(ctx context.Context, record domain.MintRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.ID == "" {
		return errors.New("mint record id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(record)
	updated := false
	for i := range file.Mints {
		if file.Mints[i].ID == encoded.ID {
			file.Mints[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Mints = append(file.Mints, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) GetByID(ctx context.Context, id domain.MintRecordID) (domain.MintRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.MintRecord{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.MintRecord{}, err
	}

	for _, entry := range file.Mints {
		if entry.ID == string(id) {
			return fromSchema(entry), nil
		}
	}

	return domain.MintRecord{}, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
}

// List returns records in insertion order.
func (r *Repository) List(ctx context.Context) ([]domain.MintRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	records := make([]domain.MintRecord, 0, len(file.Mints))
	for _, entry := range file.Mints {
		records = append(records, fromSchema(entry))
	}

	return records, nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.recordsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read mint records file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode mint records file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	dir := filepath.Dir(r.recordsPath)
	if err := os.MkdirAll(dir, recordsDirMode); err != nil {
		return fmt.Errorf("create mint records directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode mint records file: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp mint records file: %w", err)
	}
	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp mint records file: %w", err)
	}
	if err := tempFile.Chmod(recordsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp mint records file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp mint records file: %w", err)
	}
	if err := os.Rename(tempName, r.recordsPath); err != nil {
		return fmt.Errorf("replace mint records file: %w", err)
	}
	cleanup = false

	return nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve mint records path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func toSchema(record domain.MintRecord) recordSchema {
	return recordSchema{
		ID:        string(record.ID),
		TokenURI:  record.TokenURI,
		TxHash:    record.TxHash,
		Recipient: record.Recipient,
		MintedAt:  formatTime(record.MintedAt),
	}
}

func fromSchema(record recordSchema) domain.MintRecord {
	return domain.MintRecord{
		ID:        domain.MintRecordID(record.ID),
		TokenURI:  record.TokenURI,
		TxHash:    record.TxHash,
		Recipient: record.Recipient,
		MintedAt:  parseTime(record.MintedAt),
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed.UTC()
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339Nano)
}
