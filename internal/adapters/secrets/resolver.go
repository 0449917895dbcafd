package secrets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/bnema/evm-wallet-cli/internal/ports"
)

var ErrPassUnavailable = errors.New("pass command unavailable")

const (
	schemePass = "pass"
	schemeFile = "file"
	schemeEnv  = "env"
)

type runFunc func(ctx context.Context, args ...string) (stdout string, stderr string, err error)

// Resolver reads secrets named by a reference of the form "pass:<entry>",
// "file:<path>" or "env:<VAR>". A reference without a scheme is looked up in
// pass first and then as a file under the fallback root.
type Resolver struct {
	run       runFunc
	lookupEnv func(string) (string, bool)
	fileRoot  string
}

var _ ports.SecretResolver = (*Resolver)(nil)

func NewResolver(fileRoot string) *Resolver {
	return &Resolver{
		run:       runPassCommand,
		lookupEnv: os.LookupEnv,
		fileRoot:  filepath.Clean(fileRoot),
	}
}

func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("secret reference is empty")
	}

	scheme, rest, ok := strings.Cut(ref, ":")
	if !ok {
		return r.resolveBare(ctx, ref)
	}

	switch scheme {
	case schemePass:
		return r.fromPass(ctx, rest)
	case schemeFile:
		return r.fromFile(rest)
	case schemeEnv:
		return r.fromEnv(rest)
	default:
		return "", fmt.Errorf("unsupported secret scheme %q", scheme)
	}
}

func (r *Resolver) resolveBare(ctx context.Context, key string) (string, error) {
	value, err := r.fromPass(ctx, key)
	if err == nil {
		return value, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}

	path, pathErr := r.pathUnderRoot(key)
	if pathErr != nil {
		return "", fmt.Errorf("pass lookup failed: %w; file fallback failed: %w", err, pathErr)
	}
	fallbackValue, fallbackErr := r.fromFile(path)
	if fallbackErr == nil {
		return fallbackValue, nil
	}

	return "", fmt.Errorf("pass lookup failed: %w; file fallback failed: %w", err, fallbackErr)
}

func (r *Resolver) fromPass(ctx context.Context, entry string) (string, error) {
	stdout, stderr, err := r.run(ctx, "show", entry)
	if err != nil {
		if stderr == "" {
			return "", fmt.Errorf("pass show %q: %w", entry, err)
		}
		return "", fmt.Errorf("pass show %q: %w: %s", entry, err, stderr)
	}

	// Only the first line of a pass entry is the secret.
	first, _, _ := strings.Cut(stdout, "\n")
	return strings.TrimSuffix(first, "\r"), nil
}

func (r *Resolver) fromFile(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.fileRoot, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file secret %q: %w", path, domain.ErrSecretNotFound)
		}
		return "", fmt.Errorf("read file secret %q: %w", path, err)
	}

	return strings.TrimSpace(string(data)), nil
}

func (r *Resolver) fromEnv(name string) (string, error) {
	value, ok := r.lookupEnv(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("env secret %q: %w", name, domain.ErrSecretNotFound)
	}

	return strings.TrimSpace(value), nil
}

func (r *Resolver) pathUnderRoot(key string) (string, error) {
	cleaned := filepath.Clean(key)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") || cleaned == "." {
		return "", fmt.Errorf("invalid secret key %q", key)
	}

	return filepath.Join(r.fileRoot, cleaned), nil
}

func runPassCommand(ctx context.Context, args ...string) (string, string, error) {
	path, err := exec.LookPath("pass")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrPassUnavailable
		}
		return "", "", fmt.Errorf("locate pass command: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}
