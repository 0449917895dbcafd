package application

import (
	"errors"
	"fmt"

	"github.com/bnema/evm-wallet-cli/internal/domain"
	"github.com/bnema/evm-wallet-cli/internal/ports"
)

// EIP-1193 provider error codes.
const (
	codeUserRejected      = 4001
	codeUnauthorized      = 4100
	codeUnsupportedMethod = 4200
	codeDisconnected      = 4900
	codeChainDisconnected = 4901
	codeMethodNotFound    = -32601
)

// classifyProviderError maps a provider failure onto one of the domain error
// kinds. Transport failures and unknown codes are network errors. The
// original error stays in the chain.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}

	for _, kind := range []error{
		domain.ErrProviderUnavailable,
		domain.ErrUserRejected,
		domain.ErrInvalidNetwork,
		domain.ErrNetwork,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}

	var coded ports.CodedError
	if errors.As(err, &coded) {
		switch coded.ErrorCode() {
		case codeUserRejected, codeUnauthorized:
			return fmt.Errorf("%w: %w", domain.ErrUserRejected, err)
		case codeUnsupportedMethod, codeDisconnected, codeChainDisconnected, codeMethodNotFound:
			return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
		}
	}

	return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
}
