package ports

import "context"

// SecretResolver turns a secret reference such as "pass:ew/minter" into the
// secret value.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}
