package secret

import "context"

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must never log the
// values they return.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}
