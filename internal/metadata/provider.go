// Package metadata looks up live channel facts (canonical handle and member
// count) from the messaging platform.
package metadata

import (
	"context"
	"errors"
)

// ErrUnavailable wraps every lookup failure. Callers keep stale values.
var ErrUnavailable = errors.New("metadata unavailable")

type Info struct {
	Handle string // canonical "@username"
	Count  int
}

type Provider interface {
	Lookup(ctx context.Context, handle string) (Info, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, handle string) (Info, error)

func (f ProviderFunc) Lookup(ctx context.Context, handle string) (Info, error) {
	return f(ctx, handle)
}
