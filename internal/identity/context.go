package identity

import (
	"context"
	"errors"
)

// ErrUnauthenticated is reported when no identity was resolved for a request.
var ErrUnauthenticated = errors.New("unauthenticated")

type identityKey struct{}

// WithIdentity stores the resolved identity in the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the resolved identity, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
