// Package tenantctx carries the caller's tenant through request contexts.
// The tenant ID is resolved once, at identity resolution, and is never read
// from request payloads.
package tenantctx

import (
	"context"
	"errors"
)

// ErrNoTenant is reported when a tenant-scoped operation runs without a
// resolved tenant in its context.
var ErrNoTenant = errors.New("no_tenant_in_context")

type tenantKey struct{}

type bypassKey struct{}

// WithTenantID stores the caller's tenant ID in the context.
func WithTenantID(ctx context.Context, tenantID int64) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantID returns the tenant ID from context, if set.
func TenantID(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(tenantKey{}).(int64)
	return id, ok
}

// WithBypass marks the context as exempt from tenant scoping. Only the
// superadmin-only code paths (tenant management, system logs, schedulers)
// may set it, after the role check has passed.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

// Bypassed reports whether tenant scoping is disabled for this context.
func Bypassed(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := ctx.Value(bypassKey{}).(bool)
	return ok && v
}
