package tenant

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// Scope is the mandatory tenant scoping parameter threaded through every
// repository and service call that touches tenant-owned data.
//
// A Scope can only be obtained through NewScope, which rejects a nil tenant
// id. The zero Scope is invalid and every consumer rejects it, so an
// operation with no tenant fails closed instead of defaulting to "all
// tenants". Scope is a value type: copy it freely, never store it globally.
type Scope struct {
	tenantID id.ID
}

// NewScope creates a Scope for the given tenant id.
func NewScope(tenantID id.ID) (Scope, error) {
	if id.IsNil(tenantID) {
		return Scope{}, apperror.NewTenantRequired()
	}
	return Scope{tenantID: tenantID}, nil
}

// MustScope creates a Scope or panics. Use only in tests and seeders.
func MustScope(tenantID id.ID) Scope {
	s, err := NewScope(tenantID)
	if err != nil {
		panic(err)
	}
	return s
}

// TenantID returns the scoped tenant id.
func (s Scope) TenantID() id.ID {
	return s.tenantID
}

// IsZero reports whether the scope was never initialized through NewScope.
func (s Scope) IsZero() bool {
	return id.IsNil(s.tenantID)
}

// Validate rejects the zero Scope. Repositories call this before building
// any query.
func (s Scope) Validate() error {
	if s.IsZero() {
		return apperror.NewTenantRequired()
	}
	return nil
}

// --- Context carrying (HTTP layer only) ---
//
// The scope rides the request context between middleware and handlers.
// Below the handler layer it is always an explicit parameter.

type scopeKey struct{}

// WithScope stores the resolved scope in the request context.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFromContext extracts the scope from the request context.
// Fails closed: a missing or zero scope is an error, never a wildcard.
func ScopeFromContext(ctx context.Context) (Scope, error) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	if !ok || s.IsZero() {
		return Scope{}, apperror.NewTenantRequired()
	}
	return s, nil
}
