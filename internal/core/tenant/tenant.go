// Package tenant provides the tenant isolation boundary for the service.
// All tenants share one PostgreSQL database; every tenant-owned row carries
// a tenant_id column and every query is filtered by an explicit Scope.
package tenant

import (
	"errors"
	"time"

	"stockledger/internal/core/id"
)

// Errors for tenant resolution.
var (
	// ErrTenantNotFound is returned when the tenant does not exist.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantNotActive is returned when the tenant exists but is not active.
	ErrTenantNotActive = errors.New("tenant is not active")
)

// Status represents tenant lifecycle state.
type Status string

const (
	// StatusActive - tenant can accept requests
	StatusActive Status = "active"

	// StatusSuspended - tenant is temporarily disabled (e.g., payment issues)
	StatusSuspended Status = "suspended"
)

// Tenant represents a tenant record.
type Tenant struct {
	ID        id.ID     `db:"id"`
	Slug      string    `db:"slug"` // URL-safe identifier
	Name      string    `db:"name"` // Human-readable name
	Status    Status    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsActive returns true if tenant can accept requests.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}
