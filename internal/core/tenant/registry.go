package tenant

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockledger/internal/core/id"
)

// Registry resolves tenant records for request scoping.
type Registry interface {
	// GetByID returns the tenant or ErrTenantNotFound.
	GetByID(ctx context.Context, tenantID id.ID) (*Tenant, error)

	// ResolveActive returns the tenant if it exists and is active.
	// Returns ErrTenantNotFound / ErrTenantNotActive otherwise.
	ResolveActive(ctx context.Context, tenantID id.ID) (*Tenant, error)
}

// PostgresRegistry implements Registry against the shared database.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistry creates a registry backed by the given pool.
func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

// GetByID returns the tenant row.
func (r *PostgresRegistry) GetByID(ctx context.Context, tenantID id.ID) (*Tenant, error) {
	var t Tenant
	err := pgxscan.Get(ctx, r.pool, &t, `
		SELECT id, slug, name, status, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`, tenantID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

// ResolveActive returns the tenant when it can accept requests.
func (r *PostgresRegistry) ResolveActive(ctx context.Context, tenantID id.ID) (*Tenant, error) {
	t, err := r.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, ErrTenantNotActive
	}
	return t, nil
}

// Ensure interface compliance.
var _ Registry = (*PostgresRegistry)(nil)
