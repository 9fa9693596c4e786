package location

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/domain"
)

// Repository defines the interface for Location persistence.
type Repository interface {
	// Create inserts a new location stamped with the scope's tenant.
	Create(ctx context.Context, scope tenant.Scope, loc *Location) error

	// GetByID retrieves a location within the scope. Foreign-tenant rows
	// behave as nonexistent.
	GetByID(ctx context.Context, scope tenant.Scope, locationID id.ID) (*Location, error)

	// GetByCode retrieves a non-deleted location by code within the scope.
	GetByCode(ctx context.Context, scope tenant.Scope, code string) (*Location, error)

	// Update modifies an existing location with optimistic locking.
	Update(ctx context.Context, scope tenant.Scope, loc *Location) error

	// List retrieves locations with filtering and pagination.
	List(ctx context.Context, scope tenant.Scope, filter domain.ListFilter) (domain.ListResult[*Location], error)
}
