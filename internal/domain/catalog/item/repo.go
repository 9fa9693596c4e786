package item

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/domain"
)

// Repository defines the interface for Item persistence.
// Every method takes the active tenant scope explicitly; there is no
// scope-less access path.
type Repository interface {
	// Create inserts a new item stamped with the scope's tenant.
	Create(ctx context.Context, scope tenant.Scope, item *Item) error

	// GetByID retrieves an item within the scope. Foreign-tenant rows
	// behave as nonexistent.
	GetByID(ctx context.Context, scope tenant.Scope, itemID id.ID) (*Item, error)

	// GetBySKU retrieves a non-deleted item by SKU within the scope.
	GetBySKU(ctx context.Context, scope tenant.Scope, sku string) (*Item, error)

	// Update modifies an existing item with optimistic locking.
	Update(ctx context.Context, scope tenant.Scope, item *Item) error

	// List retrieves items with filtering and pagination.
	List(ctx context.Context, scope tenant.Scope, filter domain.ListFilter) (domain.ListResult[*Item], error)
}
