package ledger

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/types"
)

// MovementFilter narrows movement history queries. Zero values mean "any".
type MovementFilter struct {
	Kind       *Kind
	LocationID *id.ID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// DefaultMovementFilter returns a filter with sane pagination defaults.
func DefaultMovementFilter() MovementFilter {
	return MovementFilter{Limit: 50}
}

// Repository persists movements and projects balances. All methods run
// against the querier carried in ctx when inside a transaction, so the lock,
// the sufficiency check and the insert share one connection.
type Repository interface {
	// Insert appends one movement. Movements are never updated or deleted.
	Insert(ctx context.Context, scope tenant.Scope, m *Movement) error

	// LockStock serializes writers touching the same (item, location) cell
	// for the remainder of the current transaction.
	LockStock(ctx context.Context, scope tenant.Scope, itemID, locationID id.ID) error

	// ProjectBalance folds the movement log into the current on-hand
	// quantity for one (item, location) cell.
	ProjectBalance(ctx context.Context, scope tenant.Scope, itemID, locationID id.ID) (types.Quantity, error)

	// ProjectStockByItem folds the log per location for one item, joined
	// with location identity. Locations the item never touched are absent.
	ProjectStockByItem(ctx context.Context, scope tenant.Scope, itemID id.ID) ([]LocationBalance, error)

	// ListByItem returns the movement history of one item, newest first.
	ListByItem(ctx context.Context, scope tenant.Scope, itemID id.ID, filter MovementFilter) ([]Movement, int64, error)

	// ApplyDeltas folds movement deltas into the running-total register.
	ApplyDeltas(ctx context.Context, scope tenant.Scope, deltas []BalanceDelta) error

	// RunningTotals returns the stored running-total register.
	RunningTotals(ctx context.Context, scope tenant.Scope) ([]RunningTotal, error)

	// ReplayTotals recomputes every (item, location) cell from the
	// movement log alone.
	ReplayTotals(ctx context.Context, scope tenant.Scope) ([]RunningTotal, error)
}

// CatalogLookup resolves movement endpoints against the catalog. An id owned
// by another tenant or marked deleted must surface as not found.
type CatalogLookup interface {
	LookupItem(ctx context.Context, scope tenant.Scope, itemID id.ID) error
	LookupLocation(ctx context.Context, scope tenant.Scope, locationID id.ID) error
}
