// Package catalog ties the item and location catalogs together for
// consumers that only need reference resolution.
package catalog

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/domain/catalog/item"
	"stockledger/internal/domain/catalog/location"
	"stockledger/internal/domain/ledger"
)

// Lookup resolves ledger references against both catalogs. Tombstoned and
// foreign-tenant rows resolve as not found.
type Lookup struct {
	items     *item.Service
	locations *location.Service
}

// Compile-time check.
var _ ledger.CatalogLookup = (*Lookup)(nil)

// NewLookup creates a catalog lookup over both services.
func NewLookup(items *item.Service, locations *location.Service) *Lookup {
	return &Lookup{items: items, locations: locations}
}

// LookupItem resolves an item reference.
func (l *Lookup) LookupItem(ctx context.Context, scope tenant.Scope, itemID id.ID) error {
	_, err := l.items.Lookup(ctx, scope, itemID)
	return err
}

// LookupLocation resolves a location reference.
func (l *Lookup) LookupLocation(ctx context.Context, scope tenant.Scope, locationID id.ID) error {
	_, err := l.locations.Lookup(ctx, scope, locationID)
	return err
}
