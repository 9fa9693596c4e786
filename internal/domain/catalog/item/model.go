// Package item provides the inventory item catalog.
// Items are stock-keeping units referenced by ledger movements; the ledger
// reads them for identity only and never mutates them.
package item

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
)

const (
	maxSKULength  = 64
	maxNameLength = 255
)

// Item represents a stock-keeping unit.
type Item struct {
	entity.Base

	// SKU is a human-readable identifier, unique within the tenant
	SKU string `db:"sku" json:"sku"`

	// Name is the display name
	Name string `db:"name" json:"name"`

	// Category groups items for search/filtering
	Category *string `db:"category" json:"category,omitempty"`

	// UoM is the unit of measure (each, box, kg, ...)
	UoM string `db:"uom" json:"uom"`

	// ReorderLevel is informational only; the ledger never enforces it
	ReorderLevel types.Quantity `db:"reorder_level" json:"reorderLevel"`
}

// NewItem creates a new Item with required fields.
func NewItem(sku, name, uom string) *Item {
	return &Item{
		Base: entity.NewBase(),
		SKU:  sku,
		Name: name,
		UoM:  uom,
	}
}

// Validate implements entity.Validatable.
func (i *Item) Validate(ctx context.Context) error {
	if i.SKU == "" {
		return apperror.NewValidation("sku is required").
			WithDetail("field", "sku")
	}
	if len(i.SKU) > maxSKULength {
		return apperror.NewValidation("sku is too long").
			WithDetail("field", "sku").
			WithDetail("max_length", maxSKULength)
	}
	if i.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if len(i.Name) > maxNameLength {
		return apperror.NewValidation("name is too long").
			WithDetail("field", "name").
			WithDetail("max_length", maxNameLength)
	}
	if i.ReorderLevel.IsNegative() {
		return apperror.NewValidation("reorder level must not be negative").
			WithDetail("field", "reorderLevel")
	}
	return nil
}

// CanBeReferenced returns true if new movements may reference this item.
// Tombstoned items keep their historical movements but accept no new ones.
func (i *Item) CanBeReferenced() bool {
	return !i.DeletionMark
}
