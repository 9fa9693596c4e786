package dto

import (
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalog/item"
)

// --- Request DTOs ---

// CreateItemRequest is the request body for creating an item.
type CreateItemRequest struct {
	SKU          string  `json:"sku" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	Category     *string `json:"category"`
	UoM          string  `json:"uom" binding:"required"`
	ReorderLevel int64   `json:"reorderLevel"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateItemRequest) ToEntity() *item.Item {
	it := item.NewItem(r.SKU, r.Name, r.UoM)
	it.Category = r.Category
	it.ReorderLevel = types.NewQuantity(r.ReorderLevel)
	return it
}

// UpdateItemRequest is the request body for updating an item.
type UpdateItemRequest struct {
	SKU          string  `json:"sku" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	Category     *string `json:"category"`
	UoM          string  `json:"uom" binding:"required"`
	ReorderLevel int64   `json:"reorderLevel"`
	Version      int     `json:"version" binding:"required,min=1"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateItemRequest) ApplyTo(it *item.Item) {
	it.SKU = r.SKU
	it.Name = r.Name
	it.Category = r.Category
	it.UoM = r.UoM
	it.ReorderLevel = types.NewQuantity(r.ReorderLevel)
	it.Version = r.Version
}

// --- Response DTOs ---

// ItemResponse is the response body for an item.
type ItemResponse struct {
	BaseResponse
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Category     *string `json:"category,omitempty"`
	UoM          string  `json:"uom"`
	ReorderLevel int64   `json:"reorderLevel"`
}

// FromItem converts domain entity to response DTO.
func FromItem(it *item.Item) ItemResponse {
	return ItemResponse{
		BaseResponse: FromBase(it.Base),
		SKU:          it.SKU,
		Name:         it.Name,
		Category:     it.Category,
		UoM:          it.UoM,
		ReorderLevel: it.ReorderLevel.Int64(),
	}
}

// FromItems converts a slice of items.
func FromItems(items []*item.Item) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i, it := range items {
		out[i] = FromItem(it)
	}
	return out
}
