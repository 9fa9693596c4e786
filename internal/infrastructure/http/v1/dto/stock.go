package dto

import (
	"time"

	"stockledger/internal/domain/ledger"
)

// --- Movement Requests ---

// ReceiptRequest is the request body for recording a stock receipt.
type ReceiptRequest struct {
	ItemID       string `json:"itemId" binding:"required,uuid"`
	Quantity     int64  `json:"quantity" binding:"required,gt=0"`
	ToLocationID string `json:"toLocationId" binding:"required,uuid"`
	Reference    string `json:"reference" binding:"omitempty,max=100"`
	Note         string `json:"note" binding:"omitempty,max=1000"`
}

// IssueRequest is the request body for recording a stock issue.
type IssueRequest struct {
	ItemID         string `json:"itemId" binding:"required,uuid"`
	Quantity       int64  `json:"quantity" binding:"required,gt=0"`
	FromLocationID string `json:"fromLocationId" binding:"required,uuid"`
	Reference      string `json:"reference" binding:"omitempty,max=100"`
	Note           string `json:"note" binding:"omitempty,max=1000"`
}

// TransferRequest is the request body for recording a stock transfer.
type TransferRequest struct {
	ItemID         string `json:"itemId" binding:"required,uuid"`
	Quantity       int64  `json:"quantity" binding:"required,gt=0"`
	FromLocationID string `json:"fromLocationId" binding:"required,uuid"`
	ToLocationID   string `json:"toLocationId" binding:"required,uuid"`
	Reference      string `json:"reference" binding:"omitempty,max=100"`
	Note           string `json:"note" binding:"omitempty,max=1000"`
}

// --- Movement Responses ---

// MovementResponse is the response body for one ledger movement.
type MovementResponse struct {
	ID             string    `json:"id"`
	ItemID         string    `json:"itemId"`
	Kind           string    `json:"kind"`
	Quantity       int64     `json:"quantity"`
	FromLocationID *string   `json:"fromLocationId,omitempty"`
	ToLocationID   *string   `json:"toLocationId,omitempty"`
	Reference      *string   `json:"reference,omitempty"`
	Note           *string   `json:"note,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FromMovement converts a ledger movement to a response DTO.
func FromMovement(m *ledger.Movement) MovementResponse {
	resp := MovementResponse{
		ID:        m.ID.String(),
		ItemID:    m.ItemID.String(),
		Kind:      string(m.Kind),
		Quantity:  m.Quantity.Int64(),
		Reference: m.Reference,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
	}
	if m.FromLocationID != nil {
		s := m.FromLocationID.String()
		resp.FromLocationID = &s
	}
	if m.ToLocationID != nil {
		s := m.ToLocationID.String()
		resp.ToLocationID = &s
	}
	return resp
}

// MovementListResponse wraps a movement history page.
type MovementListResponse struct {
	Items      []MovementResponse `json:"items"`
	TotalCount int64              `json:"totalCount"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// --- Stock Responses ---

// LocationBalanceResponse is the per-location stock of one item.
type LocationBalanceResponse struct {
	LocationID   string `json:"locationId"`
	LocationCode string `json:"locationCode"`
	LocationName string `json:"locationName"`
	Quantity     int64  `json:"quantity"`
}

// ItemStockResponse is the stock breakdown of one item.
type ItemStockResponse struct {
	ItemID    string                    `json:"itemId"`
	Locations []LocationBalanceResponse `json:"locations"`
	Total     int64                     `json:"total"`
	AsOf      time.Time                 `json:"asOf"`
}

// FromItemStock converts a projected item stock to a response DTO.
func FromItemStock(s *ledger.ItemStock) ItemStockResponse {
	locations := make([]LocationBalanceResponse, len(s.Locations))
	for i, b := range s.Locations {
		locations[i] = LocationBalanceResponse{
			LocationID:   b.LocationID.String(),
			LocationCode: b.LocationCode,
			LocationName: b.LocationName,
			Quantity:     b.Quantity.Int64(),
		}
	}
	return ItemStockResponse{
		ItemID:    s.ItemID.String(),
		Locations: locations,
		Total:     s.Total.Int64(),
		AsOf:      s.AsOf,
	}
}

// --- Reconcile Response ---

// TotalMismatchResponse is one running-total divergence.
type TotalMismatchResponse struct {
	ItemID     string `json:"itemId"`
	LocationID string `json:"locationId"`
	Stored     int64  `json:"stored"`
	Replayed   int64  `json:"replayed"`
}

// ReconcileResponse is the outcome of a reconcile run.
type ReconcileResponse struct {
	Enabled    bool                    `json:"enabled"`
	Consistent bool                    `json:"consistent"`
	CellsSeen  int                     `json:"cellsSeen"`
	Mismatches []TotalMismatchResponse `json:"mismatches"`
	CheckedAt  time.Time               `json:"checkedAt"`
}

// FromReconcileReport converts a reconcile report to a response DTO.
func FromReconcileReport(r *ledger.ReconcileReport) ReconcileResponse {
	mismatches := make([]TotalMismatchResponse, len(r.Mismatches))
	for i, m := range r.Mismatches {
		mismatches[i] = TotalMismatchResponse{
			ItemID:     m.ItemID.String(),
			LocationID: m.LocationID.String(),
			Stored:     m.Stored.Int64(),
			Replayed:   m.Replayed.Int64(),
		}
	}
	return ReconcileResponse{
		Enabled:    r.Enabled,
		Consistent: r.Consistent(),
		CellsSeen:  r.CellsSeen,
		Mismatches: mismatches,
		CheckedAt:  r.CheckedAt,
	}
}
