package ledger

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// BalanceDelta is the signed effect of a movement on one (item, location) cell.
type BalanceDelta struct {
	ItemID     id.ID
	LocationID id.ID
	Delta      types.Quantity
}

// LocationBalance is the projected on-hand quantity of an item at one
// location, decorated with the location identity for API responses.
type LocationBalance struct {
	LocationID   id.ID          `db:"location_id" json:"locationId"`
	LocationCode string         `db:"location_code" json:"locationCode"`
	LocationName string         `db:"location_name" json:"locationName"`
	Quantity     types.Quantity `db:"quantity" json:"quantity"`
}

// ItemStock is the per-location stock breakdown of one item.
type ItemStock struct {
	ItemID    id.ID             `json:"itemId"`
	Locations []LocationBalance `json:"locations"`
	Total     types.Quantity    `json:"total"`
	AsOf      time.Time         `json:"asOf"`
}

// RunningTotal is one row of the optional running-total register.
type RunningTotal struct {
	ItemID     id.ID          `db:"item_id" json:"itemId"`
	LocationID id.ID          `db:"location_id" json:"locationId"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
}

// TotalKey identifies one running-total cell.
type TotalKey struct {
	ItemID     id.ID `json:"itemId"`
	LocationID id.ID `json:"locationId"`
}

// TotalMismatch is one divergence between the running-total register and the
// balance replayed from the movement log. The log is the source of truth.
type TotalMismatch struct {
	TotalKey
	Stored   types.Quantity `json:"stored"`
	Replayed types.Quantity `json:"replayed"`
}

// ReconcileReport is the outcome of comparing the running-total register
// against a full replay of the movement log.
type ReconcileReport struct {
	Enabled    bool            `json:"enabled"`
	CellsSeen  int             `json:"cellsSeen"`
	Mismatches []TotalMismatch `json:"mismatches"`
	CheckedAt  time.Time       `json:"checkedAt"`
}

// Consistent reports whether the register matched the replay.
func (r *ReconcileReport) Consistent() bool {
	return len(r.Mismatches) == 0
}
