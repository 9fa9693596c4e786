// Package ledger provides the tenant-isolated stock ledger: an append-only
// log of stock movements and the balance projection derived from it.
package ledger

import (
	"context"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Kind defines the movement type.
type Kind string

const (
	// KindReceipt credits stock into a destination location
	KindReceipt Kind = "receipt"
	// KindIssue debits stock from a source location
	KindIssue Kind = "issue"
	// KindTransfer debits the source and credits the destination
	KindTransfer Kind = "transfer"
)

const (
	maxReferenceLength = 100
	maxNoteLength      = 1000
)

// Movement is one immutable ledger entry. Movements are never updated or
// deleted; corrections are made by appending compensating movements.
type Movement struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// TenantID is the owning tenant, stamped from the active scope
	TenantID id.ID `db:"tenant_id" json:"-"`

	// ItemID references the moved item
	ItemID id.ID `db:"item_id" json:"itemId"`

	// Kind: receipt, issue or transfer
	Kind Kind `db:"kind" json:"kind"`

	// Quantity is strictly positive; direction comes from Kind
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// FromLocationID is the debited location (issue/transfer)
	FromLocationID *id.ID `db:"from_location_id" json:"fromLocationId,omitempty"`

	// ToLocationID is the credited location (receipt/transfer)
	ToLocationID *id.ID `db:"to_location_id" json:"toLocationId,omitempty"`

	// Reference is an optional external document reference
	Reference *string `db:"reference" json:"reference,omitempty"`

	// Note is an optional free-form comment
	Note *string `db:"note" json:"note,omitempty"`

	// CreatedAt is when the movement was recorded
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewReceipt creates a receipt movement crediting the destination.
func NewReceipt(itemID id.ID, qty types.Quantity, toLocationID id.ID) *Movement {
	return &Movement{
		ID:           id.New(),
		ItemID:       itemID,
		Kind:         KindReceipt,
		Quantity:     qty,
		ToLocationID: &toLocationID,
		CreatedAt:    time.Now().UTC(),
	}
}

// NewIssue creates an issue movement debiting the source.
func NewIssue(itemID id.ID, qty types.Quantity, fromLocationID id.ID) *Movement {
	return &Movement{
		ID:             id.New(),
		ItemID:         itemID,
		Kind:           KindIssue,
		Quantity:       qty,
		FromLocationID: &fromLocationID,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewTransfer creates a transfer movement debiting the source and crediting
// the destination.
func NewTransfer(itemID id.ID, qty types.Quantity, fromLocationID, toLocationID id.ID) *Movement {
	return &Movement{
		ID:             id.New(),
		ItemID:         itemID,
		Kind:           KindTransfer,
		Quantity:       qty,
		FromLocationID: &fromLocationID,
		ToLocationID:   &toLocationID,
		CreatedAt:      time.Now().UTC(),
	}
}

// SetReference attaches an external reference.
func (m *Movement) SetReference(ref string) {
	if ref == "" {
		m.Reference = nil
		return
	}
	m.Reference = &ref
}

// SetNote attaches a note.
func (m *Movement) SetNote(note string) {
	if note == "" {
		m.Note = nil
		return
	}
	m.Note = &note
}

// Validate checks structural invariants of the movement. Catalog existence
// and sufficiency are checked separately; this covers shape only.
func (m *Movement) Validate(ctx context.Context) error {
	if id.IsNil(m.ItemID) {
		return apperror.NewValidation("item id is required").
			WithDetail("field", "itemId")
	}

	if !m.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be a positive integer").
			WithDetail("field", "quantity").
			WithDetail("value", m.Quantity.Int64())
	}

	switch m.Kind {
	case KindReceipt:
		if m.ToLocationID == nil || id.IsNil(*m.ToLocationID) {
			return apperror.NewValidation("receipt requires a destination location").
				WithDetail("field", "toLocationId")
		}
		if m.FromLocationID != nil {
			return apperror.NewValidation("receipt must not have a source location").
				WithDetail("field", "fromLocationId")
		}
	case KindIssue:
		if m.FromLocationID == nil || id.IsNil(*m.FromLocationID) {
			return apperror.NewValidation("issue requires a source location").
				WithDetail("field", "fromLocationId")
		}
		if m.ToLocationID != nil {
			return apperror.NewValidation("issue must not have a destination location").
				WithDetail("field", "toLocationId")
		}
	case KindTransfer:
		if m.FromLocationID == nil || id.IsNil(*m.FromLocationID) {
			return apperror.NewValidation("transfer requires a source location").
				WithDetail("field", "fromLocationId")
		}
		if m.ToLocationID == nil || id.IsNil(*m.ToLocationID) {
			return apperror.NewValidation("transfer requires a destination location").
				WithDetail("field", "toLocationId")
		}
		if *m.FromLocationID == *m.ToLocationID {
			return apperror.NewValidation("transfer source and destination must differ").
				WithDetail("fromLocationId", m.FromLocationID.String()).
				WithDetail("toLocationId", m.ToLocationID.String())
		}
	default:
		return apperror.NewValidation("invalid movement kind").
			WithDetail("field", "kind").
			WithDetail("value", string(m.Kind))
	}

	if m.Reference != nil && len(*m.Reference) > maxReferenceLength {
		return apperror.NewValidation("reference is too long").
			WithDetail("field", "reference").
			WithDetail("max_length", maxReferenceLength)
	}
	if m.Note != nil && len(*m.Note) > maxNoteLength {
		return apperror.NewValidation("note is too long").
			WithDetail("field", "note").
			WithDetail("max_length", maxNoteLength)
	}

	return nil
}

// DebitLocation returns the location this movement debits, if any.
func (m *Movement) DebitLocation() (id.ID, bool) {
	if m.Kind == KindIssue || m.Kind == KindTransfer {
		if m.FromLocationID != nil {
			return *m.FromLocationID, true
		}
	}
	return id.Nil(), false
}

// CreditLocation returns the location this movement credits, if any.
func (m *Movement) CreditLocation() (id.ID, bool) {
	if m.Kind == KindReceipt || m.Kind == KindTransfer {
		if m.ToLocationID != nil {
			return *m.ToLocationID, true
		}
	}
	return id.Nil(), false
}

// BalanceDeltas returns the signed per-location effect of this movement,
// used to maintain the optional running-total register.
func (m *Movement) BalanceDeltas() []BalanceDelta {
	deltas := make([]BalanceDelta, 0, 2)
	if loc, ok := m.DebitLocation(); ok {
		deltas = append(deltas, BalanceDelta{
			ItemID:     m.ItemID,
			LocationID: loc,
			Delta:      m.Quantity.Neg(),
		})
	}
	if loc, ok := m.CreditLocation(); ok {
		deltas = append(deltas, BalanceDelta{
			ItemID:     m.ItemID,
			LocationID: loc,
			Delta:      m.Quantity,
		})
	}
	return deltas
}
