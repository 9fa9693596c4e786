package ledger

import (
	"context"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
)

// Config tunes the ledger write path.
type Config struct {
	// EnforceSufficiency rejects issues and transfers that would drive a
	// source balance negative. When disabled the fold may go negative and
	// operators reconcile after the fact.
	EnforceSufficiency bool

	// MaintainRunningTotals keeps the running-total register updated in
	// the same transaction as each movement insert.
	MaintainRunningTotals bool

	// MaxConflictRetries is how many times a write is re-run after a
	// transient storage conflict before the conflict is surfaced.
	MaxConflictRetries int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		EnforceSufficiency:    true,
		MaintainRunningTotals: true,
		MaxConflictRetries:    3,
	}
}

// ReceiptInput describes a stock receipt request.
type ReceiptInput struct {
	ItemID       id.ID
	Quantity     types.Quantity
	ToLocationID id.ID
	Reference    string
	Note         string
}

// IssueInput describes a stock issue request.
type IssueInput struct {
	ItemID         id.ID
	Quantity       types.Quantity
	FromLocationID id.ID
	Reference      string
	Note           string
}

// TransferInput describes a stock transfer request.
type TransferInput struct {
	ItemID         id.ID
	Quantity       types.Quantity
	FromLocationID id.ID
	ToLocationID   id.ID
	Reference      string
	Note           string
}

// Service implements the stock ledger operations: recording movements,
// projecting balances and reconciling the running-total register.
type Service struct {
	repo    Repository
	catalog CatalogLookup
	txm     tx.ReadOnlyManager
	cfg     Config
}

// NewService creates a ledger service.
func NewService(repo Repository, catalog CatalogLookup, txm tx.ReadOnlyManager, cfg Config) *Service {
	if cfg.MaxConflictRetries < 0 {
		cfg.MaxConflictRetries = 0
	}
	return &Service{repo: repo, catalog: catalog, txm: txm, cfg: cfg}
}

// RecordReceipt appends a receipt movement crediting the destination.
func (s *Service) RecordReceipt(ctx context.Context, scope tenant.Scope, in ReceiptInput) (*Movement, error) {
	m := NewReceipt(in.ItemID, in.Quantity, in.ToLocationID)
	m.SetReference(in.Reference)
	m.SetNote(in.Note)
	return s.record(ctx, scope, m)
}

// RecordIssue appends an issue movement debiting the source. Fails with
// INSUFFICIENT_STOCK when the source balance cannot cover the quantity.
func (s *Service) RecordIssue(ctx context.Context, scope tenant.Scope, in IssueInput) (*Movement, error) {
	m := NewIssue(in.ItemID, in.Quantity, in.FromLocationID)
	m.SetReference(in.Reference)
	m.SetNote(in.Note)
	return s.record(ctx, scope, m)
}

// RecordTransfer appends a transfer movement. Sufficiency is checked against
// the source only; the credit side needs no stock.
func (s *Service) RecordTransfer(ctx context.Context, scope tenant.Scope, in TransferInput) (*Movement, error) {
	m := NewTransfer(in.ItemID, in.Quantity, in.FromLocationID, in.ToLocationID)
	m.SetReference(in.Reference)
	m.SetNote(in.Note)
	return s.record(ctx, scope, m)
}

// record runs the shared write path: structural validation, catalog
// resolution, then the transactional lock / sufficiency check / insert.
// Nothing is persisted if any step fails.
func (s *Service) record(ctx context.Context, scope tenant.Scope, m *Movement) (*Movement, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if !id.IsNil(m.TenantID) && m.TenantID != scope.TenantID() {
		return nil, apperror.NewTenantMismatch("movement", m.ID.String())
	}
	m.TenantID = scope.TenantID()

	if err := m.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.catalog.LookupItem(ctx, scope, m.ItemID); err != nil {
		return nil, err
	}
	if loc, ok := m.DebitLocation(); ok {
		if err := s.catalog.LookupLocation(ctx, scope, loc); err != nil {
			return nil, err
		}
	}
	if loc, ok := m.CreditLocation(); ok {
		if err := s.catalog.LookupLocation(ctx, scope, loc); err != nil {
			return nil, err
		}
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = s.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
			return s.persist(txCtx, scope, m)
		})
		if err == nil {
			break
		}
		if !apperror.IsStorageConflict(err) || attempt >= s.cfg.MaxConflictRetries {
			return nil, err
		}
		logger.Warn(ctx, "movement write conflict, retrying",
			"movement_id", m.ID, "attempt", attempt+1)
	}

	logger.Info(ctx, "movement recorded",
		"movement_id", m.ID,
		"kind", string(m.Kind),
		"item_id", m.ItemID,
		"quantity", m.Quantity.Int64(),
	)
	return m, nil
}

// persist is the in-transaction portion of a write. The debit cell is locked
// before the balance fold so two writers draining the same cell serialize and
// the second one sees the first one's movement.
func (s *Service) persist(ctx context.Context, scope tenant.Scope, m *Movement) error {
	if debitLoc, ok := m.DebitLocation(); ok && s.cfg.EnforceSufficiency {
		if err := s.repo.LockStock(ctx, scope, m.ItemID, debitLoc); err != nil {
			return err
		}
		available, err := s.repo.ProjectBalance(ctx, scope, m.ItemID, debitLoc)
		if err != nil {
			return err
		}
		if available.Sub(m.Quantity).IsNegative() {
			return apperror.NewInsufficientStock(
				m.ItemID.String(), debitLoc.String(),
				m.Quantity.Int64(), available.Int64(),
			)
		}
	}

	if err := s.repo.Insert(ctx, scope, m); err != nil {
		return err
	}

	if s.cfg.MaintainRunningTotals {
		if err := s.repo.ApplyDeltas(ctx, scope, m.BalanceDeltas()); err != nil {
			return err
		}
	}
	return nil
}

// GetBalance projects the on-hand quantity for one (item, location) cell.
func (s *Service) GetBalance(ctx context.Context, scope tenant.Scope, itemID, locationID id.ID) (types.Quantity, error) {
	if err := s.catalog.LookupItem(ctx, scope, itemID); err != nil {
		return 0, err
	}
	if err := s.catalog.LookupLocation(ctx, scope, locationID); err != nil {
		return 0, err
	}
	return s.repo.ProjectBalance(ctx, scope, itemID, locationID)
}

// GetItemStock projects the per-location stock breakdown of one item.
// An item with no movements yields an empty breakdown and zero total.
func (s *Service) GetItemStock(ctx context.Context, scope tenant.Scope, itemID id.ID) (*ItemStock, error) {
	if err := s.catalog.LookupItem(ctx, scope, itemID); err != nil {
		return nil, err
	}

	balances, err := s.repo.ProjectStockByItem(ctx, scope, itemID)
	if err != nil {
		return nil, err
	}

	stock := &ItemStock{
		ItemID:    itemID,
		Locations: balances,
		AsOf:      time.Now().UTC(),
	}
	for _, b := range balances {
		stock.Total = stock.Total.Add(b.Quantity)
	}
	return stock, nil
}

// ListMovements returns the movement history of one item, newest first.
func (s *Service) ListMovements(ctx context.Context, scope tenant.Scope, itemID id.ID, filter MovementFilter) ([]Movement, int64, error) {
	if err := s.catalog.LookupItem(ctx, scope, itemID); err != nil {
		return nil, 0, err
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultMovementFilter().Limit
	}
	return s.repo.ListByItem(ctx, scope, itemID, filter)
}

// Reconcile compares the running-total register against a full replay of the
// movement log inside one read-only transaction, so both sides see the same
// snapshot. Mismatched cells are reported, not repaired.
func (s *Service) Reconcile(ctx context.Context, scope tenant.Scope) (*ReconcileReport, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	report := &ReconcileReport{
		Enabled:   s.cfg.MaintainRunningTotals,
		CheckedAt: time.Now().UTC(),
	}
	if !s.cfg.MaintainRunningTotals {
		return report, nil
	}

	err := s.txm.ReadOnly(ctx, func(txCtx context.Context) error {
		stored, err := s.repo.RunningTotals(txCtx, scope)
		if err != nil {
			return err
		}
		replayed, err := s.repo.ReplayTotals(txCtx, scope)
		if err != nil {
			return err
		}

		storedByKey := make(map[TotalKey]types.Quantity, len(stored))
		for _, t := range stored {
			storedByKey[TotalKey{ItemID: t.ItemID, LocationID: t.LocationID}] = t.Quantity
		}

		seen := make(map[TotalKey]struct{}, len(replayed))
		for _, t := range replayed {
			key := TotalKey{ItemID: t.ItemID, LocationID: t.LocationID}
			seen[key] = struct{}{}
			if storedByKey[key] != t.Quantity {
				report.Mismatches = append(report.Mismatches, TotalMismatch{
					TotalKey: key,
					Stored:   storedByKey[key],
					Replayed: t.Quantity,
				})
			}
		}
		// Register rows with no movements behind them are stale cells.
		for key, qty := range storedByKey {
			if _, ok := seen[key]; ok {
				continue
			}
			if qty != 0 {
				report.Mismatches = append(report.Mismatches, TotalMismatch{
					TotalKey: key,
					Stored:   qty,
					Replayed: 0,
				})
			}
			seen[key] = struct{}{}
		}
		report.CellsSeen = len(seen)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent() {
		logger.Error(ctx, "running totals diverged from movement log",
			"mismatches", len(report.Mismatches))
	}
	return report, nil
}
