package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/types"
)

// fakeRepo folds an in-memory movement log, mirroring what the SQL
// projections do, so service semantics can be tested without a database.
type fakeRepo struct {
	movements []Movement
	totals    map[TotalKey]types.Quantity

	insertErrs []error // consumed one per Insert call
	inserts    int
	locks      int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{totals: make(map[TotalKey]types.Quantity)}
}

func (r *fakeRepo) Insert(ctx context.Context, scope tenant.Scope, m *Movement) error {
	r.inserts++
	if len(r.insertErrs) > 0 {
		err := r.insertErrs[0]
		r.insertErrs = r.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	r.movements = append(r.movements, *m)
	return nil
}

func (r *fakeRepo) LockStock(ctx context.Context, scope tenant.Scope, itemID, locationID id.ID) error {
	r.locks++
	return nil
}

func (r *fakeRepo) ProjectBalance(ctx context.Context, scope tenant.Scope, itemID, locationID id.ID) (types.Quantity, error) {
	var total types.Quantity
	for _, m := range r.movements {
		if m.TenantID != scope.TenantID() || m.ItemID != itemID {
			continue
		}
		if m.ToLocationID != nil && *m.ToLocationID == locationID {
			total = total.Add(m.Quantity)
		}
		if m.FromLocationID != nil && *m.FromLocationID == locationID {
			total = total.Sub(m.Quantity)
		}
	}
	return total, nil
}

func (r *fakeRepo) ProjectStockByItem(ctx context.Context, scope tenant.Scope, itemID id.ID) ([]LocationBalance, error) {
	perLoc := make(map[id.ID]types.Quantity)
	for _, m := range r.movements {
		if m.TenantID != scope.TenantID() || m.ItemID != itemID {
			continue
		}
		if m.ToLocationID != nil {
			perLoc[*m.ToLocationID] = perLoc[*m.ToLocationID].Add(m.Quantity)
		}
		if m.FromLocationID != nil {
			perLoc[*m.FromLocationID] = perLoc[*m.FromLocationID].Sub(m.Quantity)
		}
	}
	out := make([]LocationBalance, 0, len(perLoc))
	for loc, qty := range perLoc {
		out = append(out, LocationBalance{LocationID: loc, Quantity: qty})
	}
	return out, nil
}

func (r *fakeRepo) ListByItem(ctx context.Context, scope tenant.Scope, itemID id.ID, filter MovementFilter) ([]Movement, int64, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.TenantID == scope.TenantID() && m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) ApplyDeltas(ctx context.Context, scope tenant.Scope, deltas []BalanceDelta) error {
	for _, d := range deltas {
		key := TotalKey{ItemID: d.ItemID, LocationID: d.LocationID}
		r.totals[key] = r.totals[key].Add(d.Delta)
	}
	return nil
}

func (r *fakeRepo) RunningTotals(ctx context.Context, scope tenant.Scope) ([]RunningTotal, error) {
	out := make([]RunningTotal, 0, len(r.totals))
	for key, qty := range r.totals {
		out = append(out, RunningTotal{ItemID: key.ItemID, LocationID: key.LocationID, Quantity: qty})
	}
	return out, nil
}

func (r *fakeRepo) ReplayTotals(ctx context.Context, scope tenant.Scope) ([]RunningTotal, error) {
	perCell := make(map[TotalKey]types.Quantity)
	for _, m := range r.movements {
		if m.TenantID != scope.TenantID() {
			continue
		}
		for _, d := range m.BalanceDeltas() {
			key := TotalKey{ItemID: d.ItemID, LocationID: d.LocationID}
			perCell[key] = perCell[key].Add(d.Delta)
		}
	}
	out := make([]RunningTotal, 0, len(perCell))
	for key, qty := range perCell {
		out = append(out, RunningTotal{ItemID: key.ItemID, LocationID: key.LocationID, Quantity: qty})
	}
	return out, nil
}

// fakeCatalog knows a fixed set of ids per tenant.
type fakeCatalog struct {
	items     map[id.ID]id.ID // item id -> owning tenant
	locations map[id.ID]id.ID
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		items:     make(map[id.ID]id.ID),
		locations: make(map[id.ID]id.ID),
	}
}

func (c *fakeCatalog) LookupItem(ctx context.Context, scope tenant.Scope, itemID id.ID) error {
	if owner, ok := c.items[itemID]; ok && owner == scope.TenantID() {
		return nil
	}
	return apperror.NewNotFound("item", itemID.String())
}

func (c *fakeCatalog) LookupLocation(ctx context.Context, scope tenant.Scope, locationID id.ID) error {
	if owner, ok := c.locations[locationID]; ok && owner == scope.TenantID() {
		return nil
	}
	return apperror.NewNotFound("location", locationID.String())
}

// fakeTxManager just invokes fn; the fakes need no real transaction.
type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (fakeTxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	service *Service
	repo    *fakeRepo
	catalog *fakeCatalog
	scope   tenant.Scope
	itemID  id.ID
	locA    id.ID
	locB    id.ID
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	scope, err := tenant.NewScope(id.New())
	require.NoError(t, err)

	f := &fixture{
		repo:    newFakeRepo(),
		catalog: newFakeCatalog(),
		scope:   scope,
		itemID:  id.New(),
		locA:    id.New(),
		locB:    id.New(),
	}
	f.catalog.items[f.itemID] = scope.TenantID()
	f.catalog.locations[f.locA] = scope.TenantID()
	f.catalog.locations[f.locB] = scope.TenantID()
	f.service = NewService(f.repo, f.catalog, fakeTxManager{}, cfg)
	return f
}

func (f *fixture) receipt(t *testing.T, qty int64, to id.ID) *Movement {
	t.Helper()
	m, err := f.service.RecordReceipt(context.Background(), f.scope, ReceiptInput{
		ItemID:       f.itemID,
		Quantity:     types.NewQuantity(qty),
		ToLocationID: to,
	})
	require.NoError(t, err)
	return m
}

func TestRecordMovements_BalanceFlow(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	// Receipt 100 into A.
	f.receipt(t, 100, f.locA)

	// Transfer 40 from A to B.
	_, err := f.service.RecordTransfer(ctx, f.scope, TransferInput{
		ItemID:         f.itemID,
		Quantity:       types.NewQuantity(40),
		FromLocationID: f.locA,
		ToLocationID:   f.locB,
	})
	require.NoError(t, err)

	balA, err := f.service.GetBalance(ctx, f.scope, f.itemID, f.locA)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balA.Int64())

	balB, err := f.service.GetBalance(ctx, f.scope, f.itemID, f.locB)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balB.Int64())

	// Issue 70 from A must fail: only 60 available.
	_, err = f.service.RecordIssue(ctx, f.scope, IssueInput{
		ItemID:         f.itemID,
		Quantity:       types.NewQuantity(70),
		FromLocationID: f.locA,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, int64(70), appErr.Details["requested"])
	assert.Equal(t, int64(60), appErr.Details["available"])

	// Issue 60 from A succeeds and drains the cell.
	_, err = f.service.RecordIssue(ctx, f.scope, IssueInput{
		ItemID:         f.itemID,
		Quantity:       types.NewQuantity(60),
		FromLocationID: f.locA,
	})
	require.NoError(t, err)

	balA, err = f.service.GetBalance(ctx, f.scope, f.itemID, f.locA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balA.Int64())
}

func TestTwoWritersDrainingOneCell(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	f.receipt(t, 100, f.locA)

	// Two writers each want 60 from a cell holding 100. The lock serializes
	// them, so the second one folds over the first one's movement and fails.
	issue := IssueInput{
		ItemID:         f.itemID,
		Quantity:       types.NewQuantity(60),
		FromLocationID: f.locA,
	}

	_, firstErr := f.service.RecordIssue(ctx, f.scope, issue)
	_, secondErr := f.service.RecordIssue(ctx, f.scope, issue)

	require.NoError(t, firstErr)
	require.Error(t, secondErr)
	assert.True(t, apperror.IsInsufficientStock(secondErr))

	bal, err := f.service.GetBalance(ctx, f.scope, f.itemID, f.locA)
	require.NoError(t, err)
	assert.Equal(t, int64(40), bal.Int64())
}

func TestRecordTransfer_ConservesTotal(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	f.receipt(t, 100, f.locA)

	_, err := f.service.RecordTransfer(ctx, f.scope, TransferInput{
		ItemID:         f.itemID,
		Quantity:       types.NewQuantity(35),
		FromLocationID: f.locA,
		ToLocationID:   f.locB,
	})
	require.NoError(t, err)

	stock, err := f.service.GetItemStock(ctx, f.scope, f.itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stock.Total.Int64())
	assert.Len(t, stock.Locations, 2)
}

func TestRecordTransfer_SameEndpointsRejected(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	f.receipt(t, 10, f.locA)
	before := f.repo.inserts

	_, err := f.service.RecordTransfer(context.Background(), f.scope, TransferInput{
		ItemID:         f.itemID,
		Quantity:       types.NewQuantity(5),
		FromLocationID: f.locA,
		ToLocationID:   f.locA,
	})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, before, f.repo.inserts, "nothing may be persisted")
}

func TestRecord_ZeroAndNegativeQuantityRejected(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	for _, qty := range []int64{0, -5} {
		_, err := f.service.RecordReceipt(ctx, f.scope, ReceiptInput{
			ItemID:       f.itemID,
			Quantity:     types.NewQuantity(qty),
			ToLocationID: f.locA,
		})
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeValidation, appErr.Code)
	}
	assert.Zero(t, f.repo.inserts)
}

func TestRecord_ForeignItemIsNotFound(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	// Item exists but belongs to a different tenant.
	foreignItem := id.New()
	f.catalog.items[foreignItem] = id.New()

	_, err := f.service.RecordReceipt(context.Background(), f.scope, ReceiptInput{
		ItemID:       foreignItem,
		Quantity:     types.NewQuantity(1),
		ToLocationID: f.locA,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
	assert.Zero(t, f.repo.inserts)
}

func TestRecord_RetriesOnStorageConflict(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	conflict := apperror.NewStorageConflict(nil)
	f.repo.insertErrs = []error{conflict, conflict, nil}

	m := f.receipt(t, 10, f.locA)
	assert.Equal(t, 3, f.repo.inserts)
	assert.Equal(t, KindReceipt, m.Kind)
}

func TestRecord_ConflictRetriesExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConflictRetries = 1
	f := newFixture(t, cfg)

	conflict := apperror.NewStorageConflict(nil)
	f.repo.insertErrs = []error{conflict, conflict, conflict}

	_, err := f.service.RecordReceipt(context.Background(), f.scope, ReceiptInput{
		ItemID:       f.itemID,
		Quantity:     types.NewQuantity(10),
		ToLocationID: f.locA,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsStorageConflict(err))
	assert.Equal(t, 2, f.repo.inserts)
}

func TestRecord_SufficiencyDisabledAllowsNegative(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnforceSufficiency = false
	f := newFixture(t, cfg)
	ctx := context.Background()

	_, err := f.service.RecordIssue(ctx, f.scope, IssueInput{
		ItemID:         f.itemID,
		Quantity:       types.NewQuantity(5),
		FromLocationID: f.locA,
	})
	require.NoError(t, err)
	assert.Zero(t, f.repo.locks, "no lock without the sufficiency check")

	bal, err := f.service.GetBalance(ctx, f.scope, f.itemID, f.locA)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), bal.Int64())
}

func TestReceipt_NeedsNoStock(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	f.receipt(t, 1, f.locA)
	assert.Zero(t, f.repo.locks, "receipts have no debit side to lock")
}

func TestReconcile_DetectsDrift(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	f.receipt(t, 100, f.locA)
	_, err := f.service.RecordTransfer(ctx, f.scope, TransferInput{
		ItemID:         f.itemID,
		Quantity:       types.NewQuantity(30),
		FromLocationID: f.locA,
		ToLocationID:   f.locB,
	})
	require.NoError(t, err)

	report, err := f.service.Reconcile(ctx, f.scope)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, 2, report.CellsSeen)

	// Corrupt one register cell.
	key := TotalKey{ItemID: f.itemID, LocationID: f.locA}
	f.repo.totals[key] = f.repo.totals[key].Add(types.NewQuantity(7))

	report, err = f.service.Reconcile(ctx, f.scope)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, key, report.Mismatches[0].TotalKey)
	assert.Equal(t, int64(77), report.Mismatches[0].Stored.Int64())
	assert.Equal(t, int64(70), report.Mismatches[0].Replayed.Int64())
}

func TestReconcile_ReportsStaleRegisterCell(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	// A register row with no movements behind it.
	stale := TotalKey{ItemID: id.New(), LocationID: id.New()}
	f.repo.totals[stale] = types.NewQuantity(12)

	report, err := f.service.Reconcile(context.Background(), f.scope)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, stale, report.Mismatches[0].TotalKey)
	assert.Equal(t, int64(0), report.Mismatches[0].Replayed.Int64())
}

func TestReconcile_DisabledTotals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaintainRunningTotals = false
	f := newFixture(t, cfg)

	report, err := f.service.Reconcile(context.Background(), f.scope)
	require.NoError(t, err)
	assert.False(t, report.Enabled)
	assert.True(t, report.Consistent())
}

func TestReconcile_RequiresScope(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	_, err := f.service.Reconcile(context.Background(), tenant.Scope{})
	require.Error(t, err)
}

func TestListMovements_DefaultsLimit(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	f.receipt(t, 10, f.locA)
	f.receipt(t, 20, f.locA)

	movements, total, err := f.service.ListMovements(context.Background(), f.scope, f.itemID, MovementFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, movements, 2)
}
