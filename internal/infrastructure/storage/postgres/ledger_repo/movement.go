// Package ledger_repo provides the PostgreSQL implementation of the stock
// ledger repository: the append-only movement log, the balance projections
// and the running-total register.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	movementsTable = "reg_stock_movements"
	balancesTable  = "reg_stock_balances"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// Compile-time check.
var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var movementCols = []string{
	"id", "tenant_id", "item_id", "kind", "quantity",
	"from_location_id", "to_location_id",
	"reference", "note", "created_at",
}

// Insert appends one movement. No update or delete statement exists for
// this table anywhere in the codebase.
func (r *LedgerRepo) Insert(ctx context.Context, scope tenant.Scope, m *ledger.Movement) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	q := r.builder.Insert(movementsTable).
		Columns(movementCols...).
		Values(
			m.ID, scope.TenantID(), m.ItemID, string(m.Kind), m.Quantity,
			m.FromLocationID, m.ToLocationID,
			m.Reference, m.Note, m.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}

	return nil
}

// LockStock takes a transaction-scoped advisory lock on one
// (tenant, item, location) cell. Writers draining the same cell serialize
// here, so the balance fold that follows sees every committed movement.
// The lock never blocks readers and releases automatically on commit or
// rollback.
func (r *LedgerRepo) LockStock(ctx context.Context, scope tenant.Scope, itemID, locationID id.ID) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	const sql = `SELECT pg_advisory_xact_lock(hashtextextended($1::text || '/' || $2::text || '/' || $3::text, 0))`

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, scope.TenantID(), itemID, locationID); err != nil {
		return fmt.Errorf("lock stock cell: %w", err)
	}
	return nil
}

// ProjectBalance folds the movement log into the on-hand quantity of one
// (item, location) cell. A cell with no movements folds to zero.
func (r *LedgerRepo) ProjectBalance(ctx context.Context, scope tenant.Scope, itemID, locationID id.ID) (types.Quantity, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	const sql = `
		SELECT COALESCE(SUM(
			CASE
				WHEN to_location_id = $3 THEN quantity
				WHEN from_location_id = $3 THEN -quantity
				ELSE 0
			END
		), 0)
		FROM reg_stock_movements
		WHERE tenant_id = $1
		  AND item_id = $2
		  AND (to_location_id = $3 OR from_location_id = $3)
	`

	var balance int64
	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, scope.TenantID(), itemID, locationID).Scan(&balance)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("project balance: %w", err)
	}

	return types.Quantity(balance), nil
}

// ProjectStockByItem folds the log per location for one item, joined with
// the location identity for the API response. Only locations the item has
// touched appear.
func (r *LedgerRepo) ProjectStockByItem(ctx context.Context, scope tenant.Scope, itemID id.ID) ([]ledger.LocationBalance, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	const sql = `
		WITH deltas AS (
			SELECT to_location_id AS location_id, quantity AS delta
			FROM reg_stock_movements
			WHERE tenant_id = $1 AND item_id = $2 AND to_location_id IS NOT NULL
			UNION ALL
			SELECT from_location_id, -quantity
			FROM reg_stock_movements
			WHERE tenant_id = $1 AND item_id = $2 AND from_location_id IS NOT NULL
		)
		SELECT l.id   AS location_id,
		       l.code AS location_code,
		       l.name AS location_name,
		       SUM(d.delta)::bigint AS quantity
		FROM deltas d
		JOIN cat_locations l ON l.id = d.location_id AND l.tenant_id = $1
		GROUP BY l.id, l.code, l.name
		ORDER BY l.code
	`

	var balances []ledger.LocationBalance
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &balances, sql, scope.TenantID(), itemID); err != nil {
		return nil, fmt.Errorf("project stock by item: %w", err)
	}

	return balances, nil
}

// ListByItem returns the movement history of one item, newest first.
func (r *LedgerRepo) ListByItem(ctx context.Context, scope tenant.Scope, itemID id.ID, filter ledger.MovementFilter) ([]ledger.Movement, int64, error) {
	if err := scope.Validate(); err != nil {
		return nil, 0, err
	}

	q := r.builder.Select(movementCols...).
		From(movementsTable).
		Where(squirrel.Eq{"tenant_id": scope.TenantID()}).
		Where(squirrel.Eq{"item_id": itemID})

	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": string(*filter.Kind)})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"from_location_id": *filter.LocationID},
			squirrel.Eq{"to_location_id": *filter.LocationID},
		})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.To})
	}

	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var total int64
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count movements: %w", err)
	}

	q = q.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	var movements []ledger.Movement
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("select movements: %w", err)
	}

	return movements, total, nil
}

// ApplyDeltas folds movement deltas into the running-total register.
// Called in the same transaction as the movement insert.
func (r *LedgerRepo) ApplyDeltas(ctx context.Context, scope tenant.Scope, deltas []ledger.BalanceDelta) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	const sql = `
		INSERT INTO reg_stock_balances (tenant_id, item_id, location_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, item_id, location_id)
		DO UPDATE SET quantity = reg_stock_balances.quantity + EXCLUDED.quantity,
		              updated_at = EXCLUDED.updated_at
	`

	querier := r.txm.GetQuerier(ctx)
	now := time.Now().UTC()
	for _, d := range deltas {
		if _, err := querier.Exec(ctx, sql, scope.TenantID(), d.ItemID, d.LocationID, d.Delta, now); err != nil {
			return fmt.Errorf("apply balance delta: %w", err)
		}
	}
	return nil
}

// RunningTotals returns the stored running-total register for the tenant.
func (r *LedgerRepo) RunningTotals(ctx context.Context, scope tenant.Scope) ([]ledger.RunningTotal, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	q := r.builder.Select("item_id", "location_id", "quantity").
		From(balancesTable).
		Where(squirrel.Eq{"tenant_id": scope.TenantID()}).
		OrderBy("item_id", "location_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var totals []ledger.RunningTotal
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &totals, sql, args...); err != nil {
		return nil, fmt.Errorf("select running totals: %w", err)
	}

	return totals, nil
}

// ReplayTotals recomputes every (item, location) cell from the movement log
// alone. The log is the source of truth; this is what RunningTotals should
// equal.
func (r *LedgerRepo) ReplayTotals(ctx context.Context, scope tenant.Scope) ([]ledger.RunningTotal, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	const sql = `
		WITH deltas AS (
			SELECT item_id, to_location_id AS location_id, quantity AS delta
			FROM reg_stock_movements
			WHERE tenant_id = $1 AND to_location_id IS NOT NULL
			UNION ALL
			SELECT item_id, from_location_id, -quantity
			FROM reg_stock_movements
			WHERE tenant_id = $1 AND from_location_id IS NOT NULL
		)
		SELECT item_id, location_id, SUM(delta)::bigint AS quantity
		FROM deltas
		GROUP BY item_id, location_id
		ORDER BY item_id, location_id
	`

	var totals []ledger.RunningTotal
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &totals, sql, scope.TenantID()); err != nil {
		return nil, fmt.Errorf("replay totals: %w", err)
	}

	return totals, nil
}
