// Package catalog_repo provides PostgreSQL implementations for catalog
// repositories. All tenant isolation is row-level: every query carries a
// tenant_id predicate taken from the explicit scope parameter.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/domain"
	"stockledger/internal/infrastructure/storage/postgres"
)

// BaseCatalogRepo provides common CRUD operations for catalog entities.
// Embed this in specific catalog repositories.
//
// Tenant isolation contract: every statement filters on tenant_id, and a
// row owned by another tenant is reported as NotFound. The scope is
// validated before any SQL is built, so a zero scope can never widen a
// query.
type BaseCatalogRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	selectCols []string
	newFn      func() T
}

// NewBaseCatalogRepo creates a new base catalog repository.
func NewBaseCatalogRepo[T any](
	txm *postgres.TxManager,
	tableName string,
	selectCols []string,
	newFn func() T,
) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		txm:        txm,
		tableName:  tableName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseCatalogRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a new entity using its "db" tags, stamping the scope's
// tenant id.
func (r *BaseCatalogRepo[T]) Create(ctx context.Context, scope tenant.Scope, entity T) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	// A pre-set tenant id must match the scope; it is never coerced.
	if preset := toID(data["tenant_id"]); !id.IsNil(preset) && preset != scope.TenantID() {
		return apperror.NewTenantMismatch(r.tableName, fmt.Sprint(data["id"]))
	}
	data["tenant_id"] = scope.TenantID()

	// Filter to only include columns that exist in DB
	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Insert(r.tableName).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}

	return nil
}

// Update modifies an existing entity with optimistic locking. The tenant_id
// predicate makes a foreign-tenant row update zero rows, reported as
// NotFound.
func (r *BaseCatalogRepo[T]) Update(ctx context.Context, scope tenant.Scope, entity T) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	entityID, ok := data["id"]
	if !ok {
		return fmt.Errorf("entity has no 'id' field with db tag")
	}

	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("entity has no 'version' field or it is not an int")
	}

	// Exclude immutable fields from SET
	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		switch col {
		case "id", "tenant_id", "version", "created_at":
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}
	filteredData["updated_at"] = time.Now().UTC()

	q := r.Builder().
		Update(r.tableName).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID}).
		Where(squirrel.Eq{"tenant_id": scope.TenantID()}).
		Where(squirrel.Eq{"version": version}) // optimistic lock: expect current version

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.tableName, err)
	}

	if result.RowsAffected() == 0 {
		// Either a stale version, a foreign-tenant row or a missing row.
		exists, err := r.Exists(ctx, scope, toID(entityID))
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NewNotFound(r.tableName, fmt.Sprint(entityID))
		}
		return apperror.NewConflict("entity was modified concurrently").
			WithDetail("entity", r.tableName).
			WithDetail("id", fmt.Sprint(entityID))
	}

	return nil
}

// baseSelect creates a tenant-scoped SELECT builder.
func (r *BaseCatalogRepo[T]) baseSelect(scope tenant.Scope) squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName).
		Where(squirrel.Eq{"tenant_id": scope.TenantID()})
}

// GetByID retrieves entity by ID within the scope.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, scope tenant.Scope, entityID id.ID) (T, error) {
	entity := r.newFn()
	if err := scope.Validate(); err != nil {
		return entity, err
	}

	q := r.baseSelect(scope).
		Where(squirrel.Eq{"id": entityID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.tableName, entityID.String())
		}
		return entity, fmt.Errorf("get by id: %w", err)
	}

	return entity, nil
}

// GetByNaturalKey retrieves a non-deleted entity by a unique column
// (sku, code) within the scope.
func (r *BaseCatalogRepo[T]) GetByNaturalKey(ctx context.Context, scope tenant.Scope, column, value string) (T, error) {
	entity := r.newFn()
	if err := scope.Validate(); err != nil {
		return entity, err
	}

	q := r.baseSelect(scope).
		Where(squirrel.Eq{column: value}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.tableName, value)
		}
		return entity, fmt.Errorf("get by %s: %w", column, err)
	}

	return entity, nil
}

// searchConditions builds a case-insensitive substring match over the
// given columns.
func (r *BaseCatalogRepo[T]) searchConditions(search string, cols []string) squirrel.Or {
	pattern := "%" + search + "%"
	or := make(squirrel.Or, 0, len(cols))
	for _, col := range cols {
		or = append(or, squirrel.ILike{col: pattern})
	}
	return or
}

// List retrieves entities with filtering and pagination. extraWhere lets a
// concrete repo add entity-specific predicates (item category).
func (r *BaseCatalogRepo[T]) List(ctx context.Context, scope tenant.Scope, filter domain.ListFilter, searchCols []string, extraWhere ...squirrel.Sqlizer) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if err := scope.Validate(); err != nil {
		return result, err
	}

	q := r.baseSelect(scope)

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.Search != "" && len(searchCols) > 0 {
		q = q.Where(r.searchConditions(filter.Search, searchCols))
	}
	for _, w := range extraWhere {
		q = q.Where(w)
	}

	// Count total (before pagination)
	countQ := r.Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub")

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}

	return result, nil
}

// Exists checks if entity exists within the scope.
func (r *BaseCatalogRepo[T]) Exists(ctx context.Context, scope tenant.Scope, entityID id.ID) (bool, error) {
	if err := scope.Validate(); err != nil {
		return false, err
	}

	q := r.Builder().
		Select("1").
		From(r.tableName).
		Where(squirrel.Eq{"id": entityID}).
		Where(squirrel.Eq{"tenant_id": scope.TenantID()}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var exists int
	err = querier.QueryRow(ctx, sql, args...).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}

	return true, nil
}

func (r *BaseCatalogRepo[T]) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols)+2)
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}
	allowed["created_at"] = struct{}{}
	allowed["updated_at"] = struct{}{}

	if orderBy == "" {
		return "name ASC", nil
	}

	// Support "-field" for DESC.
	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}

	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy).WithDetail("field", field)
	}

	return field + " " + direction, nil
}

func toID(v any) id.ID {
	switch val := v.(type) {
	case id.ID:
		return val
	case string:
		parsed, err := id.Parse(val)
		if err != nil {
			return id.Nil()
		}
		return parsed
	default:
		return id.Nil()
	}
}
