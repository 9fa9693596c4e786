package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/tenant"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalog/item"
	"stockledger/internal/infrastructure/storage/postgres"
)

const itemTable = "cat_items"

var itemSearchCols = []string{"sku", "name"}

// ItemRepo implements item.Repository.
type ItemRepo struct {
	*BaseCatalogRepo[*item.Item]
}

// Compile-time check.
var _ item.Repository = (*ItemRepo)(nil)

// NewItemRepo creates a new item repository.
func NewItemRepo(txm *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*item.Item](
			txm,
			itemTable,
			postgres.ExtractDBColumns[item.Item](),
			func() *item.Item { return &item.Item{} },
		),
	}
}

// GetBySKU retrieves a non-deleted item by SKU within the scope.
func (r *ItemRepo) GetBySKU(ctx context.Context, scope tenant.Scope, sku string) (*item.Item, error) {
	return r.GetByNaturalKey(ctx, scope, "sku", sku)
}

// List retrieves items with filtering, adding the category predicate the
// generic base does not know about.
func (r *ItemRepo) List(ctx context.Context, scope tenant.Scope, filter domain.ListFilter) (domain.ListResult[*item.Item], error) {
	var extra []squirrel.Sqlizer
	if filter.Category != "" {
		extra = append(extra, squirrel.Eq{"category": filter.Category})
	}
	return r.BaseCatalogRepo.List(ctx, scope, filter, itemSearchCols, extra...)
}
