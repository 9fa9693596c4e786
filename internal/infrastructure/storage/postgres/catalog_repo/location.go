package catalog_repo

import (
	"context"

	"stockledger/internal/core/tenant"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalog/location"
	"stockledger/internal/infrastructure/storage/postgres"
)

const locationTable = "cat_locations"

var locationSearchCols = []string{"code", "name"}

// LocationRepo implements location.Repository.
type LocationRepo struct {
	*BaseCatalogRepo[*location.Location]
}

// Compile-time check.
var _ location.Repository = (*LocationRepo)(nil)

// NewLocationRepo creates a new location repository.
func NewLocationRepo(txm *postgres.TxManager) *LocationRepo {
	return &LocationRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*location.Location](
			txm,
			locationTable,
			postgres.ExtractDBColumns[location.Location](),
			func() *location.Location { return &location.Location{} },
		),
	}
}

// GetByCode retrieves a non-deleted location by code within the scope.
func (r *LocationRepo) GetByCode(ctx context.Context, scope tenant.Scope, code string) (*location.Location, error) {
	return r.GetByNaturalKey(ctx, scope, "code", code)
}

// List retrieves locations with filtering.
func (r *LocationRepo) List(ctx context.Context, scope tenant.Scope, filter domain.ListFilter) (domain.ListResult[*location.Location], error) {
	return r.BaseCatalogRepo.List(ctx, scope, filter, locationSearchCols)
}
