package location

import (
	"context"
	"fmt"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/domain"
	"stockledger/pkg/logger"
)

// Service provides business logic for the Location catalog.
type Service struct {
	repo Repository
}

// NewService creates a new Location service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and persists a new location.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, loc *Location) error {
	if err := loc.Validate(ctx); err != nil {
		return err
	}

	if existing, err := s.repo.GetByCode(ctx, scope, loc.Code); err == nil && existing != nil {
		return apperror.NewDuplicate("location", "code", loc.Code)
	} else if err != nil && !apperror.IsNotFound(err) {
		return fmt.Errorf("check code: %w", err)
	}

	if err := s.repo.Create(ctx, scope, loc); err != nil {
		return err
	}

	logger.Info(ctx, "location created", "id", loc.ID, "code", loc.Code)
	return nil
}

// GetByID retrieves a location within the scope.
func (s *Service) GetByID(ctx context.Context, scope tenant.Scope, locationID id.ID) (*Location, error) {
	return s.repo.GetByID(ctx, scope, locationID)
}

// Update validates and persists changes to a location.
func (s *Service) Update(ctx context.Context, scope tenant.Scope, loc *Location) error {
	if err := loc.Validate(ctx); err != nil {
		return err
	}
	return s.repo.Update(ctx, scope, loc)
}

// Delete tombstones a location. Movements that reference it remain valid.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope, locationID id.ID) error {
	loc, err := s.repo.GetByID(ctx, scope, locationID)
	if err != nil {
		return err
	}
	if loc.DeletionMark {
		return nil
	}

	loc.MarkDeleted()
	if err := s.repo.Update(ctx, scope, loc); err != nil {
		return err
	}

	logger.Info(ctx, "location deleted", "id", locationID)
	return nil
}

// List retrieves locations with filtering.
func (s *Service) List(ctx context.Context, scope tenant.Scope, filter domain.ListFilter) (domain.ListResult[*Location], error) {
	return s.repo.List(ctx, scope, filter)
}

// Lookup resolves a location the ledger may reference: existing, scoped to
// the tenant, and not tombstoned.
func (s *Service) Lookup(ctx context.Context, scope tenant.Scope, locationID id.ID) (*Location, error) {
	loc, err := s.repo.GetByID(ctx, scope, locationID)
	if err != nil {
		return nil, err
	}
	if !loc.CanBeReferenced() {
		return nil, apperror.NewNotFound("location", locationID.String())
	}
	return loc, nil
}
