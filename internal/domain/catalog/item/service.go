package item

import (
	"context"
	"fmt"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/domain"
	"stockledger/pkg/logger"
)

// Service provides business logic for the Item catalog.
type Service struct {
	repo Repository
}

// NewService creates a new Item service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and persists a new item.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, it *Item) error {
	if err := it.Validate(ctx); err != nil {
		return err
	}

	// SKU must be unique among live rows of this tenant.
	if existing, err := s.repo.GetBySKU(ctx, scope, it.SKU); err == nil && existing != nil {
		return apperror.NewDuplicate("item", "sku", it.SKU)
	} else if err != nil && !apperror.IsNotFound(err) {
		return fmt.Errorf("check sku: %w", err)
	}

	if err := s.repo.Create(ctx, scope, it); err != nil {
		return err
	}

	logger.Info(ctx, "item created", "id", it.ID, "sku", it.SKU)
	return nil
}

// GetByID retrieves an item within the scope.
func (s *Service) GetByID(ctx context.Context, scope tenant.Scope, itemID id.ID) (*Item, error) {
	return s.repo.GetByID(ctx, scope, itemID)
}

// Update validates and persists changes to an item.
func (s *Service) Update(ctx context.Context, scope tenant.Scope, it *Item) error {
	if err := it.Validate(ctx); err != nil {
		return err
	}
	return s.repo.Update(ctx, scope, it)
}

// Delete tombstones an item. Historical movements are untouched; new
// movements referencing the item are rejected by the lookup.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope, itemID id.ID) error {
	it, err := s.repo.GetByID(ctx, scope, itemID)
	if err != nil {
		return err
	}
	if it.DeletionMark {
		return nil
	}

	it.MarkDeleted()
	if err := s.repo.Update(ctx, scope, it); err != nil {
		return err
	}

	logger.Info(ctx, "item deleted", "id", itemID)
	return nil
}

// List retrieves items with filtering.
func (s *Service) List(ctx context.Context, scope tenant.Scope, filter domain.ListFilter) (domain.ListResult[*Item], error) {
	return s.repo.List(ctx, scope, filter)
}

// Lookup resolves an item the ledger may reference: existing, scoped to the
// tenant, and not tombstoned. A tombstoned row reports NotFound, same as a
// missing or foreign-tenant one.
func (s *Service) Lookup(ctx context.Context, scope tenant.Scope, itemID id.ID) (*Item, error) {
	it, err := s.repo.GetByID(ctx, scope, itemID)
	if err != nil {
		return nil, err
	}
	if !it.CanBeReferenced() {
		return nil, apperror.NewNotFound("item", itemID.String())
	}
	return it, nil
}
