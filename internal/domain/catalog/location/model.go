// Package location provides the inventory location catalog.
// Locations are places stock can sit; ledger movements reference them as
// sources and destinations.
package location

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
)

const (
	maxCodeLength = 64
	maxNameLength = 255
)

// Location represents a place stock can sit.
type Location struct {
	entity.Base

	// Code is a human-readable identifier, unique within the tenant
	Code string `db:"code" json:"code"`

	// Name is the display name
	Name string `db:"name" json:"name"`
}

// NewLocation creates a new Location with required fields.
func NewLocation(code, name string) *Location {
	return &Location{
		Base: entity.NewBase(),
		Code: code,
		Name: name,
	}
}

// Validate implements entity.Validatable.
func (l *Location) Validate(ctx context.Context) error {
	if l.Code == "" {
		return apperror.NewValidation("code is required").
			WithDetail("field", "code")
	}
	if len(l.Code) > maxCodeLength {
		return apperror.NewValidation("code is too long").
			WithDetail("field", "code").
			WithDetail("max_length", maxCodeLength)
	}
	if l.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if len(l.Name) > maxNameLength {
		return apperror.NewValidation("name is too long").
			WithDetail("field", "name").
			WithDetail("max_length", maxNameLength)
	}
	return nil
}

// CanBeReferenced returns true if new movements may reference this location.
func (l *Location) CanBeReferenced() bool {
	return !l.DeletionMark
}
