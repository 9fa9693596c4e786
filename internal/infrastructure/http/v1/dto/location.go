package dto

import (
	"stockledger/internal/domain/catalog/location"
)

// CreateLocationRequest is the request body for creating a location.
type CreateLocationRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateLocationRequest) ToEntity() *location.Location {
	return location.NewLocation(r.Code, r.Name)
}

// UpdateLocationRequest is the request body for updating a location.
type UpdateLocationRequest struct {
	Code    string `json:"code" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Version int    `json:"version" binding:"required,min=1"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateLocationRequest) ApplyTo(loc *location.Location) {
	loc.Code = r.Code
	loc.Name = r.Name
	loc.Version = r.Version
}

// LocationResponse is the response body for a location.
type LocationResponse struct {
	BaseResponse
	Code string `json:"code"`
	Name string `json:"name"`
}

// FromLocation converts domain entity to response DTO.
func FromLocation(loc *location.Location) LocationResponse {
	return LocationResponse{
		BaseResponse: FromBase(loc.Base),
		Code:         loc.Code,
		Name:         loc.Name,
	}
}

// FromLocations converts a slice of locations.
func FromLocations(locs []*location.Location) []LocationResponse {
	out := make([]LocationResponse, len(locs))
	for i, loc := range locs {
		out[i] = FromLocation(loc)
	}
	return out
}
