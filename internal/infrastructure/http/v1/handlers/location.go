package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalog/location"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// LocationHandler handles HTTP requests for the location catalog.
type LocationHandler struct {
	*BaseHandler
	service *location.Service
}

// NewLocationHandler creates a new location handler.
func NewLocationHandler(base *BaseHandler, service *location.Service) *LocationHandler {
	return &LocationHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /inventory/locations
func (h *LocationHandler) Create(c *gin.Context) {
	scope, ok := h.Scope(c)
	if !ok {
		return
	}

	var req dto.CreateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	loc := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), scope, loc); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromLocation(loc))
}

// Get handles GET /inventory/locations/:id
func (h *LocationHandler) Get(c *gin.Context) {
	scope, ok := h.Scope(c)
	if !ok {
		return
	}

	locationID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid location id"))
		return
	}

	loc, err := h.service.GetByID(c.Request.Context(), scope, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromLocation(loc))
}

// Update handles PUT /inventory/locations/:id
func (h *LocationHandler) Update(c *gin.Context) {
	scope, ok := h.Scope(c)
	if !ok {
		return
	}

	locationID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid location id"))
		return
	}

	var req dto.UpdateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	loc, err := h.service.GetByID(c.Request.Context(), scope, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(loc)
	if err := h.service.Update(c.Request.Context(), scope, loc); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromLocation(loc))
}

// Delete handles DELETE /inventory/locations/:id
func (h *LocationHandler) Delete(c *gin.Context) {
	scope, ok := h.Scope(c)
	if !ok {
		return
	}

	locationID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid location id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), scope, locationID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// List handles GET /inventory/locations
func (h *LocationHandler) List(c *gin.Context) {
	scope, ok := h.Scope(c)
	if !ok {
		return
	}

	var query dto.ListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	result, err := h.service.List(c.Request.Context(), scope, query.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      dto.FromLocations(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
