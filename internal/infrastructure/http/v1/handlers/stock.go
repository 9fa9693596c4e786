package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/internal/infrastructure/metrics"
)

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewStockHandler creates a new stock ledger handler.
func NewStockHandler(base *BaseHandler, service *ledger.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Receipt handles POST /inventory/stock/receipt
func (h *StockHandler) Receipt(c *gin.Context) {
	scope, ok := h.Scope(c)
	if !ok {
		return
	}

	var req dto.ReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	itemID, ok := h.bindID(c, "itemId", req.ItemID)
	if !ok {
		return
	}
	toID, ok := h.bindID(c, "toLocationId", req.ToLocationID)
	if !ok {
		return
	}

	m, err := h.service.RecordReceipt(c.Request.Context(), scope, ledger.ReceiptInput{
		ItemID:       itemID,
		Quantity:     types.NewQuantity(req.Quantity),
		ToLocationID: toID,
		Reference:    req.Reference,
		Note:         req.Note,
	})
	if err != nil {
		h.rejectMovement(c, err)
		return
	}

	metrics.MovementsRecorded.WithLabelValues(string(ledger.KindReceipt)).Inc()
	h.Created(c, dto.FromMovement(m))
}

// Issue handles POST /inventory/stock/issue
func (h *StockHandler) Issue(c *gin.Context) {
	scope, ok := h.Scope(c)
	if !ok {
		return
	}

	var req dto.IssueRequest
	if !h.BindJSON(c, &req) {
		return
	}

	itemID, ok := h.bindID(c, "itemId", req.ItemID)
	if !ok {
		return
	}
	fromID, ok := h.bindID(c, "fromLocationId", req.FromLocationID)
	if !ok {
		return
	}

	m, err := h.service.RecordIssue(c.Request.Context(), scope, ledger.IssueInput{
		ItemID:         itemID,
		Quantity:       types.NewQuantity(req.Quantity),
		FromLocationID: fromID,
		Reference:      req.Reference,
		Note:           req.Note,
	})
	if err != nil {
		h.rejectMovement(c, err)
		return
	}

	metrics.MovementsRecorded.WithLabelValues(string(ledger.KindIssue)).Inc()
	h.Created(c, dto.FromMovement(m))
}

// Transfer handles POST /inventory/stock/transfer
func (h *StockHandler) Transfer(c *gin.Context) {
	scope, ok := h.Scope(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	itemID, ok := h.bindID(c, "itemId", req.ItemID)
	if !ok {
		return
	}
	fromID, ok := h.bindID(c, "fromLocationId", req.FromLocationID)
	if !ok {
		return
	}
	toID, ok := h.bindID(c, "toLocationId", req.ToLocationID)
	if !ok {
		return
	}

	m, err := h.service.RecordTransfer(c.Request.Context(), scope, ledger.TransferInput{
		ItemID:         itemID,
		Quantity:       types.NewQuantity(req.Quantity),
		FromLocationID: fromID,
		ToLocationID:   toID,
		Reference:      req.Reference,
		Note:           req.Note,
	})
	if err != nil {
		h.rejectMovement(c, err)
		return
	}

	metrics.MovementsRecorded.WithLabelValues(string(ledger.KindTransfer)).Inc()
	h.Created(c, dto.FromMovement(m))
}

// GetItemStock handles GET /inventory/items/:id/stock
func (h *StockHandler) GetItemStock(c *gin.Context) {
	scope, ok := h.Scope(c)
	if !ok {
		return
	}

	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id"))
		return
	}

	stock, err := h.service.GetItemStock(c.Request.Context(), scope, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromItemStock(stock))
}

// GetMovements handles GET /inventory/stock/movements
func (h *StockHandler) GetMovements(c *gin.Context) {
	scope, ok := h.Scope(c)
	if !ok {
		return
	}

	// Item is required for movement history
	itemIDStr := c.Query("itemId")
	if itemIDStr == "" {
		h.Error(c, apperror.NewValidation("itemId is required"))
		return
	}

	itemID, err := id.Parse(itemIDStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid itemId format"))
		return
	}

	filter := ledger.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if kindStr := c.Query("kind"); kindStr != "" {
		kind := ledger.Kind(kindStr)
		switch kind {
		case ledger.KindReceipt, ledger.KindIssue, ledger.KindTransfer:
			filter.Kind = &kind
		default:
			h.Error(c, apperror.NewValidation("invalid kind").WithDetail("value", kindStr))
			return
		}
	}

	if locStr := c.Query("locationId"); locStr != "" {
		parsed, err := id.Parse(locStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid locationId format"))
			return
		}
		filter.LocationID = &parsed
	}

	if fromStr := c.Query("from"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from timestamp, expected RFC 3339").WithDetail("value", fromStr))
			return
		}
		filter.From = &parsed
	}
	if toStr := c.Query("to"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to timestamp, expected RFC 3339").WithDetail("value", toStr))
			return
		}
		filter.To = &parsed
	}

	movements, total, err := h.service.ListMovements(c.Request.Context(), scope, itemID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.MovementResponse, len(movements))
	for i := range movements {
		items[i] = dto.FromMovement(&movements[i])
	}

	c.JSON(http.StatusOK, dto.MovementListResponse{
		Items:      items,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// Reconcile handles POST /inventory/stock/reconcile
func (h *StockHandler) Reconcile(c *gin.Context) {
	scope, ok := h.Scope(c)
	if !ok {
		return
	}

	report, err := h.service.Reconcile(c.Request.Context(), scope)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromReconcileReport(report))
}

// bindID parses an id field from a bound request body, rejecting the request
// with a validation error when it is not a UUID.
func (h *StockHandler) bindID(c *gin.Context, field, value string) (id.ID, bool) {
	parsed, err := id.Parse(value)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+field).WithDetail("value", value))
		return id.Nil(), false
	}
	return parsed, true
}

// rejectMovement registers the error and counts the rejection by reason.
func (h *StockHandler) rejectMovement(c *gin.Context, err error) {
	reason := "internal"
	if appErr, ok := apperror.AsAppError(err); ok {
		reason = appErr.Code
	}
	metrics.MovementsRejected.WithLabelValues(reason).Inc()
	h.Error(c, err)
}
