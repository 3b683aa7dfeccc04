package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/cobranzas/backend/internal/application/console"
	"github.com/cobranzas/backend/internal/domain/storefront"
	"github.com/cobranzas/backend/internal/infrastructure/export"
	"github.com/cobranzas/backend/internal/interfaces/http/dto"
)

// ConsoleService is the console application service as seen by the HTTP layer
type ConsoleService interface {
	ListOrders(ctx context.Context, filter console.OrderFilter) ([]console.OrderSummary, error)
	AnalyzeOrder(ctx context.Context, orderID int64, operator string) (*console.Analysis, error)
	Charge(ctx context.Context, cmd console.ChargeCommand) (*console.ActionResult, error)
	RequestDifference(ctx context.Context, cmd console.DifferenceCommand) (*console.ActionResult, error)
	Reject(ctx context.Context, cmd console.RejectCommand) (*console.ActionResult, error)
	TagOrder(ctx context.Context, cmd console.TagCommand) (*console.ActionResult, error)
	AuditTrail(ctx context.Context, orderID int64, limit int) ([]console.AuditEntryResponse, error)
	ExportFollowUp(ctx context.Context, w io.Writer) (int, error)
	LookupCustomer(ctx context.Context, customerID int64, orderID *int64) (*console.CustomerLookup, error)
	SearchCustomers(ctx context.Context, query string, byIdentification bool) ([]console.CustomerView, error)
}

// OrderHandler handles the order inbox and the operator actions on an order
type OrderHandler struct {
	BaseHandler
	service ConsoleService
	now     func() time.Time
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(service ConsoleService) *OrderHandler {
	return &OrderHandler{service: service, now: time.Now}
}

// ChargeRequest represents a request to charge an order to a financing line
// @Description Request body for charging an order
type ChargeRequest struct {
	CustomerID int64 `json:"customer_id" binding:"required,min=1" example:"4521"`
	// Amount defaults to the order total
	Amount *decimal.Decimal `json:"amount" example:"90000.00"`
}

// DifferenceRequest represents a request to ask the customer for the shortfall
// @Description Request body for a difference request
type DifferenceRequest struct {
	CustomerID int64 `json:"customer_id" binding:"required,min=1" example:"4521"`
}

// RejectRequest represents a request to reject an order
// @Description Request body for rejecting an order
type RejectRequest struct {
	CustomerID   *int64 `json:"customer_id" binding:"omitempty,min=1" example:"4521"`
	Reason       string `json:"reason" binding:"max=500" example:"Sin línea de crédito disponible"`
	Cancel       bool   `json:"cancel"`
	CancelReason string `json:"cancel_reason" binding:"omitempty,oneof=customer inventory fraud other" example:"other"`
	Notify       bool   `json:"notify"`
}

// MarkerRequest represents a request to add or remove a workflow marker
// @Description Request body for tagging an order
type MarkerRequest struct {
	Marker string `json:"marker" binding:"required,marker" example:"#ESPERANDO_DIFERENCIA"`
	Remove bool   `json:"remove"`
}

// AuditQuery holds the audit trail query parameters
type AuditQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// List godoc
// @Summary      List orders
// @Description  List storefront orders for one of the operator inboxes
// @Tags         orders
// @Produce      json
// @Param        inbox query string false "Inbox" Enums(new, follow_up)
// @Param        marker query string false "Only orders carrying this marker"
// @Param        status query string false "Storefront status" Enums(open, closed, cancelled, any)
// @Param        per_page query int false "Orders to fetch" minimum(1) maximum(200)
// @Success      200 {object} dto.Response{data=[]console.OrderSummary}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	var filter console.OrderFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.ValidationError(c, err)
		return
	}

	orders, err := h.service.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, orders)
}

// Export godoc
// @Summary      Export the follow-up inbox
// @Description  Download the orders waiting for a difference as a spreadsheet
// @Tags         orders
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200 {file} file
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/export [get]
func (h *OrderHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	rows, err := h.service.ExportFollowUp(c.Request.Context(), &buf)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.FollowUpFilename(h.now())+`"`)
	c.Header("X-Export-Rows", strconv.Itoa(rows))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// Analyze godoc
// @Summary      Analyze an order
// @Description  Match the order's buyer against the financing backend and decide approve, partial or reject
// @Tags         orders
// @Produce      json
// @Param        id path int true "Order ID"
// @Success      200 {object} dto.Response{data=console.Analysis}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/analysis [post]
func (h *OrderHandler) Analyze(c *gin.Context) {
	var uri dto.OrderIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return
	}

	analysis, err := h.service.AnalyzeOrder(c.Request.Context(), uri.ID, getOperator(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, analysis)
}

// Charge godoc
// @Summary      Charge an order
// @Description  Create the installment debt on the customer's financing line and mark the order approved
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path int true "Order ID"
// @Param        request body ChargeRequest true "Charge request"
// @Success      200 {object} dto.Response{data=console.ActionResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/charge [post]
func (h *OrderHandler) Charge(c *gin.Context) {
	var uri dto.OrderIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return
	}
	var req ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.service.Charge(c.Request.Context(), console.ChargeCommand{
		OrderID:    uri.ID,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Operator:   getOperator(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RequestDifference godoc
// @Summary      Request the difference
// @Description  Tag the order as waiting for the shortfall and email the customer the transfer details
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path int true "Order ID"
// @Param        request body DifferenceRequest true "Difference request"
// @Success      200 {object} dto.Response{data=console.ActionResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/difference-request [post]
func (h *OrderHandler) RequestDifference(c *gin.Context) {
	var uri dto.OrderIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return
	}
	var req DifferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.service.RequestDifference(c.Request.Context(), console.DifferenceCommand{
		OrderID:    uri.ID,
		CustomerID: req.CustomerID,
		Operator:   getOperator(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reject godoc
// @Summary      Reject an order
// @Description  Turn down financing; optionally cancel the order and notify the customer
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path int true "Order ID"
// @Param        request body RejectRequest true "Reject request"
// @Success      200 {object} dto.Response{data=console.ActionResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/rejection [post]
func (h *OrderHandler) Reject(c *gin.Context) {
	var uri dto.OrderIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return
	}
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.service.Reject(c.Request.Context(), console.RejectCommand{
		OrderID:      uri.ID,
		CustomerID:   req.CustomerID,
		Reason:       req.Reason,
		Cancel:       req.Cancel,
		CancelReason: req.CancelReason,
		Notify:       req.Notify,
		Operator:     getOperator(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Tag godoc
// @Summary      Add or remove a marker
// @Description  Add or remove a workflow marker in the order note
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path int true "Order ID"
// @Param        request body MarkerRequest true "Marker request"
// @Success      200 {object} dto.Response{data=console.ActionResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/markers [post]
func (h *OrderHandler) Tag(c *gin.Context) {
	var uri dto.OrderIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return
	}
	var req MarkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	marker, ok := storefront.ParseMarker(req.Marker)
	if !ok {
		h.ErrorWithCode(c, dto.ErrCodeInvalidInput, "Unknown marker: "+req.Marker)
		return
	}

	result, err := h.service.TagOrder(c.Request.Context(), console.TagCommand{
		OrderID:  uri.ID,
		Marker:   marker,
		Remove:   req.Remove,
		Operator: getOperator(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Audit godoc
// @Summary      Order audit trail
// @Description  Operator decisions recorded for the order, newest first
// @Tags         orders
// @Produce      json
// @Param        id path int true "Order ID"
// @Param        limit query int false "Entries to return" minimum(1) maximum(500)
// @Success      200 {object} dto.Response{data=[]console.AuditEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/audit [get]
func (h *OrderHandler) Audit(c *gin.Context) {
	var uri dto.OrderIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return
	}
	var q AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	entries, err := h.service.AuditTrail(c.Request.Context(), uri.ID, q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}
