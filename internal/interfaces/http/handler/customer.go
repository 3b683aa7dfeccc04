package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cobranzas/backend/internal/interfaces/http/dto"
)

// CustomerHandler handles manual customer lookups on the financing backend
type CustomerHandler struct {
	BaseHandler
	service ConsoleService
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(service ConsoleService) *CustomerHandler {
	return &CustomerHandler{service: service}
}

// CustomerLookupQuery holds the optional order to evaluate the customer against
type CustomerLookupQuery struct {
	OrderID *int64 `form:"order_id" binding:"omitempty,min=1"`
}

// CustomerSearchQuery searches by name or by identification
type CustomerSearchQuery struct {
	Q     string `form:"q" binding:"required_without=Ident,max=100"`
	Ident string `form:"ident" binding:"required_without=Q,max=20"`
}

// Get godoc
// @Summary      Get a customer
// @Description  Fetch a customer by ID; with order_id the credit decision for that order is included
// @Tags         customers
// @Produce      json
// @Param        id path int true "Customer ID"
// @Param        order_id query int false "Order to evaluate"
// @Success      200 {object} dto.Response{data=console.CustomerLookup}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /customers/{id} [get]
func (h *CustomerHandler) Get(c *gin.Context) {
	var uri dto.CustomerIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return
	}
	var q CustomerLookupQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	lookup, err := h.service.LookupCustomer(c.Request.Context(), uri.ID, q.OrderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lookup)
}

// Search godoc
// @Summary      Search customers
// @Description  Search the financing backend by name (q) or identification (ident)
// @Tags         customers
// @Produce      json
// @Param        q query string false "Name search"
// @Param        ident query string false "DNI or CUIT"
// @Success      200 {object} dto.Response{data=[]console.CustomerView}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /customers [get]
func (h *CustomerHandler) Search(c *gin.Context) {
	var q CustomerSearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	query, byIdentification := strings.TrimSpace(q.Q), false
	if ident := strings.TrimSpace(q.Ident); ident != "" {
		query, byIdentification = ident, true
	}

	customers, err := h.service.SearchCustomers(c.Request.Context(), query, byIdentification)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customers)
}
