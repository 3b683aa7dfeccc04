package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cobranzas/backend/internal/application/console"
	"github.com/cobranzas/backend/internal/domain/shared"
	"github.com/cobranzas/backend/internal/interfaces/http/dto"
	"github.com/cobranzas/backend/internal/interfaces/http/middleware"
)

func newCustomerRouter(svc *MockConsoleService) *gin.Engine {
	middleware.SetupValidator()

	h := NewCustomerHandler(svc)
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.OperatorFromHeader(testOperator))
	router.GET("/api/v1/customers", h.Search)
	router.GET("/api/v1/customers/:id", h.Get)
	return router
}

func TestCustomerHandler_Get(t *testing.T) {
	orderID := int64(1001)

	tests := []struct {
		name      string
		path      string
		wantOrder *int64
	}{
		{name: "customer only", path: "/api/v1/customers/4521"},
		{name: "against an order", path: "/api/v1/customers/4521?order_id=1001", wantOrder: &orderID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockConsoleService)
			svc.On("LookupCustomer", mock.Anything, int64(4521), mock.MatchedBy(func(got *int64) bool {
				if tt.wantOrder == nil {
					return got == nil
				}
				return got != nil && *got == *tt.wantOrder
			})).Return(&console.CustomerLookup{
				Customer: console.CustomerView{ID: 4521, Name: "Pérez Juan", AvailableCredit: decimal.NewFromInt(120000)},
			}, nil)

			w := doRequest(newCustomerRouter(svc), http.MethodGet, tt.path, "")

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), `"name":"Pérez Juan"`)
			svc.AssertExpectations(t)
		})
	}
}

func TestCustomerHandler_Get_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{name: "bad id", path: "/api/v1/customers/abc", wantStatus: http.StatusBadRequest, wantCode: dto.ErrCodeValidation},
		{name: "bad order id", path: "/api/v1/customers/4521?order_id=0", wantStatus: http.StatusBadRequest, wantCode: dto.ErrCodeValidation},
		{name: "unknown customer", path: "/api/v1/customers/9", svcErr: shared.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: dto.ErrCodeNotFound},
		{name: "financing down", path: "/api/v1/customers/9", svcErr: shared.ErrUpstreamUnavailable, wantStatus: http.StatusBadGateway, wantCode: dto.ErrCodeUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockConsoleService)
			if tt.svcErr != nil {
				svc.On("LookupCustomer", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.svcErr)
			}

			w := doRequest(newCustomerRouter(svc), http.MethodGet, tt.path, "")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeResponse(t, w).Error.Code)
		})
	}
}

func TestCustomerHandler_Search(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantTerm string
		wantByID bool
	}{
		{name: "by name", query: "q=perez", wantTerm: "perez"},
		{name: "by identification", query: "ident=20123456789", wantTerm: "20123456789", wantByID: true},
		{name: "identification wins", query: "q=perez&ident=+30111222+", wantTerm: "30111222", wantByID: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockConsoleService)
			svc.On("SearchCustomers", mock.Anything, tt.wantTerm, tt.wantByID).
				Return([]console.CustomerView{{ID: 4521}}, nil)

			w := doRequest(newCustomerRouter(svc), http.MethodGet, "/api/v1/customers?"+tt.query, "")

			assert.Equal(t, http.StatusOK, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestCustomerHandler_Search_MissingTerm(t *testing.T) {
	svc := new(MockConsoleService)

	w := doRequest(newCustomerRouter(svc), http.MethodGet, "/api/v1/customers", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Details)
	svc.AssertNotCalled(t, "SearchCustomers", mock.Anything, mock.Anything, mock.Anything)
}
