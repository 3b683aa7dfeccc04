package handler

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/cobranzas/backend/internal/application/console"
)

// MockConsoleService implements ConsoleService for testing
type MockConsoleService struct {
	mock.Mock
}

func (m *MockConsoleService) ListOrders(ctx context.Context, filter console.OrderFilter) ([]console.OrderSummary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]console.OrderSummary), args.Error(1)
}

func (m *MockConsoleService) AnalyzeOrder(ctx context.Context, orderID int64, operator string) (*console.Analysis, error) {
	args := m.Called(ctx, orderID, operator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*console.Analysis), args.Error(1)
}

func (m *MockConsoleService) Charge(ctx context.Context, cmd console.ChargeCommand) (*console.ActionResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*console.ActionResult), args.Error(1)
}

func (m *MockConsoleService) RequestDifference(ctx context.Context, cmd console.DifferenceCommand) (*console.ActionResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*console.ActionResult), args.Error(1)
}

func (m *MockConsoleService) Reject(ctx context.Context, cmd console.RejectCommand) (*console.ActionResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*console.ActionResult), args.Error(1)
}

func (m *MockConsoleService) TagOrder(ctx context.Context, cmd console.TagCommand) (*console.ActionResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*console.ActionResult), args.Error(1)
}

func (m *MockConsoleService) AuditTrail(ctx context.Context, orderID int64, limit int) ([]console.AuditEntryResponse, error) {
	args := m.Called(ctx, orderID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]console.AuditEntryResponse), args.Error(1)
}

func (m *MockConsoleService) ExportFollowUp(ctx context.Context, w io.Writer) (int, error) {
	args := m.Called(ctx, w)
	if fn, ok := args.Get(0).(func(io.Writer) int); ok {
		return fn(w), args.Error(1)
	}
	return args.Int(0), args.Error(1)
}

func (m *MockConsoleService) LookupCustomer(ctx context.Context, customerID int64, orderID *int64) (*console.CustomerLookup, error) {
	args := m.Called(ctx, customerID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*console.CustomerLookup), args.Error(1)
}

func (m *MockConsoleService) SearchCustomers(ctx context.Context, query string, byIdentification bool) ([]console.CustomerView, error) {
	args := m.Called(ctx, query, byIdentification)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]console.CustomerView), args.Error(1)
}
