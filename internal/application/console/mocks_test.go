package console

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cobranzas/backend/internal/domain/audit"
	"github.com/cobranzas/backend/internal/domain/financing"
	"github.com/cobranzas/backend/internal/domain/storefront"
	"github.com/cobranzas/backend/internal/infrastructure/notification"
)

// MockOrderGateway is a mock implementation of storefront.OrderGateway
type MockOrderGateway struct {
	mock.Mock
}

func (m *MockOrderGateway) ListOrders(ctx context.Context, opts storefront.ListOptions) ([]storefront.Order, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storefront.Order), args.Error(1)
}

func (m *MockOrderGateway) GetOrder(ctx context.Context, id int64) (*storefront.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storefront.Order), args.Error(1)
}

func (m *MockOrderGateway) UpdateOrder(ctx context.Context, id int64, update storefront.OrderUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *MockOrderGateway) CancelOrder(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockOrderGateway) ListProducts(ctx context.Context, limit int) ([]storefront.Product, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storefront.Product), args.Error(1)
}

// MockCustomerDirectory is a mock implementation of financing.CustomerDirectory
type MockCustomerDirectory struct {
	mock.Mock
}

func (m *MockCustomerDirectory) LookupByID(ctx context.Context, id int64) (*financing.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financing.Customer), args.Error(1)
}

func (m *MockCustomerDirectory) Search(ctx context.Context, query string) ([]financing.Customer, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]financing.Customer), args.Error(1)
}

func (m *MockCustomerDirectory) SearchByIdentification(ctx context.Context, identification string) ([]financing.Customer, error) {
	args := m.Called(ctx, identification)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]financing.Customer), args.Error(1)
}

// MockDebtLedger is a mock implementation of financing.DebtLedger
type MockDebtLedger struct {
	mock.Mock
}

func (m *MockDebtLedger) CreateInstallmentDebt(ctx context.Context, debt *financing.InstallmentDebt) error {
	args := m.Called(ctx, debt)
	return args.Error(0)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, kind notification.Kind, to string, data *notification.EmailData) error {
	args := m.Called(ctx, kind, to, data)
	return args.Error(0)
}

// MockAuditRepository is a mock implementation of audit.Repository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Save(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) FindByOrder(ctx context.Context, orderID int64, limit int) ([]audit.Entry, error) {
	args := m.Called(ctx, orderID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.Entry), args.Error(1)
}
