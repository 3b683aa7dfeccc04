package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cobranzas/backend/internal/domain/audit"
	"github.com/cobranzas/backend/internal/domain/financing"
	"github.com/cobranzas/backend/internal/domain/shared"
	"github.com/cobranzas/backend/internal/domain/storefront"
	"github.com/cobranzas/backend/internal/infrastructure/cache"
	"github.com/cobranzas/backend/internal/infrastructure/contact"
	"github.com/cobranzas/backend/internal/infrastructure/notification"
)

const (
	testOrderID    int64 = 1001
	testCustomerID int64 = 4521
	testPhone            = "+54 9 11 5555-0101"
	testEmail            = "ana@example.com"
)

type fixture struct {
	svc       *Service
	orders    *MockOrderGateway
	customers *MockCustomerDirectory
	ledger    *MockDebtLedger
	notifier  *MockNotifier
	audit     *MockAuditRepository
	store     *cache.InMemoryIdempotencyStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:    new(MockOrderGateway),
		customers: new(MockCustomerDirectory),
		ledger:    new(MockDebtLedger),
		notifier:  new(MockNotifier),
		audit:     new(MockAuditRepository),
		store:     cache.NewInMemoryIdempotencyStore(),
	}
	t.Cleanup(func() { _ = f.store.Close() })

	f.svc = NewService(ServiceConfig{
		Orders:    f.orders,
		Customers: f.customers,
		Ledger:    f.ledger,
		Notifier:  f.notifier,
		Links:     contact.NewLinkBuilder("AR"),
		Guard:     f.store,
		Locker:    f.store,
		Audit:     f.audit,
	})
	return f
}

func (f *fixture) expectAudit(action audit.Action) {
	f.audit.On("Save", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
		return e.Action == action && e.OrderID == testOrderID
	})).Return(nil).Once()
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.orders.AssertExpectations(t)
	f.customers.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.audit.AssertExpectations(t)
}

func testOrder(note string) *storefront.Order {
	return &storefront.Order{
		ID:                     testOrderID,
		Number:                 42,
		CustomerName:           "Ana Suarez",
		CustomerIdentification: "20-12345678-3",
		CustomerEmail:          testEmail,
		CustomerPhone:          testPhone,
		OwnerNote:              note,
		Total:                  decimal.NewFromInt(90000),
		Status:                 storefront.OrderStatusOpen,
		PaymentStatus:          storefront.PaymentStatusPending,
		PaymentMethod:          "custom",
		Products:               []storefront.OrderProduct{{ProductID: 7, Name: "Heladera", Quantity: 1, Price: decimal.NewFromInt(90000)}},
		CreatedAt:              time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func testCustomer(credit int64, overdue int) *financing.Customer {
	return &financing.Customer{
		ID:              testCustomerID,
		FirstName:       "Ana",
		LastName:        "Suarez",
		Identification:  "12345678",
		AvailableCredit: decimal.NewFromInt(credit),
		OverdueMonths:   overdue,
	}
}

func noteUpdate(note string, paid bool) interface{} {
	return mock.MatchedBy(func(u storefront.OrderUpdate) bool {
		if u.OwnerNote == nil || *u.OwnerNote != note {
			return false
		}
		if paid {
			return u.PaymentStatus != nil && *u.PaymentStatus == storefront.PaymentStatusPaid
		}
		return u.PaymentStatus == nil
	})
}

// ----------------------------------------------------------------------------
// ListOrders
// ----------------------------------------------------------------------------

func TestService_ListOrders(t *testing.T) {
	plain := *testOrder("")
	plain.ID = 1
	waiting := *testOrder("#ESPERANDO_DIFERENCIA")
	waiting.ID = 2
	pending := *testOrder("llamar #PENDIENTE_PAGO")
	pending.ID = 3
	all := []storefront.Order{plain, waiting, pending}

	tests := []struct {
		name    string
		filter  OrderFilter
		opts    storefront.ListOptions
		wantIDs []int64
	}{
		{
			name:    "new inbox skips orders waiting for a difference",
			filter:  OrderFilter{},
			opts:    storefront.ListOptions{Status: storefront.OrderStatusOpen, PerPage: 50},
			wantIDs: []int64{1, 3},
		},
		{
			name:    "follow-up inbox reads any status",
			filter:  OrderFilter{Inbox: InboxFollowUp},
			opts:    storefront.ListOptions{Status: storefront.OrderStatusAny, PerPage: 50},
			wantIDs: []int64{2},
		},
		{
			name:    "marker filter",
			filter:  OrderFilter{Marker: "pendiente_pago", PerPage: 500},
			opts:    storefront.ListOptions{Status: storefront.OrderStatusOpen, PerPage: 200},
			wantIDs: []int64{3},
		},
		{
			name:    "explicit status",
			filter:  OrderFilter{Status: storefront.OrderStatusClosed, PerPage: 10},
			opts:    storefront.ListOptions{Status: storefront.OrderStatusClosed, PerPage: 10},
			wantIDs: []int64{1, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.orders.On("ListOrders", mock.Anything, tt.opts).Return(all, nil).Once()

			got, err := f.svc.ListOrders(context.Background(), tt.filter)
			require.NoError(t, err)

			ids := make([]int64, 0, len(got))
			for _, o := range got {
				ids = append(ids, o.ID)
				assert.True(t, o.ManualPayment)
			}
			assert.Equal(t, tt.wantIDs, ids)
			f.orders.AssertExpectations(t)
		})
	}
}

func TestService_ListOrders_PunctuatedMarker(t *testing.T) {
	waiting := *testOrder("transferencia pedida #ESPERANDO_DIFERENCIA.")
	f := newFixture(t)
	f.orders.On("ListOrders", mock.Anything, mock.Anything).Return([]storefront.Order{waiting}, nil)

	fresh, err := f.svc.ListOrders(context.Background(), OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, fresh)

	followUp, err := f.svc.ListOrders(context.Background(), OrderFilter{Inbox: InboxFollowUp})
	require.NoError(t, err)
	require.Len(t, followUp, 1)
	assert.Equal(t, testOrderID, followUp[0].ID)
}

func TestService_ListOrders_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListOrders(context.Background(), OrderFilter{Marker: "#URGENTE"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.svc.ListOrders(context.Background(), OrderFilter{Inbox: "archive"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	f.orders.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything)
}

func TestService_ListOrders_StorefrontDown(t *testing.T) {
	f := newFixture(t)
	f.orders.On("ListOrders", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: 503", storefront.ErrUnavailable))

	_, err := f.svc.ListOrders(context.Background(), OrderFilter{})
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, storefront.ErrUnavailable)
}

// ----------------------------------------------------------------------------
// AnalyzeOrder
// ----------------------------------------------------------------------------

func TestService_AnalyzeOrder_Approve(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(""), nil)
	f.customers.On("Search", mock.Anything, "20123456783").
		Return([]financing.Customer{*testCustomer(120000, 0)}, nil).Once()
	f.expectAudit(audit.ActionAnalyze)

	got, err := f.svc.AnalyzeOrder(context.Background(), testOrderID, "marta")
	require.NoError(t, err)

	require.NotNil(t, got.Customer)
	assert.Equal(t, testCustomerID, got.Customer.ID)
	assert.Equal(t, "identification", got.Match.Rule)
	assert.Equal(t, "heuristic", got.Match.Trust)
	assert.NotEmpty(t, got.Match.Diagnostics)
	assert.Equal(t, "approve", got.Decision.Outcome)
	assert.False(t, got.FinancingUnavailable)
	assert.False(t, got.AlreadyCharged)
	assert.Empty(t, got.WhatsAppLink)
	assert.Empty(t, got.Warnings)
	f.assertExpectations(t)
}

func TestService_AnalyzeOrder_PartialBuildsLink(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(""), nil)
	f.customers.On("Search", mock.Anything, "20123456783").
		Return([]financing.Customer{*testCustomer(60000, 0)}, nil)
	f.expectAudit(audit.ActionAnalyze)

	got, err := f.svc.AnalyzeOrder(context.Background(), testOrderID, "marta")
	require.NoError(t, err)

	assert.Equal(t, "partial", got.Decision.Outcome)
	assert.True(t, got.Decision.Shortfall.Equal(decimal.NewFromInt(30000)))
	assert.Equal(t,
		"https://wa.me/5491155550101?text=Hola%20Ana%20Suarez%2C%20falta%20abonar%20%2430.000%20para%20tu%20pedido%20%2342.",
		got.WhatsAppLink)
}

func TestService_AnalyzeOrder_FinancingUnavailable(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(""), nil)
	f.customers.On("Search", mock.Anything, "20123456783").
		Return(nil, fmt.Errorf("%w: connection refused", financing.ErrBackendUnavailable))
	f.audit.On("Save", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
		return e.Provenance == "financing backend unavailable" && e.CustomerID == nil
	})).Return(nil)

	got, err := f.svc.AnalyzeOrder(context.Background(), testOrderID, "marta")
	require.NoError(t, err)

	assert.True(t, got.FinancingUnavailable)
	assert.Nil(t, got.Customer)
	assert.Equal(t, "unmatched", got.Decision.Outcome)
	assert.Equal(t, "none", got.Match.Rule)
	require.NotEmpty(t, got.Warnings)
	assert.Contains(t, got.Warnings[0], "financing backend unavailable")
	f.customers.AssertNumberOfCalls(t, "Search", 1)
}

func TestService_AnalyzeOrder_Warnings(t *testing.T) {
	f := newFixture(t)
	order := testOrder("#APROBADO_ARIA")
	order.PaymentMethod = "credit_card"
	order.Gateway = "mercadopago"
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(order, nil)
	f.customers.On("Search", mock.Anything, "20123456783").
		Return([]financing.Customer{*testCustomer(120000, 0)}, nil)
	f.audit.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	got, err := f.svc.AnalyzeOrder(context.Background(), testOrderID, "marta")
	require.NoError(t, err)

	assert.True(t, got.AlreadyCharged)
	require.Len(t, got.Warnings, 2)
	assert.Contains(t, got.Warnings[0], "not a manual one")
	assert.Equal(t, "audit entry could not be saved", got.Warnings[1])
}

func TestService_AnalyzeOrder_OrderNotFound(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).
		Return(nil, fmt.Errorf("%w: 404", storefront.ErrOrderNotFound))

	_, err := f.svc.AnalyzeOrder(context.Background(), testOrderID, "marta")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, err, storefront.ErrOrderNotFound)
	f.customers.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

// ----------------------------------------------------------------------------
// LookupCustomer / SearchCustomers
// ----------------------------------------------------------------------------

func TestService_LookupCustomer(t *testing.T) {
	f := newFixture(t)
	f.customers.On("LookupByID", mock.Anything, testCustomerID).Return(testCustomer(60000, 0), nil)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(""), nil)

	orderID := testOrderID
	got, err := f.svc.LookupCustomer(context.Background(), testCustomerID, &orderID)
	require.NoError(t, err)

	assert.Equal(t, "Ana Suarez", got.Customer.Name)
	require.NotNil(t, got.Decision)
	assert.Equal(t, "partial", got.Decision.Outcome)
	assert.NotEmpty(t, got.WhatsAppLink)

	got, err = f.svc.LookupCustomer(context.Background(), testCustomerID, nil)
	require.NoError(t, err)
	assert.Nil(t, got.Order)
	assert.Nil(t, got.Decision)
}

func TestService_LookupCustomer_NotFound(t *testing.T) {
	f := newFixture(t)
	f.customers.On("LookupByID", mock.Anything, int64(9)).Return(nil, financing.ErrCustomerNotFound)

	_, err := f.svc.LookupCustomer(context.Background(), 9, nil)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.LookupCustomer(context.Background(), 0, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestService_SearchCustomers(t *testing.T) {
	f := newFixture(t)
	f.customers.On("Search", mock.Anything, "suarez").Return(nil, financing.ErrCustomerNotFound)
	f.customers.On("SearchByIdentification", mock.Anything, "12345678").
		Return([]financing.Customer{*testCustomer(1000, 0)}, nil)

	got, err := f.svc.SearchCustomers(context.Background(), " suarez ", false)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.svc.SearchCustomers(context.Background(), "12345678", true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, testCustomerID, got[0].ID)

	_, err = f.svc.SearchCustomers(context.Background(), "  ", false)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

// ----------------------------------------------------------------------------
// Charge
// ----------------------------------------------------------------------------

func (f *fixture) expectChargeDebt(amount int64) {
	f.ledger.On("CreateInstallmentDebt", mock.Anything, mock.MatchedBy(func(d *financing.InstallmentDebt) bool {
		return d.CustomerID == testCustomerID &&
			d.Total.Equal(decimal.NewFromInt(amount)) &&
			d.Installments == financing.DefaultInstallments &&
			d.Description == "Compra en TN #42: Heladera (1)"
	})).Return(nil).Once()
}

func TestService_Charge(t *testing.T) {
	f := newFixture(t)
	order := testOrder("retira en local #ESPERANDO_DIFERENCIA")
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(order, nil)
	f.customers.On("LookupByID", mock.Anything, testCustomerID).Return(testCustomer(120000, 0), nil)
	f.expectChargeDebt(90000)
	f.orders.On("UpdateOrder", mock.Anything, testOrderID, noteUpdate("retira en local #APROBADO_ARIA", true)).Return(nil).Once()
	f.orders.On("ListProducts", mock.Anything, 3).Return([]storefront.Product{{ID: 8, Name: "Microondas"}}, nil)
	f.notifier.On("Notify", mock.Anything, notification.KindApproval, testEmail, mock.MatchedBy(func(d *notification.EmailData) bool {
		return d.InstallmentAmount.Equal(decimal.NewFromInt(30000)) && d.Installments == 3 && len(d.Recommendations) == 1
	})).Return(nil).Once()
	f.expectAudit(audit.ActionCharge)

	ctx := context.Background()
	got, err := f.svc.Charge(ctx, ChargeCommand{OrderID: testOrderID, CustomerID: testCustomerID, Operator: "marta"})
	require.NoError(t, err)

	assert.Empty(t, got.Warnings)
	assert.True(t, got.EmailSent)
	assert.Equal(t, []string{"#APROBADO_ARIA"}, got.Markers)
	assert.Equal(t, "retira en local #APROBADO_ARIA", got.OwnerNote)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(90000)))
	assert.Equal(t, 3, got.Installments)

	charged, err := f.store.IsProcessed(ctx, "1001")
	require.NoError(t, err)
	assert.True(t, charged)
	f.assertExpectations(t)

	// a second charge of the same order is refused before touching the ledger
	_, err = f.svc.Charge(ctx, ChargeCommand{OrderID: testOrderID, CustomerID: testCustomerID, Operator: "marta"})
	assert.ErrorIs(t, err, shared.ErrAlreadyCharged)
	f.ledger.AssertNumberOfCalls(t, "CreateInstallmentDebt", 1)
}

func TestService_Charge_PaymentStatusRejected(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(""), nil)
	f.customers.On("LookupByID", mock.Anything, testCustomerID).Return(testCustomer(120000, 0), nil)
	f.expectChargeDebt(90000)
	f.orders.On("UpdateOrder", mock.Anything, testOrderID, noteUpdate("#APROBADO_ARIA", true)).
		Return(fmt.Errorf("%w: 422", storefront.ErrUpdateRejected)).Once()
	f.orders.On("UpdateOrder", mock.Anything, testOrderID, noteUpdate("#APROBADO_ARIA", false)).Return(nil).Once()
	f.orders.On("ListProducts", mock.Anything, 3).Return(nil, errors.New("timeout"))
	f.notifier.On("Notify", mock.Anything, notification.KindApproval, testEmail, mock.Anything).Return(nil)
	f.expectAudit(audit.ActionCharge)

	got, err := f.svc.Charge(context.Background(), ChargeCommand{OrderID: testOrderID, CustomerID: testCustomerID})
	require.NoError(t, err)

	assert.Equal(t, []string{"#APROBADO_ARIA"}, got.Markers)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "refused to mark the order as paid")
	f.assertExpectations(t)
}

func TestService_Charge_DegradesAfterDebt(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(""), nil)
	f.customers.On("LookupByID", mock.Anything, testCustomerID).Return(testCustomer(120000, 0), nil)
	f.expectChargeDebt(90000)
	f.orders.On("UpdateOrder", mock.Anything, testOrderID, mock.Anything).
		Return(fmt.Errorf("%w: timeout", storefront.ErrUnavailable))
	f.orders.On("ListProducts", mock.Anything, 3).Return([]storefront.Product{}, nil)
	f.notifier.On("Notify", mock.Anything, notification.KindApproval, testEmail, mock.Anything).
		Return(errors.New("smtp: 421"))
	f.audit.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))

	got, err := f.svc.Charge(context.Background(), ChargeCommand{OrderID: testOrderID, CustomerID: testCustomerID})
	require.NoError(t, err)

	assert.False(t, got.EmailSent)
	assert.Empty(t, got.Markers)
	assert.Len(t, got.Warnings, 3)

	charged, _ := f.store.IsProcessed(context.Background(), "1001")
	assert.True(t, charged, "guard is set even when the note could not be updated")
}

func TestService_Charge_Refused(t *testing.T) {
	tests := []struct {
		name     string
		customer *financing.Customer
		amount   *decimal.Decimal
		wantErr  error
	}{
		{name: "credit short", customer: testCustomer(60000, 0), wantErr: shared.ErrInsufficientCredit},
		{name: "overdue", customer: testCustomer(500000, 2), wantErr: shared.ErrInvalidState},
		{name: "amount above total", customer: testCustomer(500000, 0), amount: decimalPtr(90001), wantErr: shared.ErrInvalidInput},
		{name: "zero amount", customer: testCustomer(500000, 0), amount: decimalPtr(0), wantErr: shared.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(""), nil)
			f.customers.On("LookupByID", mock.Anything, testCustomerID).Return(tt.customer, nil)

			_, err := f.svc.Charge(context.Background(), ChargeCommand{
				OrderID: testOrderID, CustomerID: testCustomerID, Amount: tt.amount,
			})
			assert.ErrorIs(t, err, tt.wantErr)
			f.ledger.AssertNotCalled(t, "CreateInstallmentDebt", mock.Anything, mock.Anything)
			f.orders.AssertNotCalled(t, "UpdateOrder", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_Charge_ApprovedMarkerNextToPunctuation(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder("cobrado (#APROBADO_ARIA)."), nil)
	f.customers.On("LookupByID", mock.Anything, testCustomerID).Return(testCustomer(500000, 0), nil).Maybe()

	_, err := f.svc.Charge(context.Background(), ChargeCommand{OrderID: testOrderID, CustomerID: testCustomerID})

	assert.ErrorIs(t, err, shared.ErrAlreadyCharged)
	f.ledger.AssertNotCalled(t, "CreateInstallmentDebt", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "UpdateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Charge_PartialAmountWithinCredit(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(""), nil)
	f.customers.On("LookupByID", mock.Anything, testCustomerID).Return(testCustomer(60000, 0), nil)
	f.expectChargeDebt(60000)
	f.orders.On("UpdateOrder", mock.Anything, testOrderID, mock.Anything).Return(nil)
	f.orders.On("ListProducts", mock.Anything, 3).Return(nil, nil)
	f.notifier.On("Notify", mock.Anything, notification.KindApproval, testEmail, mock.Anything).Return(nil)
	f.expectAudit(audit.ActionCharge)

	got, err := f.svc.Charge(context.Background(), ChargeCommand{
		OrderID: testOrderID, CustomerID: testCustomerID, Amount: decimalPtr(60000),
	})
	require.NoError(t, err)
	assert.True(t, got.InstallmentAmount.Equal(decimal.NewFromInt(20000)))
}

func TestService_Charge_LedgerUnavailable(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(""), nil)
	f.customers.On("LookupByID", mock.Anything, testCustomerID).Return(testCustomer(120000, 0), nil)
	f.ledger.On("CreateInstallmentDebt", mock.Anything, mock.Anything).
		Return(fmt.Errorf("%w: timeout", financing.ErrBackendUnavailable))

	_, err := f.svc.Charge(context.Background(), ChargeCommand{OrderID: testOrderID, CustomerID: testCustomerID})
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, financing.ErrBackendUnavailable)

	charged, _ := f.store.IsProcessed(context.Background(), "1001")
	assert.False(t, charged)
	f.orders.AssertNotCalled(t, "UpdateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Charge_LockHeld(t *testing.T) {
	f := newFixture(t)
	release, err := f.store.Obtain(context.Background(), "1001", time.Minute)
	require.NoError(t, err)
	defer release()

	_, err = f.svc.Charge(context.Background(), ChargeCommand{OrderID: testOrderID, CustomerID: testCustomerID})
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	f.orders.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything)
}

func TestService_Charge_InvalidCommand(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Charge(context.Background(), ChargeCommand{OrderID: testOrderID})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

// ----------------------------------------------------------------------------
// RequestDifference
// ----------------------------------------------------------------------------

func TestService_RequestDifference(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder("seña pagada"), nil)
	f.customers.On("LookupByID", mock.Anything, testCustomerID).Return(testCustomer(60000, 0), nil)
	f.orders.On("UpdateOrder", mock.Anything, testOrderID, noteUpdate("seña pagada #ESPERANDO_DIFERENCIA", false)).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, notification.KindPartialApproval, testEmail, mock.MatchedBy(func(d *notification.EmailData) bool {
		return d.Shortfall.Equal(decimal.NewFromInt(30000)) && d.CreditAmount.Equal(decimal.NewFromInt(60000))
	})).Return(nil).Once()
	f.expectAudit(audit.ActionRequestDifference)

	got, err := f.svc.RequestDifference(context.Background(), DifferenceCommand{
		OrderID: testOrderID, CustomerID: testCustomerID, Operator: "marta",
	})
	require.NoError(t, err)

	assert.True(t, got.Changed)
	assert.True(t, got.EmailSent)
	assert.Equal(t, []string{"#ESPERANDO_DIFERENCIA"}, got.Markers)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(30000)))
	assert.Contains(t, got.WhatsAppLink, "https://wa.me/5491155550101?text=")
	assert.Empty(t, got.Warnings)
	f.assertExpectations(t)
}

func TestService_RequestDifference_NotPartial(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(""), nil)
	f.customers.On("LookupByID", mock.Anything, testCustomerID).Return(testCustomer(120000, 0), nil)

	_, err := f.svc.RequestDifference(context.Background(), DifferenceCommand{OrderID: testOrderID, CustomerID: testCustomerID})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	f.orders.AssertNotCalled(t, "UpdateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_RequestDifference_NoPhoneNoEmail(t *testing.T) {
	f := newFixture(t)
	order := testOrder("#ESPERANDO_DIFERENCIA")
	order.CustomerPhone = ""
	order.CustomerEmail = ""
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(order, nil)
	f.customers.On("LookupByID", mock.Anything, testCustomerID).Return(testCustomer(60000, 0), nil)
	f.expectAudit(audit.ActionRequestDifference)

	got, err := f.svc.RequestDifference(context.Background(), DifferenceCommand{OrderID: testOrderID, CustomerID: testCustomerID})
	require.NoError(t, err)

	assert.False(t, got.Changed)
	assert.Empty(t, got.WhatsAppLink)
	assert.Equal(t, []string{"order has no customer email", "order has no phone number for a WhatsApp message"}, got.Warnings)
	f.orders.AssertNotCalled(t, "UpdateOrder", mock.Anything, mock.Anything, mock.Anything)
}

// ----------------------------------------------------------------------------
// Reject
// ----------------------------------------------------------------------------

func TestService_Reject(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(""), nil)
	f.orders.On("CancelOrder", mock.Anything, testOrderID, "other").Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, notification.KindRejection, testEmail, mock.MatchedBy(func(d *notification.EmailData) bool {
		return d.CustomerName == "Ana Suarez" && d.Reason == "cuotas impagas"
	})).Return(nil).Once()
	f.audit.On("Save", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
		return e.Action == audit.ActionReject && e.Detail == "cuotas impagas; cancelled (other); customer notified"
	})).Return(nil).Once()

	got, err := f.svc.Reject(context.Background(), RejectCommand{
		OrderID: testOrderID, Reason: "cuotas impagas", Cancel: true, Notify: true, Operator: "marta",
	})
	require.NoError(t, err)

	assert.True(t, got.Cancelled)
	assert.True(t, got.EmailSent)
	f.assertExpectations(t)
}

func TestService_Reject_EmailOnlyFails(t *testing.T) {
	f := newFixture(t)
	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(""), nil)
	f.notifier.On("Notify", mock.Anything, notification.KindRejection, testEmail, mock.Anything).
		Return(errors.New("smtp down"))

	_, err := f.svc.Reject(context.Background(), RejectCommand{OrderID: testOrderID, Notify: true})
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
	f.audit.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestService_Reject_Refused(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reject(context.Background(), RejectCommand{OrderID: testOrderID, Cancel: true, CancelReason: "boredom"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder("#APROBADO_ARIA"), nil)
	_, err = f.svc.Reject(context.Background(), RejectCommand{OrderID: testOrderID, Cancel: true})
	assert.ErrorIs(t, err, shared.ErrAlreadyCharged)
	f.orders.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything, mock.Anything)
}

// ----------------------------------------------------------------------------
// TagOrder
// ----------------------------------------------------------------------------

func TestService_TagOrder(t *testing.T) {
	tests := []struct {
		name        string
		note        string
		marker      storefront.Marker
		remove      bool
		wantNote    string
		wantChanged bool
	}{
		{name: "add", note: "llamar", marker: storefront.MarkerPendingPayment, wantNote: "llamar #PENDIENTE_PAGO", wantChanged: true},
		{name: "add twice is a no-op", note: "llamar #PENDIENTE_PAGO", marker: storefront.MarkerPendingPayment, wantNote: "llamar #PENDIENTE_PAGO"},
		{name: "remove", note: "#ESPERANDO_DIFERENCIA\nllamar", marker: storefront.MarkerAwaitingDifference, remove: true, wantNote: "llamar", wantChanged: true},
		{name: "remove missing is a no-op", note: "llamar", marker: storefront.MarkerApproved, remove: true, wantNote: "llamar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.orders.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(tt.note), nil)
			if tt.wantChanged {
				f.orders.On("UpdateOrder", mock.Anything, testOrderID, noteUpdate(tt.wantNote, false)).Return(nil).Once()
				f.expectAudit(audit.ActionTag)
			}

			got, err := f.svc.TagOrder(context.Background(), TagCommand{
				OrderID: testOrderID, Marker: tt.marker, Remove: tt.remove, Operator: "marta",
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantChanged, got.Changed)
			assert.Equal(t, tt.wantNote, got.OwnerNote)
			f.assertExpectations(t)
			if !tt.wantChanged {
				f.orders.AssertNotCalled(t, "UpdateOrder", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestService_TagOrder_UnknownMarker(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.TagOrder(context.Background(), TagCommand{OrderID: testOrderID, Marker: "#URGENTE"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

// ----------------------------------------------------------------------------
// AuditTrail / ExportFollowUp
// ----------------------------------------------------------------------------

func TestService_AuditTrail(t *testing.T) {
	f := newFixture(t)
	entry := audit.NewEntry(testOrderID, 42, audit.ActionCharge, "marta").WithCustomer(testCustomerID)
	f.audit.On("FindByOrder", mock.Anything, testOrderID, defaultAuditLimit).Return([]audit.Entry{*entry}, nil)

	got, err := f.svc.AuditTrail(context.Background(), testOrderID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "charge", got[0].Action)
	assert.Equal(t, testCustomerID, *got[0].CustomerID)
}

func TestService_AuditTrail_NoRepository(t *testing.T) {
	svc := NewService(ServiceConfig{})
	got, err := svc.AuditTrail(context.Background(), testOrderID, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_ExportFollowUp(t *testing.T) {
	f := newFixture(t)
	waiting := *testOrder("seña #ESPERANDO_DIFERENCIA")
	other := *testOrder("")
	other.ID = 7
	f.orders.On("ListOrders", mock.Anything, storefront.ListOptions{Status: storefront.OrderStatusAny, PerPage: maxPerPage}).
		Return([]storefront.Order{waiting, other}, nil)

	var buf bytes.Buffer
	n, err := f.svc.ExportFollowUp(context.Background(), &buf)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Greater(t, buf.Len(), 0)
}

// ----------------------------------------------------------------------------
// Error translation
// ----------------------------------------------------------------------------

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *shared.DomainError
	}{
		{name: "order not found", err: storefront.ErrOrderNotFound, want: shared.ErrNotFound},
		{name: "customer not found", err: financing.ErrCustomerNotFound, want: shared.ErrNotFound},
		{name: "storefront down", err: storefront.ErrUnavailable, want: shared.ErrUpstreamUnavailable},
		{name: "storefront garbage", err: storefront.ErrInvalidResponse, want: shared.ErrUpstreamUnavailable},
		{name: "financing down", err: financing.ErrBackendUnavailable, want: shared.ErrUpstreamUnavailable},
		{name: "storefront 422", err: storefront.ErrUpdateRejected, want: shared.ErrUpstreamRejected},
		{name: "financing 400", err: financing.ErrBackendRejected, want: shared.ErrUpstreamRejected},
		{name: "invalid debt", err: financing.ErrInvalidDebt, want: shared.ErrInvalidInput},
		{name: "lock held", err: shared.ErrLockNotObtained, want: shared.ErrConcurrencyConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(fmt.Errorf("wrapped: %w", tt.err))
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	plain := errors.New("boom")
	assert.Same(t, plain, translateError(plain))
	assert.NoError(t, translateError(nil))
}

func decimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
