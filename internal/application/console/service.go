// Package console orchestrates the collections workflow: it reads orders
// from the storefront, reconciles buyers with financing customers and runs
// the operator's actions against both systems.
package console

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cobranzas/backend/internal/domain/audit"
	"github.com/cobranzas/backend/internal/domain/financing"
	"github.com/cobranzas/backend/internal/domain/reconciliation"
	"github.com/cobranzas/backend/internal/domain/shared"
	"github.com/cobranzas/backend/internal/domain/storefront"
	"github.com/cobranzas/backend/internal/infrastructure/notification"
)

// Notifier sends customer emails
type Notifier interface {
	Notify(ctx context.Context, kind notification.Kind, to string, data *notification.EmailData) error
}

// LinkBuilder builds WhatsApp click-to-chat links
type LinkBuilder interface {
	Link(phone, text string) (string, error)
	ShortfallLink(phone, customerName string, orderNumber int64, shortfall decimal.Decimal) (string, error)
}

// Metrics records console activity
type Metrics interface {
	RecordAnalysis(ctx context.Context, rule, decision string)
	RecordAction(ctx context.Context, operation, outcome string)
	RecordUpstream(ctx context.Context, upstream, operation string, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordAnalysis(context.Context, string, string)                {}
func (nopMetrics) RecordAction(context.Context, string, string)                  {}
func (nopMetrics) RecordUpstream(context.Context, string, string, time.Duration) {}

const (
	upstreamStorefront = "storefront"
	upstreamFinancing  = "financing"

	outcomeSuccess = "success"
	outcomePartial = "partial"
	outcomeFailed  = "failed"

	recommendationLimit = 3
)

// ServiceConfig holds the dependencies of the console service
type ServiceConfig struct {
	Orders    storefront.OrderGateway
	Customers financing.CustomerDirectory
	Ledger    financing.DebtLedger
	// Notifier is optional; without it no email is sent and actions report a warning
	Notifier Notifier
	// Links is optional; without it no WhatsApp link is built
	Links  LinkBuilder
	Guard  shared.IdempotencyStore
	Locker shared.Locker
	// Audit is optional
	Audit        audit.Repository
	Metrics      Metrics
	Installments int
	Idempotency  shared.IdempotencyConfig
	Logger       *zap.Logger
}

// Service runs the operator's workflow on storefront orders
type Service struct {
	orders       storefront.OrderGateway
	customers    financing.CustomerDirectory
	ledger       financing.DebtLedger
	engine       *reconciliation.Engine
	notifier     Notifier
	links        LinkBuilder
	guard        shared.IdempotencyStore
	locker       shared.Locker
	audit        audit.Repository
	metrics      Metrics
	installments int
	idempotency  shared.IdempotencyConfig
	logger       *zap.Logger
}

// NewService creates a new console Service
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var metrics Metrics = nopMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}
	installments := cfg.Installments
	if installments <= 0 {
		installments = financing.DefaultInstallments
	}
	idem := cfg.Idempotency
	defaults := shared.DefaultIdempotencyConfig()
	if idem.TTL <= 0 {
		idem.TTL = defaults.TTL
	}
	if idem.LockTTL <= 0 {
		idem.LockTTL = defaults.LockTTL
	}

	return &Service{
		orders:       cfg.Orders,
		customers:    cfg.Customers,
		ledger:       cfg.Ledger,
		engine:       reconciliation.NewEngine(cfg.Customers),
		notifier:     cfg.Notifier,
		links:        cfg.Links,
		guard:        cfg.Guard,
		locker:       cfg.Locker,
		audit:        cfg.Audit,
		metrics:      metrics,
		installments: installments,
		idempotency:  idem,
		logger:       logger.Named("console"),
	}
}

// ---------------------------------------------------------------------------
// Upstream calls
// ---------------------------------------------------------------------------

func (s *Service) getOrder(ctx context.Context, id int64) (*storefront.Order, error) {
	start := time.Now()
	order, err := s.orders.GetOrder(ctx, id)
	s.metrics.RecordUpstream(ctx, upstreamStorefront, "get_order", time.Since(start))
	if err != nil {
		return nil, translateError(err)
	}
	return order, nil
}

func (s *Service) updateOrder(ctx context.Context, id int64, update storefront.OrderUpdate) error {
	start := time.Now()
	err := s.orders.UpdateOrder(ctx, id, update)
	s.metrics.RecordUpstream(ctx, upstreamStorefront, "update_order", time.Since(start))
	return err
}

func (s *Service) lookupCustomer(ctx context.Context, id int64) (*financing.Customer, error) {
	start := time.Now()
	customer, err := s.customers.LookupByID(ctx, id)
	s.metrics.RecordUpstream(ctx, upstreamFinancing, "lookup_customer", time.Since(start))
	if err != nil {
		return nil, translateError(err)
	}
	return customer, nil
}

func (s *Service) reconcile(ctx context.Context, order *storefront.Order) (*reconciliation.Result, error) {
	start := time.Now()
	result, err := s.engine.Reconcile(ctx, reconciliation.Query{
		CustomerName:   order.CustomerName,
		Identification: order.CustomerIdentification,
		OwnerNote:      order.OwnerNote,
	})
	s.metrics.RecordUpstream(ctx, upstreamFinancing, "reconcile", time.Since(start))
	return result, err
}

// ---------------------------------------------------------------------------
// Guard
// ---------------------------------------------------------------------------

func orderKey(orderID int64) string {
	return strconv.FormatInt(orderID, 10)
}

// lockOrder serializes actions on one order across operators
func (s *Service) lockOrder(ctx context.Context, orderID int64) (func(), error) {
	release, err := s.locker.Obtain(ctx, orderKey(orderID), s.idempotency.LockTTL)
	if err != nil {
		return nil, translateError(err)
	}
	return release, nil
}

// alreadyCharged checks the approved marker first, then the guard, which
// also covers a charge whose note update failed.
func (s *Service) alreadyCharged(ctx context.Context, order *storefront.Order) (bool, error) {
	if order.HasMarker(storefront.MarkerApproved) {
		return true, nil
	}
	return s.guard.IsProcessed(ctx, orderKey(order.ID))
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

// record saves an audit entry. A failure is logged and returned as a warning
// text; it never fails the action.
func (s *Service) record(ctx context.Context, entry *audit.Entry) string {
	if s.audit == nil {
		return ""
	}
	if err := s.audit.Save(ctx, entry); err != nil {
		s.logger.Warn("Failed to save audit entry",
			zap.Int64("order_id", entry.OrderID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
		return "audit entry could not be saved"
	}
	return ""
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// translateError maps adapter and guard errors to domain errors the HTTP
// layer understands. The original error stays reachable through errors.Is.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}

	switch {
	case errors.Is(err, storefront.ErrOrderNotFound):
		return shared.ErrNotFound.WithMessage("Order not found").WithCause(err)
	case errors.Is(err, financing.ErrCustomerNotFound):
		return shared.ErrNotFound.WithMessage("Financing customer not found").WithCause(err)
	case errors.Is(err, storefront.ErrUnavailable), errors.Is(err, storefront.ErrInvalidResponse):
		return shared.ErrUpstreamUnavailable.WithMessage("Storefront is unavailable").WithCause(err)
	case errors.Is(err, financing.ErrBackendUnavailable), errors.Is(err, financing.ErrInvalidResponse):
		return shared.ErrUpstreamUnavailable.WithMessage("Financing backend is unavailable").WithCause(err)
	case errors.Is(err, storefront.ErrRequestRejected), errors.Is(err, storefront.ErrUpdateRejected):
		return shared.ErrUpstreamRejected.WithMessage("Storefront rejected the request").WithCause(err)
	case errors.Is(err, financing.ErrBackendRejected):
		return shared.ErrUpstreamRejected.WithMessage("Financing backend rejected the request").WithCause(err)
	case errors.Is(err, financing.ErrInvalidDebt):
		return shared.ErrInvalidInput.WithMessage(err.Error()).WithCause(err)
	case errors.Is(err, shared.ErrLockNotObtained):
		return shared.ErrConcurrencyConflict.WithCause(err)
	}
	return err
}
