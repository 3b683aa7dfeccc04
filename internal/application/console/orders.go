package console

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cobranzas/backend/internal/domain/audit"
	"github.com/cobranzas/backend/internal/domain/financing"
	"github.com/cobranzas/backend/internal/domain/reconciliation"
	"github.com/cobranzas/backend/internal/domain/shared"
	"github.com/cobranzas/backend/internal/domain/storefront"
	"github.com/cobranzas/backend/internal/infrastructure/export"
	"github.com/cobranzas/backend/internal/infrastructure/telemetry"
)

const defaultAuditLimit = 50

// ListOrders returns the orders of an inbox. The new inbox holds open orders
// without the waiting marker; the follow-up inbox holds orders of any status
// that carry it.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]OrderSummary, error) {
	orders, err := s.listInbox(ctx, filter)
	if err != nil {
		return nil, err
	}

	summaries := make([]OrderSummary, 0, len(orders))
	for i := range orders {
		summaries = append(summaries, ToOrderSummary(&orders[i]))
	}
	return summaries, nil
}

func (s *Service) listInbox(ctx context.Context, filter OrderFilter) ([]storefront.Order, error) {
	inbox := filter.Inbox
	if inbox == "" {
		inbox = InboxNew
	}
	if !inbox.IsValid() {
		return nil, shared.ErrInvalidInput.WithMessage("Unknown inbox: " + string(inbox))
	}

	status := filter.Status
	if status == "" {
		status = storefront.OrderStatusOpen
		if inbox == InboxFollowUp {
			status = storefront.OrderStatusAny
		}
	}
	if !status.IsValid() {
		return nil, shared.ErrInvalidInput.WithMessage("Unknown order status: " + string(status))
	}

	var marker storefront.Marker
	if filter.Marker != "" {
		m, ok := storefront.ParseMarker(filter.Marker)
		if !ok {
			return nil, shared.ErrInvalidInput.WithMessage("Unknown marker: " + filter.Marker)
		}
		marker = m
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	start := time.Now()
	orders, err := s.orders.ListOrders(ctx, storefront.ListOptions{Status: status, PerPage: perPage})
	s.metrics.RecordUpstream(ctx, upstreamStorefront, "list_orders", time.Since(start))
	if err != nil {
		return nil, translateError(err)
	}

	out := make([]storefront.Order, 0, len(orders))
	for _, o := range orders {
		waiting := o.HasMarker(storefront.MarkerAwaitingDifference)
		if waiting != (inbox == InboxFollowUp) {
			continue
		}
		if marker != "" && !o.HasMarker(marker) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// AnalyzeOrder reconciles the order's buyer with a financing customer and
// evaluates the credit policy against the order total.
//
// An unreachable financing backend does not fail the analysis: the result
// is unmatched with FinancingUnavailable set, so the operator can still see
// the order and retry later.
func (s *Service) AnalyzeOrder(ctx context.Context, orderID int64, operator string) (*Analysis, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "console", "analyze",
		telemetry.SpanAttrOrderID, orderID,
		telemetry.SpanAttrOperator, operator,
	)
	defer span.End()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	analysis := &Analysis{Order: ToOrderSummary(order)}

	result, err := s.reconcile(ctx, order)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("Financing backend unavailable during analysis",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		telemetry.AddEvent(span, "financing_unavailable")
		analysis.FinancingUnavailable = true
		analysis.Warnings = append(analysis.Warnings, "financing backend unavailable: the customer could not be checked")
	}

	decision := reconciliation.Decide(result.Customer, order.Total)
	analysis.Customer = ToCustomerView(result.Customer)
	analysis.Match = MatchView{
		Rule:        result.Rule.String(),
		Trust:       result.Trust.String(),
		Provenance:  result.Provenance,
		Candidate:   result.Candidate,
		Diagnostics: result.Diagnostics,
	}
	analysis.Decision = ToDecisionView(decision)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrRule, result.Rule.String(),
		telemetry.SpanAttrDecision, decision.Outcome.String(),
	)

	if !order.IsManualPayment() && !order.HasMarker(storefront.MarkerAwaitingDifference) {
		analysis.Warnings = append(analysis.Warnings,
			"payment method is not a manual one ("+strings.TrimSpace(order.PaymentMethod)+"); check before charging")
	}

	charged, err := s.alreadyCharged(ctx, order)
	if err != nil {
		s.logger.Warn("Failed to read action guard", zap.Int64("order_id", orderID), zap.Error(err))
		analysis.Warnings = append(analysis.Warnings, "could not check whether the order was already charged")
	}
	analysis.AlreadyCharged = charged

	if decision.Outcome == reconciliation.OutcomePartial {
		if link, warning := s.shortfallLink(order, decision); warning != "" {
			analysis.Warnings = append(analysis.Warnings, warning)
		} else {
			analysis.WhatsAppLink = link
		}
	}

	entry := audit.NewEntry(order.ID, order.Number, audit.ActionAnalyze, operator).WithCustomer(result.CustomerID())
	entry.Rule = result.Rule.String()
	entry.Trust = result.Trust.String()
	entry.Provenance = result.Provenance
	entry.Outcome = decision.Outcome.String()
	entry.Amount = order.Total
	if warning := s.record(ctx, entry); warning != "" {
		analysis.Warnings = append(analysis.Warnings, warning)
	}

	s.metrics.RecordAnalysis(ctx, result.Rule.String(), decision.Outcome.String())
	s.logger.Info("Order analyzed",
		zap.Int64("order_id", order.ID),
		zap.String("rule", result.Rule.String()),
		zap.String("trust", result.Trust.String()),
		zap.Int64("customer_id", result.CustomerID()),
		zap.String("decision", decision.Outcome.String()))

	return analysis, nil
}

// shortfallLink builds the WhatsApp link for a partial decision. A missing
// or unparseable phone yields a warning instead of a link.
func (s *Service) shortfallLink(order *storefront.Order, decision reconciliation.Decision) (string, string) {
	if s.links == nil {
		return "", ""
	}
	if strings.TrimSpace(order.CustomerPhone) == "" {
		return "", "order has no phone number for a WhatsApp message"
	}
	link, err := s.links.ShortfallLink(order.CustomerPhone, order.CustomerName, order.Number, decision.Shortfall)
	if err != nil {
		s.logger.Debug("Cannot build WhatsApp link", zap.Int64("order_id", order.ID), zap.Error(err))
		return "", "phone number " + order.CustomerPhone + " is not valid for WhatsApp"
	}
	return link, ""
}

// LookupCustomer fetches a financing customer by ID. When orderID is given
// the credit policy is evaluated against that order's total.
func (s *Service) LookupCustomer(ctx context.Context, customerID int64, orderID *int64) (*CustomerLookup, error) {
	if customerID <= 0 {
		return nil, shared.ErrInvalidInput.WithMessage("Customer ID must be positive")
	}

	customer, err := s.lookupCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	lookup := &CustomerLookup{Customer: *ToCustomerView(customer)}
	if orderID == nil {
		return lookup, nil
	}

	order, err := s.getOrder(ctx, *orderID)
	if err != nil {
		return nil, err
	}
	summary := ToOrderSummary(order)
	decision := reconciliation.Decide(customer, order.Total)
	view := ToDecisionView(decision)
	lookup.Order = &summary
	lookup.Decision = &view
	if decision.Outcome == reconciliation.OutcomePartial {
		lookup.WhatsAppLink, _ = s.shortfallLink(order, decision)
	}
	return lookup, nil
}

// SearchCustomers runs a free-text or identification search on the
// financing backend. No results is an empty list, not an error.
func (s *Service) SearchCustomers(ctx context.Context, query string, byIdentification bool) ([]CustomerView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, shared.ErrInvalidInput.WithMessage("Search query is required")
	}

	start := time.Now()
	var (
		customers []financing.Customer
		err       error
	)
	if byIdentification {
		customers, err = s.customers.SearchByIdentification(ctx, query)
	} else {
		customers, err = s.customers.Search(ctx, query)
	}
	s.metrics.RecordUpstream(ctx, upstreamFinancing, "search_customers", time.Since(start))
	if err != nil && !errors.Is(err, financing.ErrCustomerNotFound) {
		return nil, translateError(err)
	}

	views := make([]CustomerView, 0, len(customers))
	for i := range customers {
		views = append(views, *ToCustomerView(&customers[i]))
	}
	return views, nil
}

// AuditTrail returns the audited actions on an order, newest first
func (s *Service) AuditTrail(ctx context.Context, orderID int64, limit int) ([]AuditEntryResponse, error) {
	if s.audit == nil {
		return []AuditEntryResponse{}, nil
	}
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	entries, err := s.audit.FindByOrder(ctx, orderID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]AuditEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, ToAuditEntryResponse(&entries[i]))
	}
	return out, nil
}

func followUpMessage(o *storefront.Order) string {
	name := strings.TrimSpace(o.CustomerName)
	if name == "" {
		name = "cliente"
	}
	return "Hola " + name + ", te escribimos por tu pedido #" + strconv.FormatInt(o.Number, 10) + "."
}

// ExportFollowUp writes the follow-up inbox as a spreadsheet and returns the
// number of rows written. Rows carry the WhatsApp link when the order has a
// phone; the financing backend is not consulted.
func (s *Service) ExportFollowUp(ctx context.Context, w io.Writer) (int, error) {
	orders, err := s.listInbox(ctx, OrderFilter{Inbox: InboxFollowUp, PerPage: maxPerPage})
	if err != nil {
		return 0, err
	}

	rows := make([]export.FollowUpRow, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		markers := make([]string, 0, 3)
		for _, m := range o.Markers() {
			markers = append(markers, m.String())
		}
		row := export.FollowUpRow{
			OrderID:        o.ID,
			OrderNumber:    o.Number,
			CreatedAt:      o.CreatedAt,
			CustomerName:   o.CustomerName,
			Identification: o.CustomerIdentification,
			Phone:          o.CustomerPhone,
			Total:          o.Total,
			Markers:        markers,
			OwnerNote:      storefront.StripMarkers(o.OwnerNote),
		}
		if s.links != nil && o.CustomerPhone != "" {
			if link, err := s.links.Link(o.CustomerPhone, followUpMessage(o)); err == nil {
				row.WhatsAppLink = link
			}
		}
		rows = append(rows, row)
	}

	if err := export.WriteFollowUp(w, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
