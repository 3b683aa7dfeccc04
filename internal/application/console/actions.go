package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cobranzas/backend/internal/domain/audit"
	"github.com/cobranzas/backend/internal/domain/financing"
	"github.com/cobranzas/backend/internal/domain/reconciliation"
	"github.com/cobranzas/backend/internal/domain/shared"
	"github.com/cobranzas/backend/internal/domain/storefront"
	"github.com/cobranzas/backend/internal/infrastructure/notification"
	"github.com/cobranzas/backend/internal/infrastructure/telemetry"
)

// run wraps one action: span, per-order lock and the action metric.
func (s *Service) run(ctx context.Context, action audit.Action, orderID int64, operator string,
	fn func(ctx context.Context, span trace.Span) (*ActionResult, error),
) (*ActionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "console", string(action),
		telemetry.SpanAttrOrderID, orderID,
		telemetry.SpanAttrOperator, operator,
	)
	defer span.End()

	result, err := s.runLocked(ctx, orderID, span, fn)

	outcome := outcomeSuccess
	switch {
	case err != nil:
		outcome = outcomeFailed
		telemetry.RecordError(span, err)
	case len(result.Warnings) > 0:
		outcome = outcomePartial
	}
	s.metrics.RecordAction(ctx, string(action), outcome)
	return result, err
}

func (s *Service) runLocked(ctx context.Context, orderID int64, span trace.Span,
	fn func(ctx context.Context, span trace.Span) (*ActionResult, error),
) (*ActionResult, error) {
	release, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()
	return fn(ctx, span)
}

// Charge creates the installment debt for an order on the customer's
// financing line, then tags the order as approved, marks it paid and emails
// the customer. Once the debt exists every later failure is a warning: the
// debt is never undone and the order can never be charged twice.
func (s *Service) Charge(ctx context.Context, cmd ChargeCommand) (*ActionResult, error) {
	if cmd.OrderID <= 0 || cmd.CustomerID <= 0 {
		return nil, shared.ErrInvalidInput.WithMessage("Order ID and customer ID are required")
	}
	return s.run(ctx, audit.ActionCharge, cmd.OrderID, cmd.Operator, func(ctx context.Context, span trace.Span) (*ActionResult, error) {
		return s.charge(ctx, span, cmd)
	})
}

func (s *Service) charge(ctx context.Context, span trace.Span, cmd ChargeCommand) (*ActionResult, error) {
	order, err := s.getOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	charged, err := s.alreadyCharged(ctx, order)
	if err != nil {
		return nil, shared.ErrUpstreamUnavailable.WithMessage("Action guard is unavailable").WithCause(err)
	}
	if charged {
		return nil, shared.ErrAlreadyCharged
	}

	customer, err := s.lookupCustomer(ctx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}

	amount := order.Total
	if cmd.Amount != nil {
		if !cmd.Amount.IsPositive() || cmd.Amount.GreaterThan(order.Total) {
			return nil, shared.ErrInvalidInput.WithMessage(
				"Amount must be greater than zero and not exceed the order total " + order.Total.StringFixed(2))
		}
		amount = *cmd.Amount
	}

	decision := reconciliation.Decide(customer, amount)
	switch decision.Outcome {
	case reconciliation.OutcomeApprove:
	case reconciliation.OutcomeReject:
		return nil, shared.ErrInvalidState.WithMessage(
			fmt.Sprintf("Customer has %d overdue months and cannot be charged", decision.OverdueMonths))
	default:
		return nil, shared.ErrInsufficientCredit.WithMessage(
			"Available credit " + decision.AvailableCredit.StringFixed(2) + " does not cover " + amount.StringFixed(2))
	}

	debt, err := financing.NewInstallmentDebt(customer.ID, order.Number, order.ProductSummary(), amount, s.installments)
	if err != nil {
		return nil, translateError(err)
	}

	start := time.Now()
	err = s.ledger.CreateInstallmentDebt(ctx, debt)
	s.metrics.RecordUpstream(ctx, upstreamFinancing, "create_debt", time.Since(start))
	if err != nil {
		s.logger.Error("Failed to create installment debt",
			zap.Int64("order_id", order.ID),
			zap.Int64("customer_id", customer.ID),
			zap.Error(err))
		return nil, translateError(err)
	}

	installmentAmount := debt.InstallmentAmount()
	telemetry.AddEvent(span, "debt_created",
		telemetry.SpanAttrCustomerID, customer.ID,
		telemetry.SpanAttrAmount, amount.String(),
	)
	s.logger.Info("Installment debt created",
		zap.Int64("order_id", order.ID),
		zap.Int64("order_number", order.Number),
		zap.Int64("customer_id", customer.ID),
		zap.String("amount", amount.String()),
		zap.Int("installments", debt.Installments),
		zap.String("operator", cmd.Operator))

	result := &ActionResult{
		OrderID:           order.ID,
		OrderNumber:       order.Number,
		Action:            string(audit.ActionCharge),
		CustomerID:        customer.ID,
		Amount:            &amount,
		Installments:      debt.Installments,
		InstallmentAmount: &installmentAmount,
	}
	result.setNote(order.OwnerNote)

	if _, err := s.guard.MarkProcessed(ctx, orderKey(order.ID), s.idempotency.TTL); err != nil {
		s.logger.Error("Failed to mark order as charged", zap.Int64("order_id", order.ID), zap.Error(err))
		result.warn("order could not be marked as charged; do not charge it again")
	}

	s.markApproved(ctx, order, result)

	sent, warning := s.sendEmail(ctx, notification.KindApproval, order, &notification.EmailData{
		CustomerName:      customer.FullName(),
		OrderNumber:       order.Number,
		Total:             order.Total,
		CreditAmount:      amount,
		Installments:      debt.Installments,
		InstallmentAmount: installmentAmount,
		Recommendations:   s.recommendations(ctx),
	})
	result.EmailSent = sent
	if warning != "" {
		result.warn(warning)
	}

	entry := audit.NewEntry(order.ID, order.Number, audit.ActionCharge, cmd.Operator).WithCustomer(customer.ID)
	entry.Outcome = decision.Outcome.String()
	entry.Amount = amount
	entry.Detail = fmt.Sprintf("%d installments of %s", debt.Installments, installmentAmount.StringFixed(2))
	if warning := s.record(ctx, entry); warning != "" {
		result.warn(warning)
	}

	return result, nil
}

// markApproved tags the note as approved, clears the waiting markers and
// sets the payment status to paid. When the storefront refuses the status
// transition the note is sent alone so the approved marker survives.
func (s *Service) markApproved(ctx context.Context, order *storefront.Order, result *ActionResult) {
	note := storefront.RemoveMarker(order.OwnerNote, storefront.MarkerAwaitingDifference)
	note = storefront.RemoveMarker(note, storefront.MarkerPendingPayment)
	note = storefront.AddMarker(note, storefront.MarkerApproved)
	paid := storefront.PaymentStatusPaid

	err := s.updateOrder(ctx, order.ID, storefront.OrderUpdate{OwnerNote: &note, PaymentStatus: &paid})
	if err == nil {
		result.setNote(note)
		return
	}

	if !errors.Is(err, storefront.ErrUpdateRejected) {
		s.logger.Warn("Failed to update charged order", zap.Int64("order_id", order.ID), zap.Error(err))
		result.warn("order note and payment status could not be updated on the storefront")
		return
	}

	s.logger.Warn("Payment status rejected, retrying with note only",
		zap.Int64("order_id", order.ID),
		zap.String("payment_status", order.PaymentStatus.String()),
		zap.Error(err))
	if err := s.updateOrder(ctx, order.ID, storefront.OrderUpdate{OwnerNote: &note}); err != nil {
		s.logger.Warn("Failed to update order note", zap.Int64("order_id", order.ID), zap.Error(err))
		result.warn("order note and payment status could not be updated on the storefront")
		return
	}
	result.setNote(note)
	result.warn("storefront refused to mark the order as paid; set the payment status by hand")
}

// RequestDifference asks the customer to pay the part of the order their
// credit does not cover. The order is tagged as waiting, the customer gets
// the partial approval email and the operator a WhatsApp link.
func (s *Service) RequestDifference(ctx context.Context, cmd DifferenceCommand) (*ActionResult, error) {
	if cmd.OrderID <= 0 || cmd.CustomerID <= 0 {
		return nil, shared.ErrInvalidInput.WithMessage("Order ID and customer ID are required")
	}
	return s.run(ctx, audit.ActionRequestDifference, cmd.OrderID, cmd.Operator, func(ctx context.Context, _ trace.Span) (*ActionResult, error) {
		return s.requestDifference(ctx, cmd)
	})
}

func (s *Service) requestDifference(ctx context.Context, cmd DifferenceCommand) (*ActionResult, error) {
	order, err := s.getOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	charged, err := s.alreadyCharged(ctx, order)
	if err != nil {
		return nil, shared.ErrUpstreamUnavailable.WithMessage("Action guard is unavailable").WithCause(err)
	}
	if charged {
		return nil, shared.ErrAlreadyCharged
	}

	customer, err := s.lookupCustomer(ctx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}

	decision := reconciliation.Decide(customer, order.Total)
	if decision.Outcome != reconciliation.OutcomePartial {
		return nil, shared.ErrInvalidState.WithMessage(
			"A difference can only be requested when the credit covers part of the order (decision: " +
				decision.Outcome.String() + ")")
	}

	note := storefront.AddMarker(order.OwnerNote, storefront.MarkerAwaitingDifference)
	result := &ActionResult{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Action:      string(audit.ActionRequestDifference),
		CustomerID:  customer.ID,
		Amount:      &decision.Shortfall,
		Changed:     note != order.OwnerNote,
	}
	if result.Changed {
		if err := s.updateOrder(ctx, order.ID, storefront.OrderUpdate{OwnerNote: &note}); err != nil {
			return nil, translateError(err)
		}
	}
	result.setNote(note)

	sent, warning := s.sendEmail(ctx, notification.KindPartialApproval, order, &notification.EmailData{
		CustomerName: customer.FullName(),
		OrderNumber:  order.Number,
		Total:        order.Total,
		CreditAmount: decision.AvailableCredit,
		Shortfall:    decision.Shortfall,
	})
	result.EmailSent = sent
	if warning != "" {
		result.warn(warning)
	}

	link, warning := s.shortfallLink(order, decision)
	result.WhatsAppLink = link
	if warning != "" {
		result.warn(warning)
	}

	entry := audit.NewEntry(order.ID, order.Number, audit.ActionRequestDifference, cmd.Operator).WithCustomer(customer.ID)
	entry.Outcome = decision.Outcome.String()
	entry.Amount = decision.Shortfall
	entry.Detail = "credit " + decision.AvailableCredit.StringFixed(2) + " of " + order.Total.StringFixed(2)
	if warning := s.record(ctx, entry); warning != "" {
		result.warn(warning)
	}

	s.logger.Info("Difference requested",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", customer.ID),
		zap.String("shortfall", decision.Shortfall.String()))
	return result, nil
}

// Reject turns down the financing request. The order is cancelled on the
// storefront when asked, and the customer is emailed when asked. A failed
// cancellation fails the action; a failed email only fails it when there
// was nothing else to do.
func (s *Service) Reject(ctx context.Context, cmd RejectCommand) (*ActionResult, error) {
	if cmd.OrderID <= 0 {
		return nil, shared.ErrInvalidInput.WithMessage("Order ID is required")
	}
	cancelReason := cmd.CancelReason
	if cancelReason == "" {
		cancelReason = CancelReasonOther
	}
	switch cancelReason {
	case CancelReasonCustomer, CancelReasonInventory, CancelReasonFraud, CancelReasonOther:
	default:
		return nil, shared.ErrInvalidInput.WithMessage("Unknown cancel reason: " + cancelReason)
	}
	cmd.CancelReason = cancelReason

	return s.run(ctx, audit.ActionReject, cmd.OrderID, cmd.Operator, func(ctx context.Context, _ trace.Span) (*ActionResult, error) {
		return s.reject(ctx, cmd)
	})
}

func (s *Service) reject(ctx context.Context, cmd RejectCommand) (*ActionResult, error) {
	order, err := s.getOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	charged, err := s.alreadyCharged(ctx, order)
	if err != nil {
		return nil, shared.ErrUpstreamUnavailable.WithMessage("Action guard is unavailable").WithCause(err)
	}
	if charged {
		return nil, shared.ErrAlreadyCharged.WithMessage("Order was already charged and cannot be rejected")
	}

	customerName := order.CustomerName
	var customerID int64
	if cmd.CustomerID != nil {
		customer, err := s.lookupCustomer(ctx, *cmd.CustomerID)
		if err != nil {
			return nil, err
		}
		customerName = customer.FullName()
		customerID = customer.ID
	}

	result := &ActionResult{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Action:      string(audit.ActionReject),
		CustomerID:  customerID,
	}
	result.setNote(order.OwnerNote)

	if cmd.Cancel {
		start := time.Now()
		err := s.orders.CancelOrder(ctx, order.ID, cmd.CancelReason)
		s.metrics.RecordUpstream(ctx, upstreamStorefront, "cancel_order", time.Since(start))
		if err != nil {
			return nil, translateError(err)
		}
		result.Cancelled = true
		result.Changed = true
	}

	if cmd.Notify {
		sent, warning := s.sendEmail(ctx, notification.KindRejection, order, &notification.EmailData{
			CustomerName: customerName,
			OrderNumber:  order.Number,
			Total:        order.Total,
			Reason:       strings.TrimSpace(cmd.Reason),
		})
		if !sent && !cmd.Cancel {
			return nil, shared.ErrUpstreamUnavailable.WithMessage("Rejection email could not be sent: " + warning)
		}
		result.EmailSent = sent
		if warning != "" {
			result.warn(warning)
		}
	}

	entry := audit.NewEntry(order.ID, order.Number, audit.ActionReject, cmd.Operator).WithCustomer(customerID)
	entry.Outcome = string(reconciliation.OutcomeReject)
	entry.Amount = order.Total
	entry.Detail = rejectDetail(cmd)
	if warning := s.record(ctx, entry); warning != "" {
		result.warn(warning)
	}

	s.logger.Info("Order rejected",
		zap.Int64("order_id", order.ID),
		zap.Bool("cancelled", result.Cancelled),
		zap.Bool("email_sent", result.EmailSent))
	return result, nil
}

func rejectDetail(cmd RejectCommand) string {
	parts := make([]string, 0, 3)
	if r := strings.TrimSpace(cmd.Reason); r != "" {
		parts = append(parts, r)
	}
	if cmd.Cancel {
		parts = append(parts, "cancelled ("+cmd.CancelReason+")")
	}
	if cmd.Notify {
		parts = append(parts, "customer notified")
	}
	return strings.Join(parts, "; ")
}

// TagOrder adds or removes a workflow marker. Adding a marker the note
// already carries, or removing one it lacks, changes nothing on the storefront.
func (s *Service) TagOrder(ctx context.Context, cmd TagCommand) (*ActionResult, error) {
	if cmd.OrderID <= 0 {
		return nil, shared.ErrInvalidInput.WithMessage("Order ID is required")
	}
	if !cmd.Marker.IsValid() {
		return nil, shared.ErrInvalidInput.WithMessage("Unknown marker: " + cmd.Marker.String())
	}
	return s.run(ctx, audit.ActionTag, cmd.OrderID, cmd.Operator, func(ctx context.Context, _ trace.Span) (*ActionResult, error) {
		return s.tag(ctx, cmd)
	})
}

func (s *Service) tag(ctx context.Context, cmd TagCommand) (*ActionResult, error) {
	order, err := s.getOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	note := storefront.AddMarker(order.OwnerNote, cmd.Marker)
	verb := "added"
	if cmd.Remove {
		note = storefront.RemoveMarker(order.OwnerNote, cmd.Marker)
		verb = "removed"
	}

	result := &ActionResult{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Action:      string(audit.ActionTag),
		Changed:     note != order.OwnerNote,
	}
	if !result.Changed {
		result.setNote(order.OwnerNote)
		return result, nil
	}

	if err := s.updateOrder(ctx, order.ID, storefront.OrderUpdate{OwnerNote: &note}); err != nil {
		return nil, translateError(err)
	}
	result.setNote(note)

	entry := audit.NewEntry(order.ID, order.Number, audit.ActionTag, cmd.Operator)
	entry.Detail = verb + " " + cmd.Marker.String()
	if warning := s.record(ctx, entry); warning != "" {
		result.warn(warning)
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Email
// ---------------------------------------------------------------------------

// sendEmail reports whether the email went out, or why it did not
func (s *Service) sendEmail(ctx context.Context, kind notification.Kind, order *storefront.Order, data *notification.EmailData) (bool, string) {
	if s.notifier == nil {
		return false, "email notifications are not configured"
	}
	to := strings.TrimSpace(order.CustomerEmail)
	if to == "" {
		return false, "order has no customer email"
	}
	if err := s.notifier.Notify(ctx, kind, to, data); err != nil {
		s.logger.Warn("Failed to send email",
			zap.Int64("order_id", order.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return false, "email to " + to + " could not be sent"
	}
	return true, ""
}

// recommendations lists a few published products for the approval email.
// Failures only cost the cross-sell block.
func (s *Service) recommendations(ctx context.Context) []storefront.Product {
	products, err := s.orders.ListProducts(ctx, recommendationLimit)
	if err != nil {
		s.logger.Debug("Cannot list products for recommendations", zap.Error(err))
		return nil
	}
	return products
}
