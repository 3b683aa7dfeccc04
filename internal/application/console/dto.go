package console

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cobranzas/backend/internal/domain/audit"
	"github.com/cobranzas/backend/internal/domain/financing"
	"github.com/cobranzas/backend/internal/domain/reconciliation"
	"github.com/cobranzas/backend/internal/domain/storefront"
)

// Inbox selects which queue of orders the operator works on
type Inbox string

const (
	// InboxNew holds open orders nobody has asked a difference for yet
	InboxNew Inbox = "new"
	// InboxFollowUp holds orders of any status waiting for the customer's difference
	InboxFollowUp Inbox = "follow_up"
)

// IsValid checks if the inbox is a known value
func (i Inbox) IsValid() bool {
	return i == InboxNew || i == InboxFollowUp
}

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// OrderFilter selects orders for the console listing
type OrderFilter struct {
	Inbox   Inbox                  `form:"inbox" binding:"omitempty,oneof=new follow_up"`
	Marker  string                 `form:"marker" binding:"omitempty,marker"`
	Status  storefront.OrderStatus `form:"status" binding:"omitempty,oneof=open closed cancelled any"`
	PerPage int                    `form:"per_page" binding:"omitempty,min=1,max=200"`
}

// OrderSummary is one row of the order listing
type OrderSummary struct {
	ID                     int64           `json:"id"`
	Number                 int64           `json:"number"`
	CustomerName           string          `json:"customer_name"`
	CustomerIdentification string          `json:"customer_identification"`
	CustomerEmail          string          `json:"customer_email,omitempty"`
	CustomerPhone          string          `json:"customer_phone,omitempty"`
	Total                  decimal.Decimal `json:"total"`
	Currency               string          `json:"currency,omitempty"`
	Status                 string          `json:"status"`
	PaymentStatus          string          `json:"payment_status"`
	PaymentMethod          string          `json:"payment_method,omitempty"`
	ManualPayment          bool            `json:"manual_payment"`
	OwnerNote              string          `json:"owner_note,omitempty"`
	Markers                []string        `json:"markers"`
	Products               string          `json:"products"`
	CreatedAt              time.Time       `json:"created_at"`
}

// ToOrderSummary converts a storefront order to its listing row
func ToOrderSummary(o *storefront.Order) OrderSummary {
	markers := make([]string, 0, 3)
	for _, m := range o.Markers() {
		markers = append(markers, m.String())
	}
	return OrderSummary{
		ID:                     o.ID,
		Number:                 o.Number,
		CustomerName:           o.CustomerName,
		CustomerIdentification: o.CustomerIdentification,
		CustomerEmail:          o.CustomerEmail,
		CustomerPhone:          o.CustomerPhone,
		Total:                  o.Total,
		Currency:               o.Currency,
		Status:                 string(o.Status),
		PaymentStatus:          o.PaymentStatus.String(),
		PaymentMethod:          o.PaymentMethod,
		ManualPayment:          o.IsManualPayment(),
		OwnerNote:              o.OwnerNote,
		Markers:                markers,
		Products:               o.ProductSummary(),
		CreatedAt:              o.CreatedAt,
	}
}

// CustomerView is a financing customer as shown to the operator
type CustomerView struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Identification     string          `json:"identification"`
	AvailableCredit    decimal.Decimal `json:"available_credit"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	OverdueMonths      int             `json:"overdue_months"`
}

// ToCustomerView converts a financing customer
func ToCustomerView(c *financing.Customer) *CustomerView {
	if c == nil {
		return nil
	}
	return &CustomerView{
		ID:                 c.ID,
		Name:               c.FullName(),
		Identification:     c.Identification,
		AvailableCredit:    c.AvailableCredit,
		OutstandingBalance: c.OutstandingBalance,
		OverdueMonths:      c.OverdueMonths,
	}
}

// MatchView explains how the customer was found
type MatchView struct {
	Rule        string                      `json:"rule"`
	Trust       string                      `json:"trust"`
	Provenance  string                      `json:"provenance"`
	Candidate   string                      `json:"candidate,omitempty"`
	Diagnostics []reconciliation.Diagnostic `json:"diagnostics"`
}

// DecisionView is the credit decision for an order total
type DecisionView struct {
	Outcome         string          `json:"outcome"`
	Reason          string          `json:"reason"`
	Total           decimal.Decimal `json:"total"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
	Shortfall       decimal.Decimal `json:"shortfall"`
	OverdueMonths   int             `json:"overdue_months"`
}

// ToDecisionView converts a decision
func ToDecisionView(d reconciliation.Decision) DecisionView {
	return DecisionView{
		Outcome:         d.Outcome.String(),
		Reason:          d.Reason(),
		Total:           d.Total,
		AvailableCredit: d.AvailableCredit,
		Shortfall:       d.Shortfall,
		OverdueMonths:   d.OverdueMonths,
	}
}

// Analysis is everything the operator needs to act on one order
type Analysis struct {
	Order    OrderSummary  `json:"order"`
	Customer *CustomerView `json:"customer,omitempty"`
	Match    MatchView     `json:"match"`
	Decision DecisionView  `json:"decision"`
	// FinancingUnavailable means the financing backend could not be consulted;
	// the decision is then unmatched and says nothing about the customer
	FinancingUnavailable bool   `json:"financing_unavailable"`
	AlreadyCharged       bool   `json:"already_charged"`
	WhatsAppLink         string `json:"whatsapp_link,omitempty"`
	// Warnings are shown to the operator but never block an action
	Warnings []string `json:"warnings,omitempty"`
}

// CustomerLookup is the result of a manual customer lookup
type CustomerLookup struct {
	Customer     CustomerView  `json:"customer"`
	Order        *OrderSummary `json:"order,omitempty"`
	Decision     *DecisionView `json:"decision,omitempty"`
	WhatsAppLink string        `json:"whatsapp_link,omitempty"`
}

// ChargeCommand charges an order to a customer's financing line
type ChargeCommand struct {
	OrderID    int64
	CustomerID int64
	// Amount defaults to the order total
	Amount   *decimal.Decimal
	Operator string
}

// DifferenceCommand asks the customer to pay the part the credit does not cover
type DifferenceCommand struct {
	OrderID    int64
	CustomerID int64
	Operator   string
}

// Cancellation reasons accepted by the storefront
const (
	CancelReasonCustomer  = "customer"
	CancelReasonInventory = "inventory"
	CancelReasonFraud     = "fraud"
	CancelReasonOther     = "other"
)

// RejectCommand rejects the financing request for an order
type RejectCommand struct {
	OrderID int64
	// CustomerID is optional; when set the customer's name is used in the email
	CustomerID *int64
	// Reason is shown to the customer and kept in the audit trail
	Reason string
	Cancel bool
	// CancelReason is sent to the storefront; defaults to "other"
	CancelReason string
	Notify       bool
	Operator     string
}

// TagCommand adds or removes a workflow marker
type TagCommand struct {
	OrderID  int64
	Marker   storefront.Marker
	Remove   bool
	Operator string
}

// ActionResult reports what an action did. Steps that failed after the
// irreversible part succeeded are reported as warnings, never rolled back.
type ActionResult struct {
	OrderID           int64            `json:"order_id"`
	OrderNumber       int64            `json:"order_number"`
	Action            string           `json:"action"`
	CustomerID        int64            `json:"customer_id,omitempty"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	Installments      int              `json:"installments,omitempty"`
	InstallmentAmount *decimal.Decimal `json:"installment_amount,omitempty"`
	OwnerNote         string           `json:"owner_note"`
	Markers           []string         `json:"markers"`
	EmailSent         bool             `json:"email_sent"`
	Cancelled         bool             `json:"cancelled,omitempty"`
	Changed           bool             `json:"changed"`
	WhatsAppLink      string           `json:"whatsapp_link,omitempty"`
	Warnings          []string         `json:"warnings,omitempty"`
}

func (r *ActionResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *ActionResult) setNote(note string) {
	r.OwnerNote = note
	r.Markers = make([]string, 0, 3)
	for _, m := range storefront.Markers(note) {
		r.Markers = append(r.Markers, m.String())
	}
}

// AuditEntryResponse is one audited action
type AuditEntryResponse struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     int64           `json:"order_id"`
	OrderNumber int64           `json:"order_number"`
	Action      string          `json:"action"`
	CustomerID  *int64          `json:"customer_id,omitempty"`
	Rule        string          `json:"rule,omitempty"`
	Trust       string          `json:"trust,omitempty"`
	Provenance  string          `json:"provenance,omitempty"`
	Outcome     string          `json:"outcome,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Operator    string          `json:"operator"`
	Detail      string          `json:"detail,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ToAuditEntryResponse converts an audit entry
func ToAuditEntryResponse(e *audit.Entry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:          e.ID,
		OrderID:     e.OrderID,
		OrderNumber: e.OrderNumber,
		Action:      string(e.Action),
		CustomerID:  e.CustomerID,
		Rule:        e.Rule,
		Trust:       e.Trust,
		Provenance:  e.Provenance,
		Outcome:     e.Outcome,
		Amount:      e.Amount,
		Operator:    e.Operator,
		Detail:      e.Detail,
		CreatedAt:   e.CreatedAt,
	}
}
