package reconciliation

import (
	"github.com/shopspring/decimal"

	"github.com/cobranzas/backend/internal/domain/financing"
)

// Outcome is the recommended action for an order
type Outcome string

const (
	OutcomeApprove   Outcome = "approve"
	OutcomeReject    Outcome = "reject"
	OutcomePartial   Outcome = "partial"
	OutcomeUnmatched Outcome = "unmatched"
)

// String returns the string representation
func (o Outcome) String() string {
	return string(o)
}

// Decision is the credit policy's verdict for an order total
type Decision struct {
	Outcome         Outcome
	Total           decimal.Decimal
	AvailableCredit decimal.Decimal
	// Shortfall is total minus available credit; zero unless Outcome is OutcomePartial
	Shortfall     decimal.Decimal
	OverdueMonths int
}

// Decide applies the credit policy. Overdue months always reject, a total
// within the available credit approves, anything else is a partial approval
// where the customer pays the shortfall up front.
func Decide(customer *financing.Customer, total decimal.Decimal) Decision {
	d := Decision{
		Outcome:   OutcomeUnmatched,
		Total:     total,
		Shortfall: decimal.Zero,
	}
	if customer == nil {
		return d
	}

	d.AvailableCredit = customer.AvailableCredit
	d.OverdueMonths = customer.OverdueMonths

	switch {
	case customer.IsDelinquent():
		d.Outcome = OutcomeReject
	case customer.Covers(total):
		d.Outcome = OutcomeApprove
	default:
		d.Outcome = OutcomePartial
		d.Shortfall = total.Sub(customer.AvailableCredit)
	}
	return d
}

// Reason is a short operator-facing explanation of the decision
func (d Decision) Reason() string {
	switch d.Outcome {
	case OutcomeReject:
		return "customer has overdue installments"
	case OutcomeApprove:
		return "available credit covers the order"
	case OutcomePartial:
		return "available credit covers part of the order; the customer must pay " + d.Shortfall.StringFixed(2)
	default:
		return "no financing customer matched"
	}
}
