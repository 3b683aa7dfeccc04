// Package financing models the financing backend's view of a customer: the
// credit line that pays for pay-later storefront orders and the installment
// debts charged against it.
package financing

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Customer is a customer record held by the financing backend.
// Numeric fields are always populated; the adapter parses absent or
// malformed values as zero.
type Customer struct {
	ID                 int64
	FirstName          string
	LastName           string
	Identification     string
	AvailableCredit    decimal.Decimal
	OutstandingBalance decimal.Decimal
	OverdueMonths      int
}

// FullName returns first and last name joined by a single space
func (c *Customer) FullName() string {
	return strings.TrimSpace(strings.Join(strings.Fields(c.FirstName+" "+c.LastName), " "))
}

// IdentificationDigits returns the digits of the customer's identification
func (c *Customer) IdentificationDigits() string {
	return DigitsOnly(c.Identification)
}

// IsDelinquent reports whether the customer has any overdue months
func (c *Customer) IsDelinquent() bool {
	return c.OverdueMonths > 0
}

// Covers reports whether the available credit covers amount
func (c *Customer) Covers(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(c.AvailableCredit)
}

// DigitsOnly strips every non-digit character from s.
// DigitsOnly(DigitsOnly(s)) == DigitsOnly(s).
func DigitsOnly(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 128 && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
