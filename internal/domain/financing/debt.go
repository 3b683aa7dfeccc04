package financing

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// DefaultInstallments is the number of monthly installments a storefront purchase is split into
	DefaultInstallments = 3
	// MaxDescriptionLength is the longest description the backend accepts, in characters
	MaxDescriptionLength = 250
	descriptionEllipsis  = "..."
)

// InstallmentDebt is a charge against a customer's credit line, repaid in equal monthly installments
type InstallmentDebt struct {
	CustomerID   int64
	Description  string
	Total        decimal.Decimal
	Installments int
}

// NewInstallmentDebt builds the debt for a storefront order.
// The description is "Compra en TN #<number>: <products>" capped at MaxDescriptionLength.
func NewInstallmentDebt(customerID, orderNumber int64, productSummary string, total decimal.Decimal, installments int) (*InstallmentDebt, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer id must be positive", ErrInvalidDebt)
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: total must be positive", ErrInvalidDebt)
	}
	if installments <= 0 {
		installments = DefaultInstallments
	}

	description := fmt.Sprintf("Compra en TN #%d", orderNumber)
	if summary := strings.TrimSpace(productSummary); summary != "" {
		description += ": " + summary
	}

	return &InstallmentDebt{
		CustomerID:   customerID,
		Description:  TruncateDescription(description),
		Total:        total,
		Installments: installments,
	}, nil
}

// InstallmentAmount is the per-installment amount rounded to 2 decimals
func (d *InstallmentDebt) InstallmentAmount() decimal.Decimal {
	n := d.Installments
	if n <= 0 {
		n = DefaultInstallments
	}
	return d.Total.Div(decimal.NewFromInt(int64(n))).Round(2)
}

// TruncateDescription cuts s to MaxDescriptionLength characters, replacing the tail with "..."
func TruncateDescription(s string) string {
	if utf8.RuneCountInString(s) <= MaxDescriptionLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxDescriptionLength-len(descriptionEllipsis)]) + descriptionEllipsis
}
