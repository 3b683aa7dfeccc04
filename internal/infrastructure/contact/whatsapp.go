// Package contact builds click-to-chat links for reaching customers.
package contact

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"

	"github.com/cobranzas/backend/internal/infrastructure/notification"
)

const (
	// DefaultRegion is used for numbers written without a country code
	DefaultRegion = "AR"
	whatsAppBase  = "https://wa.me/"
)

var (
	ErrMissingPhone = errors.New("contact: phone number is empty")
	ErrInvalidPhone = errors.New("contact: phone number is not valid")
)

// LinkBuilder creates WhatsApp links
type LinkBuilder struct {
	region string
}

// NewLinkBuilder creates a builder that parses local numbers in region
func NewLinkBuilder(region string) *LinkBuilder {
	if region == "" {
		region = DefaultRegion
	}
	return &LinkBuilder{region: strings.ToUpper(region)}
}

// NormalizePhone returns the number in E.164 without the leading "+"
func (b *LinkBuilder) NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrMissingPhone
	}
	num, err := libphonenumber.Parse(phone, b.region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return strings.TrimPrefix(libphonenumber.Format(num, libphonenumber.E164), "+"), nil
}

// Link returns https://wa.me/<number>?text=<message>
func (b *LinkBuilder) Link(phone, text string) (string, error) {
	number, err := b.NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	link := whatsAppBase + number
	if text != "" {
		link += "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	}
	return link, nil
}

// ShortfallLink returns a link whose message asks the customer for the missing amount
func (b *LinkBuilder) ShortfallLink(phone, customerName string, orderNumber int64, shortfall decimal.Decimal) (string, error) {
	return b.Link(phone, ShortfallMessage(customerName, orderNumber, shortfall))
}

// ShortfallMessage is the chat message for a partial approval
func ShortfallMessage(customerName string, orderNumber int64, shortfall decimal.Decimal) string {
	return fmt.Sprintf("Hola %s, falta abonar %s para tu pedido #%d.",
		strings.TrimSpace(customerName), notification.FormatMoney(shortfall), orderNumber)
}
