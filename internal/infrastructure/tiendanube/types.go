package tiendanube

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cobranzas/backend/internal/domain/storefront"
)

// ---------------------------------------------------------------------------
// Order Types
// ---------------------------------------------------------------------------

// apiOrder is the subset of the platform's order resource the console reads
type apiOrder struct {
	ID                int64           `json:"id"`
	Number            int64           `json:"number"`
	Customer          apiCustomer     `json:"customer"`
	ContactEmail      string          `json:"contact_email"`
	ContactPhone      string          `json:"contact_phone"`
	ContactIdentifier string          `json:"contact_identification"`
	BillingPhone      string          `json:"billing_phone"`
	BillingAddress    json.RawMessage `json:"billing_address"`
	OwnerNote         *string         `json:"owner_note"`
	Total             flexString      `json:"total"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"payment_status"`
	ShippingStatus    string          `json:"shipping_status"`
	Gateway           string          `json:"gateway"`
	GatewayName       string          `json:"gateway_name"`
	PaymentDetails    struct {
		Method string `json:"method"`
	} `json:"payment_details"`
	Products  []apiOrderProduct `json:"products"`
	CreatedAt string            `json:"created_at"`
}

type apiCustomer struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Identification string `json:"identification"`
}

type apiOrderProduct struct {
	ProductID int64      `json:"product_id"`
	Name      string     `json:"name"`
	Quantity  flexString `json:"quantity"`
	Price     flexString `json:"price"`
}

// flexString accepts a JSON string, number or null
type flexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	*f = flexString(data)
	return nil
}

func (f flexString) decimal() decimal.Decimal {
	d, err := decimal.NewFromString(string(f))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (f flexString) int() int {
	return int(f.decimal().IntPart())
}

// toDomain converts the platform order to a storefront.Order
func (o *apiOrder) toDomain() storefront.Order {
	order := storefront.Order{
		ID:                     o.ID,
		Number:                 o.Number,
		CustomerName:           strings.TrimSpace(o.Customer.Name),
		CustomerIdentification: strings.TrimSpace(firstNonEmpty(o.Customer.Identification, o.ContactIdentifier)),
		CustomerEmail:          strings.TrimSpace(firstNonEmpty(o.Customer.Email, o.ContactEmail)),
		CustomerPhone:          strings.TrimSpace(firstNonEmpty(o.Customer.Phone, o.ContactPhone, o.billingPhone())),
		Total:                  o.Total.decimal(),
		Currency:               o.Currency,
		Status:                 storefront.OrderStatus(o.Status),
		PaymentStatus:          storefront.PaymentStatus(o.PaymentStatus),
		ShippingStatus:         o.ShippingStatus,
		PaymentMethod:          o.PaymentDetails.Method,
		Gateway:                firstNonEmpty(o.GatewayName, o.Gateway),
		CreatedAt:              parseTime(o.CreatedAt),
	}
	if o.Number == 0 {
		order.Number = o.ID
	}
	if o.OwnerNote != nil {
		order.OwnerNote = *o.OwnerNote
	}
	order.Products = make([]storefront.OrderProduct, 0, len(o.Products))
	for _, p := range o.Products {
		order.Products = append(order.Products, storefront.OrderProduct{
			ProductID: p.ProductID,
			Name:      p.Name,
			Quantity:  p.Quantity.int(),
			Price:     p.Price.decimal(),
		})
	}
	return order
}

// billingPhone reads the phone from billing_phone, or from billing_address when
// the platform sends it as an object.
func (o *apiOrder) billingPhone() string {
	if o.BillingPhone != "" {
		return o.BillingPhone
	}
	if len(o.BillingAddress) == 0 || o.BillingAddress[0] != '{' {
		return ""
	}
	var addr struct {
		Phone string `json:"phone"`
	}
	if err := json.Unmarshal(o.BillingAddress, &addr); err != nil {
		return ""
	}
	return addr.Phone
}

// ---------------------------------------------------------------------------
// Product Types
// ---------------------------------------------------------------------------

type apiProduct struct {
	ID           int64         `json:"id"`
	Name         localizedText `json:"name"`
	CanonicalURL string        `json:"canonical_url"`
	Variants     []struct {
		Price flexString `json:"price"`
	} `json:"variants"`
	Images []struct {
		Src string `json:"src"`
	} `json:"images"`
}

// localizedText is either a plain string or a {"es": "...", "pt": "..."} map
type localizedText string

// preferredLanguages is the lookup order for localized fields
var preferredLanguages = []string{"es", "pt", "en"}

// UnmarshalJSON implements json.Unmarshaler
func (l *localizedText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = localizedText(s)
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for _, lang := range preferredLanguages {
		if v := m[lang]; v != "" {
			*l = localizedText(v)
			return nil
		}
	}
	for _, v := range m {
		if v != "" {
			*l = localizedText(v)
			break
		}
	}
	return nil
}

func (p *apiProduct) toDomain() storefront.Product {
	product := storefront.Product{
		ID:    p.ID,
		Name:  strings.TrimSpace(string(p.Name)),
		URL:   p.CanonicalURL,
		Price: decimal.Zero,
	}
	if len(p.Variants) > 0 {
		product.Price = p.Variants[0].Price.decimal()
	}
	if len(p.Images) > 0 {
		product.ImageURL = p.Images[0].Src
	}
	return product
}

// ---------------------------------------------------------------------------
// Request Types
// ---------------------------------------------------------------------------

type updateOrderRequest struct {
	OwnerNote     *string `json:"owner_note,omitempty"`
	PaymentStatus *string `json:"payment_status,omitempty"`
}

func newUpdateOrderRequest(update storefront.OrderUpdate) updateOrderRequest {
	req := updateOrderRequest{OwnerNote: update.OwnerNote}
	if update.PaymentStatus != nil {
		status := update.PaymentStatus.String()
		req.PaymentStatus = &status
	}
	return req
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// timeLayouts are the timestamp formats the platform has been seen to emit
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
