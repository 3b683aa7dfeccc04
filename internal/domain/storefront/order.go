// Package storefront models the storefront's orders as the console sees
// them. Orders are read from the storefront and only ever mutated there.
package storefront

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle status of an order
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusClosed    OrderStatus = "closed"
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusAny is only meaningful as a list filter
	OrderStatusAny OrderStatus = "any"
)

// IsValid checks if the status is a known value
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusOpen, OrderStatusClosed, OrderStatusCancelled, OrderStatusAny:
		return true
	}
	return false
}

// PaymentStatus is the payment status of an order
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusAbandoned  PaymentStatus = "abandoned"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusVoided     PaymentStatus = "voided"
)

// String returns the string representation
func (s PaymentStatus) String() string {
	return string(s)
}

// OrderProduct is one line of an order
type OrderProduct struct {
	ProductID int64
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// Order is a storefront order relevant to the collections workflow
type Order struct {
	ID                     int64
	Number                 int64
	CustomerName           string
	CustomerIdentification string
	CustomerEmail          string
	CustomerPhone          string
	OwnerNote              string
	Total                  decimal.Decimal
	Currency               string
	Status                 OrderStatus
	PaymentStatus          PaymentStatus
	ShippingStatus         string
	PaymentMethod          string
	Gateway                string
	Products               []OrderProduct
	CreatedAt              time.Time
}

// ProductSummary lists the products as "name (qty)" joined by ", "
func (o *Order) ProductSummary() string {
	parts := make([]string, 0, len(o.Products))
	for _, p := range o.Products {
		parts = append(parts, fmt.Sprintf("%s (%d)", strings.TrimSpace(p.Name), p.Quantity))
	}
	return strings.Join(parts, ", ")
}

// IsManualPayment reports whether the buyer chose a payment method settled
// outside the storefront ("custom" or "a convenir"), which is the one the
// financing line is offered through.
func (o *Order) IsManualPayment() bool {
	method := strings.ToLower(o.PaymentMethod + " " + o.Gateway)
	return strings.Contains(method, "custom") || strings.Contains(method, "convenir")
}

// Markers returns the workflow markers present in the owner note
func (o *Order) Markers() []Marker {
	return Markers(o.OwnerNote)
}

// HasMarker reports whether the owner note carries m
func (o *Order) HasMarker(m Marker) bool {
	return HasMarker(o.OwnerNote, m)
}

// Product is a published catalog product, used for cross-sell suggestions
type Product struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	URL      string
	ImageURL string
}
