package storefront

import (
	"context"
	"errors"
)

var (
	ErrOrderNotFound = errors.New("storefront: order not found")
	// ErrUnavailable covers transport failures, timeouts and 5xx answers
	ErrUnavailable = errors.New("storefront: platform unavailable")
	// ErrRequestRejected covers non-2xx answers other than 404, 422 and 5xx
	ErrRequestRejected = errors.New("storefront: request rejected")
	// ErrUpdateRejected is returned for HTTP 422 on an order update, typically
	// an impossible payment status transition
	ErrUpdateRejected = errors.New("storefront: order update rejected")
	ErrInvalidResponse = errors.New("storefront: invalid platform response")
)

// ListOptions filters an order listing
type ListOptions struct {
	Status  OrderStatus
	PerPage int
}

// OrderUpdate is a partial order update; nil fields are left untouched
type OrderUpdate struct {
	OwnerNote     *string
	PaymentStatus *PaymentStatus
}

// IsEmpty reports whether the update changes nothing
func (u OrderUpdate) IsEmpty() bool {
	return u.OwnerNote == nil && u.PaymentStatus == nil
}

// OrderGateway reads and mutates orders on the storefront
type OrderGateway interface {
	ListOrders(ctx context.Context, opts ListOptions) ([]Order, error)
	GetOrder(ctx context.Context, id int64) (*Order, error)
	UpdateOrder(ctx context.Context, id int64, update OrderUpdate) error
	CancelOrder(ctx context.Context, id int64, reason string) error
	ListProducts(ctx context.Context, limit int) ([]Product, error)
}
