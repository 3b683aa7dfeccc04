// Package audit records what operators decided about each order.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Action is an operator action on an order
type Action string

const (
	ActionAnalyze           Action = "analyze"
	ActionCharge            Action = "charge"
	ActionRequestDifference Action = "request_difference"
	ActionReject            Action = "reject"
	ActionTag               Action = "tag"
)

// IsValid checks if the action is a known value
func (a Action) IsValid() bool {
	switch a {
	case ActionAnalyze, ActionCharge, ActionRequestDifference, ActionReject, ActionTag:
		return true
	}
	return false
}

// Entry is one audited action
type Entry struct {
	ID          uuid.UUID
	OrderID     int64
	OrderNumber int64
	Action      Action
	CustomerID  *int64
	Rule        string
	Trust       string
	Provenance  string
	Outcome     string
	Amount      decimal.Decimal
	Operator    string
	Detail      string
	CreatedAt   time.Time
}

// NewEntry creates an entry stamped with a new ID and the current time
func NewEntry(orderID, orderNumber int64, action Action, operator string) *Entry {
	return &Entry{
		ID:          uuid.New(),
		OrderID:     orderID,
		OrderNumber: orderNumber,
		Action:      action,
		Amount:      decimal.Zero,
		Operator:    operator,
		CreatedAt:   time.Now().UTC(),
	}
}

// WithCustomer sets the customer the action was taken against
func (e *Entry) WithCustomer(id int64) *Entry {
	if id > 0 {
		e.CustomerID = &id
	}
	return e
}

// Repository persists audit entries
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
	// FindByOrder returns the entries for an order, newest first
	FindByOrder(ctx context.Context, orderID int64, limit int) ([]Entry, error)
}
