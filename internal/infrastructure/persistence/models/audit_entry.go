package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cobranzas/backend/internal/domain/audit"
)

// AuditEntryModel is the persistence model for audit.Entry.
// Rows are append-only.
type AuditEntryModel struct {
	ID          uuid.UUID       `gorm:"type:varchar(36);primaryKey"`
	OrderID     int64           `gorm:"not null;index:idx_audit_entries_order_created,priority:1"`
	OrderNumber int64           `gorm:"not null"`
	Action      audit.Action    `gorm:"type:varchar(32);not null"`
	CustomerID  *int64          `gorm:"index"`
	Rule        string          `gorm:"type:varchar(32)"`
	Trust       string          `gorm:"type:varchar(16)"`
	Provenance  string          `gorm:"type:varchar(255)"`
	Outcome     string          `gorm:"type:varchar(32)"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Operator    string          `gorm:"type:varchar(100);not null"`
	Detail      string          `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"not null;index:idx_audit_entries_order_created,priority:2"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

// ToDomain converts the persistence model to a domain entry
func (m *AuditEntryModel) ToDomain() *audit.Entry {
	return &audit.Entry{
		ID:          m.ID,
		OrderID:     m.OrderID,
		OrderNumber: m.OrderNumber,
		Action:      m.Action,
		CustomerID:  m.CustomerID,
		Rule:        m.Rule,
		Trust:       m.Trust,
		Provenance:  m.Provenance,
		Outcome:     m.Outcome,
		Amount:      m.Amount,
		Operator:    m.Operator,
		Detail:      m.Detail,
		CreatedAt:   m.CreatedAt,
	}
}

// AuditEntryModelFromDomain creates a persistence model from a domain entry
func AuditEntryModelFromDomain(e *audit.Entry) *AuditEntryModel {
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &AuditEntryModel{
		ID:          id,
		OrderID:     e.OrderID,
		OrderNumber: e.OrderNumber,
		Action:      e.Action,
		CustomerID:  e.CustomerID,
		Rule:        e.Rule,
		Trust:       e.Trust,
		Provenance:  e.Provenance,
		Outcome:     e.Outcome,
		Amount:      e.Amount,
		Operator:    e.Operator,
		Detail:      e.Detail,
		CreatedAt:   createdAt,
	}
}
