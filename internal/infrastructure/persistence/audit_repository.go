package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/cobranzas/backend/internal/domain/audit"
	"github.com/cobranzas/backend/internal/infrastructure/persistence/models"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// GormAuditRepository implements audit.Repository using GORM
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Save appends an entry. Entries are never updated.
func (r *GormAuditRepository) Save(ctx context.Context, entry *audit.Entry) error {
	if entry == nil {
		return fmt.Errorf("audit: nil entry")
	}
	model := models.AuditEntryModelFromDomain(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("audit: save entry for order %d: %w", entry.OrderID, err)
	}
	return nil
}

// FindByOrder returns up to limit entries for orderID, newest first
func (r *GormAuditRepository) FindByOrder(ctx context.Context, orderID int64, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	var rows []models.AuditEntryModel
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("audit: find entries for order %d: %w", orderID, err)
	}

	entries := make([]audit.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *rows[i].ToDomain())
	}
	return entries, nil
}

var _ audit.Repository = (*GormAuditRepository)(nil)
