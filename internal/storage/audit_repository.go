package storage

import (
	"context"

	"gorm.io/gorm"

	"tg-broadcast/internal/models"
)

// AuditRepository handles database operations for AuditLog
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts an entry, entries are never updated afterwards
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	return wrapErr("append audit log", r.db.WithContext(ctx).Create(entry).Error)
}

// Recent returns up to limit entries, newest first
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, wrapErr("query audit logs", err)
	}
	return entries, nil
}
