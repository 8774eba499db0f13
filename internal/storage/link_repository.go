package storage

import (
	"context"

	"gorm.io/gorm"

	"tg-broadcast/internal/models"
)

// LinkRepository handles database operations for MessageLink
type LinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository creates a new LinkRepository
func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create appends a link, duplicates are allowed
func (r *LinkRepository) Create(ctx context.Context, link *models.MessageLink) error {
	return wrapErr("record message link", r.db.WithContext(ctx).Create(link).Error)
}

// FindBySource returns the links of a source message in insertion order
func (r *LinkRepository) FindBySource(ctx context.Context, src models.SourceRef) ([]models.MessageLink, error) {
	var links []models.MessageLink
	err := r.db.WithContext(ctx).
		Where("source_chat_id = ? AND source_message_id = ?", src.ChatID, src.MessageID).
		Order("id ASC").
		Find(&links).Error
	if err != nil {
		return nil, wrapErr("query message links", err)
	}
	return links, nil
}

// DeleteBySource removes every link of a source message in one statement
func (r *LinkRepository) DeleteBySource(ctx context.Context, src models.SourceRef) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("source_chat_id = ? AND source_message_id = ?", src.ChatID, src.MessageID).
			Delete(&models.MessageLink{})
		removed = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, wrapErr("delete message links", err)
	}
	return removed, nil
}
