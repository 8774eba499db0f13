package service

import (
	"context"

	"tg-broadcast/internal/models"
)

// LinkStore is the persistence the LinkTracker needs
type LinkStore interface {
	Create(ctx context.Context, link *models.MessageLink) error
	FindBySource(ctx context.Context, src models.SourceRef) ([]models.MessageLink, error)
	DeleteBySource(ctx context.Context, src models.SourceRef) (int64, error)
}

// LinkTracker records which copies were created from which source message
type LinkTracker struct {
	store LinkStore
}

func NewLinkTracker(store LinkStore) *LinkTracker {
	return &LinkTracker{store: store}
}

// RecordLink appends one source -> copy association
func (t *LinkTracker) RecordLink(ctx context.Context, src models.SourceRef, c models.Copy) error {
	return t.store.Create(ctx, &models.MessageLink{
		SourceChatID:    src.ChatID,
		SourceMessageID: src.MessageID,
		TargetChatID:    c.ChatID,
		TargetMessageID: c.MessageID,
	})
}

// LinksFor returns the recorded copies of src. A source that was never
// distributed yields an empty slice, not an error.
func (t *LinkTracker) LinksFor(ctx context.Context, src models.SourceRef) ([]models.Copy, error) {
	links, err := t.store.FindBySource(ctx, src)
	if err != nil {
		return nil, err
	}
	copies := make([]models.Copy, 0, len(links))
	for _, l := range links {
		copies = append(copies, models.Copy{ChatID: l.TargetChatID, MessageID: l.TargetMessageID})
	}
	return copies, nil
}

// ClearLinks removes all links of src as one unit
func (t *LinkTracker) ClearLinks(ctx context.Context, src models.SourceRef) error {
	_, err := t.store.DeleteBySource(ctx, src)
	return err
}
