package service

import (
	"context"
	"errors"

	"github.com/mymmrac/telego"

	"tg-broadcast/internal/logger"
	"tg-broadcast/internal/models"
	"tg-broadcast/internal/transport"
)

// ErrNotDistributed is returned when a source message has no recorded copies
var ErrNotDistributed = errors.New("message was not distributed")

// Edit is the new content of an edited source message. Text wins over
// Caption when both are set; Entities are carried over verbatim.
type Edit struct {
	Text     *string
	Caption  *string
	Entities []telego.MessageEntity
}

// EditFromMessage extracts the editable content of a message. Media messages
// always yield a caption edit, even when the caption was cleared.
func EditFromMessage(m *telego.Message) Edit {
	switch {
	case m.Text != "":
		text := m.Text
		return Edit{Text: &text, Entities: m.Entities}
	case m.Caption != "" || hasMedia(m):
		caption := m.Caption
		return Edit{Caption: &caption, Entities: m.CaptionEntities}
	default:
		return Edit{}
	}
}

func hasMedia(m *telego.Message) bool {
	return len(m.Photo) > 0 || m.Video != nil || m.Animation != nil ||
		m.Document != nil || m.Audio != nil || m.Voice != nil
}

// Propagator re-applies edits and deletions of a source message to every
// delivered copy
type Propagator struct {
	transport transport.Transport
	tracker   *LinkTracker
}

func NewPropagator(tr transport.Transport, tracker *LinkTracker) *Propagator {
	return &Propagator{transport: tr, tracker: tracker}
}

// PropagateEdit applies edit to each copy of src and returns how many copies
// are up to date. A copy reporting "not modified" counts as updated. Other
// failures are logged and skipped.
func (p *Propagator) PropagateEdit(ctx context.Context, src models.SourceRef, edit Edit) (int, error) {
	copies, err := p.tracker.LinksFor(ctx, src)
	if err != nil {
		return 0, err
	}
	if len(copies) == 0 || (edit.Text == nil && edit.Caption == nil) {
		return 0, nil
	}

	logger.Infof("Propagating edit of %d/%d to %d copies", src.ChatID, src.MessageID, len(copies))

	updated := 0
	for _, c := range copies {
		var err error
		if edit.Text != nil {
			err = p.transport.EditText(ctx, c.ChatID, c.MessageID, *edit.Text, edit.Entities)
		} else {
			err = p.transport.EditCaption(ctx, c.ChatID, c.MessageID, *edit.Caption, edit.Entities)
		}

		switch {
		case err == nil:
			updated++
		case transport.IsUnchanged(err):
			logger.Debugf("Copy %d in %d already up to date", c.MessageID, c.ChatID)
			updated++
		default:
			logger.Errorf("Failed to edit copy %d in %d: %v", c.MessageID, c.ChatID, err)
		}
	}
	return updated, nil
}

// PropagateDelete deletes every copy of src and then forgets its links. It
// returns how many copies were deleted, or ErrNotDistributed.
func (p *Propagator) PropagateDelete(ctx context.Context, src models.SourceRef) (int, error) {
	copies, err := p.tracker.LinksFor(ctx, src)
	if err != nil {
		return 0, err
	}
	if len(copies) == 0 {
		return 0, ErrNotDistributed
	}

	deleted := 0
	for _, c := range copies {
		if err := p.transport.Delete(ctx, c.ChatID, c.MessageID); err != nil {
			logger.Warningf("Failed to delete copy %d in %d: %v", c.MessageID, c.ChatID, err)
			continue
		}
		deleted++
	}

	if err := p.tracker.ClearLinks(ctx, src); err != nil {
		return deleted, err
	}
	logger.Infof("Deleted %d of %d copies of %d/%d", deleted, len(copies), src.ChatID, src.MessageID)
	return deleted, nil
}
