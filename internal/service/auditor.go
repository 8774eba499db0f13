package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tg-broadcast/internal/logger"
	"tg-broadcast/internal/models"
)

const auditTimeLayout = "2006-01-02 15:04:05"

// AuditStore is the persistence the Auditor needs
type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	Recent(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// Auditor keeps the trail of privileged actions
type Auditor struct {
	store AuditStore
	loc   *time.Location
	now   func() time.Time
}

func NewAuditor(store AuditStore, loc *time.Location) *Auditor {
	if loc == nil {
		loc = time.UTC
	}
	return &Auditor{store: store, loc: loc, now: time.Now}
}

// Record logs and persists action on behalf of actor
func (a *Auditor) Record(ctx context.Context, actor models.Actor, action string) error {
	text := fmt.Sprintf("[%s] %s", actor.Role, action)
	logger.Infof("Audit: %s (%d) %s", actor.Name, actor.ID, text)

	err := a.store.Append(ctx, &models.AuditLog{
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    text,
		Timestamp: a.now().In(a.loc).Format(auditTimeLayout),
	})
	if err != nil {
		logger.Errorf("Failed to store audit entry: %v", err)
	}
	return err
}

// Export renders the latest limit entries as "timestamp | name | action"
// lines, newest first. An empty trail renders as "Empty".
func (a *Auditor) Export(ctx context.Context, limit int) (string, error) {
	entries, err := a.store.Recent(ctx, limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "Empty", nil
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s | %s | %s\n", e.Timestamp, e.ActorName, e.Action)
	}
	return sb.String(), nil
}
