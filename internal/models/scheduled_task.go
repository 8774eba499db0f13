package models

import "time"

// TaskStatus is the lifecycle state of a ScheduledTask. A task only moves
// from pending to done.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
)

// ScheduledTask is a deferred distribution of one source message. Rows are
// never deleted and stay as history once done.
type ScheduledTask struct {
	ID              string     `gorm:"primaryKey;size:36"`
	SourceChatID    int64      `gorm:"not null"`
	SourceMessageID int        `gorm:"not null"`
	RunAt           int64      `gorm:"not null;index:idx_scheduled_due,priority:2"` // unix seconds
	PinOnDelivery   bool       `gorm:"not null;default:false"`
	Status          TaskStatus `gorm:"size:16;not null;default:pending;index:idx_scheduled_due,priority:1"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ScheduledTask) TableName() string { return "scheduled_tasks" }

// RunTime returns RunAt as a time in the given zone.
func (t *ScheduledTask) RunTime(loc *time.Location) time.Time {
	return time.Unix(t.RunAt, 0).In(loc)
}

// IsDue reports whether the task is eligible for dispatch at now.
func (t *ScheduledTask) IsDue(now time.Time) bool {
	return t.Status == TaskPending && t.RunAt <= now.Unix()
}
