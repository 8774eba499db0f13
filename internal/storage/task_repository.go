package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tg-broadcast/internal/models"
)

// TaskRepository handles database operations for ScheduledTask
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Add stores a pending task and returns its id
func (r *TaskRepository) Add(ctx context.Context, sourceChatID int64, sourceMessageID int, runAt time.Time, pinOnDelivery bool) (string, error) {
	task := &models.ScheduledTask{
		ID:              uuid.NewString(),
		SourceChatID:    sourceChatID,
		SourceMessageID: sourceMessageID,
		RunAt:           runAt.Unix(),
		PinOnDelivery:   pinOnDelivery,
		Status:          models.TaskPending,
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return "", wrapErr("add scheduled task", err)
	}
	return task.ID, nil
}

// Due returns pending tasks whose run time is not after now, oldest first
func (r *TaskRepository) Due(ctx context.Context, now time.Time) ([]models.ScheduledTask, error) {
	var tasks []models.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND run_at <= ?", models.TaskPending, now.Unix()).
		Order("run_at ASC").
		Order("created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, wrapErr("query due tasks", err)
	}
	return tasks, nil
}

// Pending returns every task not yet dispatched, soonest first
func (r *TaskRepository) Pending(ctx context.Context) ([]models.ScheduledTask, error) {
	var tasks []models.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ?", models.TaskPending).
		Order("run_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, wrapErr("query pending tasks", err)
	}
	return tasks, nil
}

// CountPending returns the number of tasks not yet dispatched
func (r *TaskRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ScheduledTask{}).
		Where("status = ?", models.TaskPending).
		Count(&n).Error
	return n, wrapErr("count pending tasks", err)
}

// Get returns a task by id, nil if it does not exist
func (r *TaskRepository) Get(ctx context.Context, id string) (*models.ScheduledTask, error) {
	var task models.ScheduledTask
	result := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&task)
	if result.Error != nil {
		return nil, wrapErr("get scheduled task", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &task, nil
}

// MarkDone moves a pending task to done. Done tasks are left untouched, so a
// repeated call is a no-op.
func (r *TaskRepository) MarkDone(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&models.ScheduledTask{}).
		Where("id = ? AND status = ?", id, models.TaskPending).
		Updates(map[string]interface{}{"status": models.TaskDone, "updated_at": time.Now()}).Error
	return wrapErr("mark task done", err)
}
