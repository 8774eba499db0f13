package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tg-broadcast/internal/crash"
	"tg-broadcast/internal/logger"
	"tg-broadcast/internal/models"
)

// TaskStore is the persistence the Scheduler needs
type TaskStore interface {
	Due(ctx context.Context, now time.Time) ([]models.ScheduledTask, error)
	Get(ctx context.Context, id string) (*models.ScheduledTask, error)
	MarkDone(ctx context.Context, id string) error
}

// Distributor fans a source message out to the configured destinations
type Distributor interface {
	Distribute(ctx context.Context, src models.SourceRef, pin bool) Report
}

// Notifier sends a plain text message
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type SchedulerOptions struct {
	Interval time.Duration
	Location *time.Location
	// Notifier and Notice are optional; when both are set the source chat is
	// told that its scheduled post went out.
	Notifier Notifier
	Notice   func(task models.ScheduledTask, delivered int) string
	Now      func() time.Time
}

// Scheduler periodically dispatches due tasks. Ticks never overlap, and a
// task is marked done only after its dispatch attempt ran to completion, so
// delivery is at-least-once across crashes.
type Scheduler struct {
	tasks      TaskStore
	dispatcher Distributor
	opts       SchedulerOptions

	tickMu  sync.Mutex
	initial sync.WaitGroup

	mu   sync.Mutex
	cron *cron.Cron
}

func NewScheduler(tasks TaskStore, dispatcher Distributor, opts SchedulerOptions) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{tasks: tasks, dispatcher: dispatcher, opts: opts}
}

// Start runs a tick immediately and then every interval until Stop. Ticks use
// a context detached from ctx's cancellation: shutdown takes effect between
// ticks, never inside one.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	tickCtx := context.WithoutCancel(ctx)
	cl := cronLogger{}
	c := cron.New(
		cron.WithLocation(s.opts.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id := c.Schedule(cron.Every(s.opts.Interval), cron.FuncJob(func() {
		if _, err := s.Tick(tickCtx); err != nil {
			logger.Warningf("Scheduler tick failed, retrying next interval: %v", err)
		}
	}))
	c.Start()
	s.cron = c

	logger.Infof("Scheduler started with interval %v (%s)", s.opts.Interval, s.opts.Location)

	// first pass right away instead of one interval after start
	job := c.Entry(id).WrappedJob
	s.initial.Add(1)
	crash.SafeGoroutine("scheduler-initial-tick", func() {
		defer s.initial.Done()
		job.Run()
	})
}

// Stop halts the ticker and waits for a running tick to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	// the initial tick runs outside cron's bookkeeping
	s.initial.Wait()
	logger.Infof("Scheduler stopped")
}

// Tick dispatches every due task once and returns how many were marked done.
// A failure on one task is logged and leaves it pending for the next tick.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	if !s.tickMu.TryLock() {
		logger.Warningf("Previous scheduler tick still running, skipping")
		return 0, nil
	}
	defer s.tickMu.Unlock()

	now := s.opts.Now().In(s.opts.Location)
	tasks, err := s.tasks.Due(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("load due tasks: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}
	logger.Infof("Scheduler found %d due tasks at %s", len(tasks), now.Format(time.DateTime))

	done := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		// another instance sharing the store may have taken it meanwhile
		current, err := s.tasks.Get(ctx, task.ID)
		if err != nil {
			logger.Errorf("Scheduled task %s left pending: %v", task.ID, err)
			continue
		}
		if current == nil || !current.IsDue(now) {
			continue
		}
		err = crash.Guard("scheduled-task-"+task.ID, func() error {
			return s.runTask(ctx, task)
		})
		if err != nil {
			logger.Errorf("Scheduled task %s left pending: %v", task.ID, err)
			continue
		}
		done++
	}
	return done, nil
}

func (s *Scheduler) runTask(ctx context.Context, task models.ScheduledTask) error {
	src := models.SourceRef{ChatID: task.SourceChatID, MessageID: task.SourceMessageID}

	report := s.dispatcher.Distribute(ctx, src, task.PinOnDelivery)
	if report.Interrupted {
		return fmt.Errorf("dispatch interrupted after %d deliveries", report.Delivered())
	}

	if err := s.tasks.MarkDone(ctx, task.ID); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	logger.Infof("Scheduled task %s done: delivered to %d destinations", task.ID, report.Delivered())

	if s.opts.Notifier != nil && s.opts.Notice != nil {
		if err := s.opts.Notifier.SendText(ctx, task.SourceChatID, s.opts.Notice(task, report.Delivered())); err != nil {
			logger.Warningf("Failed to notify chat %d about task %s: %v", task.SourceChatID, task.ID, err)
		}
	}
	return nil
}

// cronLogger adapts cron's logging to the process logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debugf("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
