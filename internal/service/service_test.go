package service

import (
	"context"
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tg-broadcast/internal/config"
	"tg-broadcast/internal/logger"
	"tg-broadcast/internal/models"
	"tg-broadcast/internal/storage"
	"tg-broadcast/internal/transport"
)

const (
	chatA int64 = -1001
	chatB int64 = -1002
	chatC int64 = -1003

	adminChat int64 = 42
)

type call struct {
	Op        string
	ChatID    int64
	MessageID int
	Text      string
	Entities  []telego.MessageEntity
}

// fakeTransport hands out message ids per chat and fails chats listed in
// copyErrs, pinErrs, editErrs or deleteErrs.
type fakeTransport struct {
	mu         sync.Mutex
	calls      []call
	nextID     map[int64]int
	copyErrs   map[int64]error
	pinErrs    map[int64]error
	editErrs   map[int64]error
	deleteErrs map[int64]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		nextID:     map[int64]int{},
		copyErrs:   map[int64]error{},
		pinErrs:    map[int64]error{},
		editErrs:   map[int64]error{},
		deleteErrs: map[int64]error{},
	}
}

func (f *fakeTransport) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeTransport) Calls(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTransport) CopySend(_ context.Context, _ int64, _ int, toChatID int64) (int, error) {
	f.record(call{Op: "copy", ChatID: toChatID})
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.copyErrs[toChatID]; err != nil {
		return 0, err
	}
	f.nextID[toChatID]++
	return 500 + f.nextID[toChatID], nil
}

func (f *fakeTransport) Pin(_ context.Context, chatID int64, messageID int) error {
	f.record(call{Op: "pin", ChatID: chatID, MessageID: messageID})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pinErrs[chatID]
}

func (f *fakeTransport) EditText(_ context.Context, chatID int64, messageID int, text string, entities []telego.MessageEntity) error {
	f.record(call{Op: "edit_text", ChatID: chatID, MessageID: messageID, Text: text, Entities: entities})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editErrs[chatID]
}

func (f *fakeTransport) EditCaption(_ context.Context, chatID int64, messageID int, caption string, entities []telego.MessageEntity) error {
	f.record(call{Op: "edit_caption", ChatID: chatID, MessageID: messageID, Text: caption, Entities: entities})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editErrs[chatID]
}

func (f *fakeTransport) Delete(_ context.Context, chatID int64, messageID int) error {
	f.record(call{Op: "delete", ChatID: chatID, MessageID: messageID})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteErrs[chatID]
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string) error {
	f.record(call{Op: "send_text", ChatID: chatID, Text: text})
	return nil
}

func quietLogs(t *testing.T) {
	t.Helper()
	logger.Configure(io.Discard, logger.DEBUG, "", "", time.UTC)
	t.Cleanup(func() { logger.Configure(os.Stdout, logger.INFO, "", "", time.Local) })
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := storage.Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:", LogLevel: "SILENT"})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type env struct {
	db      *gorm.DB
	tr      *fakeTransport
	tracker *LinkTracker
	tasks   *storage.TaskRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	quietLogs(t)
	db := newTestDB(t)
	return &env{
		db:      db,
		tr:      newFakeTransport(),
		tracker: NewLinkTracker(storage.NewLinkRepository(db)),
		tasks:   storage.NewTaskRepository(db),
	}
}

func transient(chatID int64) error {
	return &transport.Error{Op: "copy message", ChatID: chatID, Kind: transport.ErrTransient, Err: errors.New("timeout")}
}

func unchanged(chatID int64) error {
	return &transport.Error{Op: "edit text", ChatID: chatID, Kind: transport.ErrUnchanged, Err: errors.New("message is not modified")}
}

func ptr(s string) *string { return &s }

func TestScheduler_TickDeliversAndPins(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := e.tasks.Add(ctx, adminChat, 10, now.Add(-time.Minute), true)
	require.NoError(t, err)

	d := NewDispatcher(e.tr, e.tracker, []int64{chatA, chatB}, 0)
	s := NewScheduler(e.tasks, d, SchedulerOptions{Now: func() time.Time { return now }})

	done, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	assert.Len(t, e.tr.Calls("copy"), 2)
	pins := e.tr.Calls("pin")
	require.Len(t, pins, 2)
	assert.Equal(t, call{Op: "pin", ChatID: chatA, MessageID: 501}, pins[0])
	assert.Equal(t, call{Op: "pin", ChatID: chatB, MessageID: 501}, pins[1])

	copies, err := e.tracker.LinksFor(ctx, models.SourceRef{ChatID: adminChat, MessageID: 10})
	require.NoError(t, err)
	assert.Equal(t, []models.Copy{{ChatID: chatA, MessageID: 501}, {ChatID: chatB, MessageID: 501}}, copies)

	task, err := e.tasks.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskDone, task.Status)

	// a done task is never dispatched again
	done, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, done)
	assert.Len(t, e.tr.Calls("copy"), 2)
}

func TestScheduler_TickSkipsFutureTasks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := e.tasks.Add(ctx, adminChat, 11, now.Add(time.Hour), false)
	require.NoError(t, err)

	s := NewScheduler(e.tasks, NewDispatcher(e.tr, e.tracker, []int64{chatA}, 0),
		SchedulerOptions{Now: func() time.Time { return now }})

	done, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, done)
	assert.Empty(t, e.tr.Calls(""))

	task, err := e.tasks.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, task.Status)
}

func TestDispatcher_IsolatesFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.tr.copyErrs[chatB] = transient(chatB)

	d := NewDispatcher(e.tr, e.tracker, []int64{chatA, chatB, chatC}, 0)
	src := models.SourceRef{ChatID: adminChat, MessageID: 20}
	report := d.Distribute(ctx, src, false)

	assert.False(t, report.Interrupted)
	assert.Equal(t, 2, report.Delivered())
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, map[error]int{transport.ErrTransient: 1}, report.FailuresByKind())
	require.Len(t, report.Results, 3)
	assert.True(t, report.Results[0].Delivered())
	assert.False(t, report.Results[1].Delivered())
	assert.True(t, report.Results[2].Delivered())
	assert.Empty(t, e.tr.Calls("pin"))

	copies, err := e.tracker.LinksFor(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, []models.Copy{{ChatID: chatA, MessageID: 501}, {ChatID: chatC, MessageID: 501}}, copies)
}

func TestDispatcher_PinFailureKeepsDelivery(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := models.SourceRef{ChatID: adminChat, MessageID: 22}
	e.tr.pinErrs[chatA] = &transport.Error{Op: "pin message", ChatID: chatA, Kind: transport.ErrPermanent, Err: errors.New("not enough rights")}
	e.tr.pinErrs[chatB] = transient(chatB)

	d := NewDispatcher(e.tr, e.tracker, []int64{chatA, chatB, chatC}, 0)
	report := d.Distribute(ctx, src, true)

	assert.Equal(t, 3, report.Delivered())
	assert.Zero(t, report.Failed())
	assert.Equal(t, 1, report.Pinned())
	assert.Equal(t, 2, report.PinFailures())
	assert.Len(t, e.tr.Calls("pin"), 3)

	copies, err := e.tracker.LinksFor(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, []models.Copy{
		{ChatID: chatA, MessageID: 501},
		{ChatID: chatB, MessageID: 501},
		{ChatID: chatC, MessageID: 501},
	}, copies)
}

func TestDispatcher_EmptyDestinations(t *testing.T) {
	e := newEnv(t)
	d := NewDispatcher(e.tr, e.tracker, nil, 0)

	report := d.Distribute(context.Background(), models.SourceRef{ChatID: adminChat, MessageID: 1}, true)
	assert.Zero(t, report.Delivered())
	assert.Empty(t, report.Results)
	assert.False(t, report.Interrupted)
	assert.Empty(t, e.tr.Calls(""))
}

func TestDispatcher_CancelledContextInterrupts(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(e.tr, e.tracker, []int64{chatA, chatB}, 0)
	report := d.Distribute(ctx, models.SourceRef{ChatID: adminChat, MessageID: 1}, false)

	assert.True(t, report.Interrupted)
	assert.Zero(t, report.Delivered())
	assert.Len(t, report.Results, 2)
	assert.Equal(t, map[error]int{transport.ErrTransient: 2}, report.FailuresByKind())
	assert.Empty(t, e.tr.Calls("copy"))
}

func TestDispatcher_DestinationsIsACopy(t *testing.T) {
	dst := []int64{chatA, chatB}
	d := NewDispatcher(newFakeTransport(), nil, dst, 0)
	dst[0] = 0
	got := d.Destinations()
	got[1] = 0
	assert.Equal(t, []int64{chatA, chatB}, d.Destinations())
}

type stubDistributor struct {
	report Report
	panics bool
	calls  []models.SourceRef
}

func (s *stubDistributor) Distribute(_ context.Context, src models.SourceRef, _ bool) Report {
	s.calls = append(s.calls, src)
	if s.panics && len(s.calls) == 1 {
		panic("dispatch exploded")
	}
	return s.report
}

func TestScheduler_InterruptedTaskStaysPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now()

	id, err := e.tasks.Add(ctx, adminChat, 30, now.Add(-time.Second), false)
	require.NoError(t, err)

	dist := &stubDistributor{report: Report{Interrupted: true}}
	s := NewScheduler(e.tasks, dist, SchedulerOptions{Now: func() time.Time { return now }})

	done, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, done)

	task, err := e.tasks.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, task.Status)
}

func TestScheduler_PanicIsolatedToTask(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now()

	first, err := e.tasks.Add(ctx, adminChat, 31, now.Add(-2*time.Minute), false)
	require.NoError(t, err)
	second, err := e.tasks.Add(ctx, adminChat, 32, now.Add(-time.Minute), false)
	require.NoError(t, err)

	dist := &stubDistributor{panics: true}
	s := NewScheduler(e.tasks, dist, SchedulerOptions{Now: func() time.Time { return now }})

	done, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Len(t, dist.calls, 2)

	task, err := e.tasks.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, task.Status)
	task, err = e.tasks.Get(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, models.TaskDone, task.Status)
}

func TestScheduler_ZeroDeliveriesStillDone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now()
	e.tr.copyErrs[chatA] = transient(chatA)

	id, err := e.tasks.Add(ctx, adminChat, 33, now.Add(-time.Second), false)
	require.NoError(t, err)

	s := NewScheduler(e.tasks, NewDispatcher(e.tr, e.tracker, []int64{chatA}, 0),
		SchedulerOptions{Now: func() time.Time { return now }})
	done, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	task, err := e.tasks.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskDone, task.Status)
}

type failingTasks struct{}

func (failingTasks) Due(context.Context, time.Time) ([]models.ScheduledTask, error) {
	return nil, storage.ErrStorage
}

func (failingTasks) Get(context.Context, string) (*models.ScheduledTask, error) { return nil, nil }

func (failingTasks) MarkDone(context.Context, string) error { return nil }

func TestScheduler_DueErrorSurfaces(t *testing.T) {
	quietLogs(t)
	dist := &stubDistributor{}
	s := NewScheduler(failingTasks{}, dist, SchedulerOptions{})

	_, err := s.Tick(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrStorage)
	assert.Empty(t, dist.calls)
}

func TestScheduler_NotifiesSourceChat(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now()

	_, err := e.tasks.Add(ctx, adminChat, 34, now.Add(-time.Second), false)
	require.NoError(t, err)

	s := NewScheduler(e.tasks, NewDispatcher(e.tr, e.tracker, []int64{chatA, chatB}, 0), SchedulerOptions{
		Now:      func() time.Time { return now },
		Notifier: e.tr,
		Notice: func(task models.ScheduledTask, delivered int) string {
			return "sent"
		},
	})
	_, err = s.Tick(ctx)
	require.NoError(t, err)

	sent := e.tr.Calls("send_text")
	require.Len(t, sent, 1)
	assert.Equal(t, adminChat, sent[0].ChatID)
	assert.Equal(t, "sent", sent[0].Text)
}

func TestScheduler_StartRunsInitialTick(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	id, err := e.tasks.Add(ctx, adminChat, 35, time.Now().Add(-time.Second), false)
	require.NoError(t, err)

	s := NewScheduler(e.tasks, NewDispatcher(e.tr, e.tracker, []int64{chatA}, 0),
		SchedulerOptions{Interval: time.Hour})
	s.Start(ctx)
	t.Cleanup(s.Stop)

	require.Eventually(t, func() bool {
		task, err := e.tasks.Get(ctx, id)
		return err == nil && task != nil && task.Status == models.TaskDone
	}, 5*time.Second, 20*time.Millisecond)
}

func TestScheduler_StopWaitsForInitialTick(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	id, err := e.tasks.Add(ctx, adminChat, 36, time.Now().Add(-time.Second), false)
	require.NoError(t, err)

	d := NewDispatcher(e.tr, e.tracker, []int64{chatA, chatB}, 20*time.Millisecond)
	s := NewScheduler(e.tasks, d, SchedulerOptions{Interval: time.Hour})
	s.Start(ctx)
	s.Stop()

	// nothing may touch the store or the transport once Stop returned
	task, err := e.tasks.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskDone, task.Status)
	calls := len(e.tr.Calls(""))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, e.tr.Calls(""), calls)
}

// staleTasks serves a Due snapshot taken before another instance finished
// the tasks
type staleTasks struct {
	*storage.TaskRepository
	snapshot []models.ScheduledTask
}

func (s staleTasks) Due(context.Context, time.Time) ([]models.ScheduledTask, error) {
	return s.snapshot, nil
}

func TestScheduler_SkipsTaskFinishedElsewhere(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now()

	id, err := e.tasks.Add(ctx, adminChat, 37, now.Add(-time.Second), false)
	require.NoError(t, err)
	snapshot, err := e.tasks.Due(ctx, now)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	require.NoError(t, e.tasks.MarkDone(ctx, id))

	dist := &stubDistributor{}
	s := NewScheduler(staleTasks{TaskRepository: e.tasks, snapshot: snapshot}, dist,
		SchedulerOptions{Now: func() time.Time { return now }})

	done, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, done)
	assert.Empty(t, dist.calls)
}

func TestPropagateEdit_UnchangedCountsAsSuccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := models.SourceRef{ChatID: adminChat, MessageID: 40}

	d := NewDispatcher(e.tr, e.tracker, []int64{chatA, chatB}, 0)
	require.Equal(t, 2, d.Distribute(ctx, src, false).Delivered())

	e.tr.editErrs[chatA] = unchanged(chatA)
	p := NewPropagator(e.tr, e.tracker)

	var logs bytes.Buffer
	logger.Configure(&logs, logger.DEBUG, "", "", time.UTC)

	n, err := p.PropagateEdit(ctx, src, Edit{Text: ptr("updated")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, logs.String(), "already up to date")
	assert.NotContains(t, logs.String(), "ERROR")

	edits := e.tr.Calls("edit_text")
	require.Len(t, edits, 2)
	assert.Equal(t, "updated", edits[1].Text)
	assert.Equal(t, 501, edits[1].MessageID)
}

func TestPropagateEdit_PassesEntitiesThrough(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := models.SourceRef{ChatID: adminChat, MessageID: 42}
	require.NoError(t, e.tracker.RecordLink(ctx, src, models.Copy{ChatID: chatA, MessageID: 7}))

	entities := []telego.MessageEntity{
		{Type: "bold", Offset: 0, Length: 3},
		{Type: "text_link", Offset: 4, Length: 4, URL: "https://example.org"},
	}
	p := NewPropagator(e.tr, e.tracker)

	n, err := p.PropagateEdit(ctx, src, Edit{Text: ptr("New link"), Entities: entities})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = p.PropagateEdit(ctx, src, Edit{Caption: ptr("New link"), Entities: entities})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	edits := e.tr.Calls("edit_text")
	require.Len(t, edits, 1)
	assert.Equal(t, entities, edits[0].Entities)
	captions := e.tr.Calls("edit_caption")
	require.Len(t, captions, 1)
	assert.Equal(t, entities, captions[0].Entities)
}

func TestPropagateEdit_SkipsFailedCopies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := models.SourceRef{ChatID: adminChat, MessageID: 41}

	require.NoError(t, e.tracker.RecordLink(ctx, src, models.Copy{ChatID: chatA, MessageID: 7}))
	require.NoError(t, e.tracker.RecordLink(ctx, src, models.Copy{ChatID: chatB, MessageID: 8}))
	e.tr.editErrs[chatA] = &transport.Error{Op: "edit caption", ChatID: chatA, Kind: transport.ErrNotFound, Err: errors.New("gone")}

	p := NewPropagator(e.tr, e.tracker)
	n, err := p.PropagateEdit(ctx, src, Edit{Caption: ptr("new caption")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, e.tr.Calls("edit_caption"), 2)
}

func TestPropagateEdit_NoLinksIsNoop(t *testing.T) {
	e := newEnv(t)
	p := NewPropagator(e.tr, e.tracker)

	n, err := p.PropagateEdit(context.Background(), models.SourceRef{ChatID: adminChat, MessageID: 99}, Edit{Text: ptr("x")})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, e.tr.Calls(""))
}

func TestPropagateDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := models.SourceRef{ChatID: adminChat, MessageID: 50}
	p := NewPropagator(e.tr, e.tracker)

	_, err := p.PropagateDelete(ctx, src)
	assert.ErrorIs(t, err, ErrNotDistributed)

	d := NewDispatcher(e.tr, e.tracker, []int64{chatA, chatB}, 0)
	require.Equal(t, 2, d.Distribute(ctx, src, false).Delivered())
	e.tr.deleteErrs[chatB] = transient(chatB)

	n, err := p.PropagateDelete(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, e.tr.Calls("delete"), 2)

	copies, err := e.tracker.LinksFor(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, copies)
}

func TestEditFromMessage(t *testing.T) {
	text := EditFromMessage(&telego.Message{Text: "hello"})
	require.NotNil(t, text.Text)
	assert.Equal(t, "hello", *text.Text)
	assert.Nil(t, text.Caption)

	photo := EditFromMessage(&telego.Message{Photo: []telego.PhotoSize{{FileID: "f"}}})
	require.NotNil(t, photo.Caption)
	assert.Empty(t, *photo.Caption)

	none := EditFromMessage(&telego.Message{})
	assert.Nil(t, none.Text)
	assert.Nil(t, none.Caption)
}

func TestAuditor_RecordAndExport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	loc := time.FixedZone("UTC+7", 7*3600)

	a := NewAuditor(storage.NewAuditRepository(e.db), loc)
	a.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	out, err := a.Export(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Empty", out)

	require.NoError(t, a.Record(ctx, models.Actor{ID: 1, Name: "alice", Role: models.RoleAdmin}, "scheduled post"))
	require.NoError(t, a.Record(ctx, models.Actor{ID: 2, Name: "bob", Role: models.RoleMod}, "deleted post"))

	out, err = a.Export(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t,
		"2025-01-02 10:04:05 | bob | [MOD] deleted post\n"+
			"2025-01-02 10:04:05 | alice | [ADMIN] scheduled post\n", out)

	out, err = a.Export(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02 10:04:05 | bob | [MOD] deleted post\n", out)
}
