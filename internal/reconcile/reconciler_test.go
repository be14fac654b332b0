package reconcile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	calendar "github.com/vibeos/vibecore/internal/calendar/infrastructure/persistence"
	"github.com/vibeos/vibecore/internal/planning/domain"
	"github.com/vibeos/vibecore/internal/planning/infrastructure/persistence"
	"github.com/vibeos/vibecore/internal/shared/infrastructure/database"
	_ "github.com/vibeos/vibecore/internal/shared/infrastructure/database/sqlite"
	"github.com/vibeos/vibecore/internal/timeutil"
	"github.com/vibeos/vibecore/pkg/config"
)

type fixture struct {
	tasks    *persistence.TaskStore
	calendar *calendar.Store
	feedID   string
}

func memoryConn(t *testing.T) database.Connection {
	t.Helper()
	conn, err := database.NewConnection(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	tasks := persistence.NewTaskStore(memoryConn(t))
	require.NoError(t, tasks.EnsureSchema(ctx))

	converter := timeutil.NewConverter(timeutil.DefaultOffset)
	cal := calendar.NewStore(memoryConn(t), converter)
	require.NoError(t, cal.EnsureSchema(ctx))

	owner, err := cal.FirstUserID(ctx)
	require.NoError(t, err)
	feedID, err := cal.EnsureFeed(ctx, owner, "VibeOS")
	require.NoError(t, err)

	return &fixture{tasks: tasks, calendar: cal, feedID: feedID}
}

// scheduledTask inserts a task linked to a fresh calendar event and returns
// both.
func (f *fixture) scheduledTask(t *testing.T, name string) (*domain.Task, string) {
	t.Helper()
	ctx := context.Background()

	p := domain.NewProject("Test")
	projectID, err := f.tasks.UpsertProject(ctx, p)
	require.NoError(t, err)

	task := domain.NewTask(projectID, name)
	require.NoError(t, f.tasks.InsertTask(ctx, task))

	eventID, err := f.calendar.InsertEvent(ctx, f.feedID, name+" (General)",
		"2025-01-10T03:30:00.000Z", "2025-01-10T04:30:00.000Z")
	require.NoError(t, err)
	require.NoError(t, f.tasks.MarkScheduled(ctx, task.ID, "2025-01-10T03:30:00.000Z", eventID))

	return task, eventID
}

func newReconciler(f *fixture, policy config.MissedPolicy) *Reconciler {
	return New(f.tasks, "unused.db", timeutil.NewConverter(timeutil.DefaultOffset), policy, nil)
}

func TestRun_SkipsWhenCalendarMissing(t *testing.T) {
	f := newFixture(t)
	r := New(f.tasks, filepath.Join(t.TempDir(), "absent.db"),
		timeutil.NewConverter(timeutil.DefaultOffset), config.MissedPolicySoftDelete, nil)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestReconcileStore_SkipsWithoutEventTables(t *testing.T) {
	f := newFixture(t)
	bare := calendar.NewStore(memoryConn(t), timeutil.NewConverter(timeutil.DefaultOffset))

	res, err := newReconciler(f, config.MissedPolicySoftDelete).ReconcileStore(context.Background(), bare)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestReconcileStore_DeletedEventMarksMissed(t *testing.T) {
	f := newFixture(t)
	task, eventID := f.scheduledTask(t, "Write intro")
	require.NoError(t, f.calendar.DeleteEvent(context.Background(), eventID))

	res, err := newReconciler(f, config.MissedPolicySoftDelete).ReconcileStore(context.Background(), f.calendar)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Missed)

	loaded, err := f.tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMissed, loaded.Status)
	assert.True(t, loaded.SoftDeleted)
	assert.Empty(t, loaded.CalendarEventID)
}

func TestReconcileStore_DeletedEventRequeues(t *testing.T) {
	f := newFixture(t)
	task, eventID := f.scheduledTask(t, "Write intro")
	require.NoError(t, f.calendar.DeleteEvent(context.Background(), eventID))

	res, err := newReconciler(f, config.MissedPolicyRequeue).ReconcileStore(context.Background(), f.calendar)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Missed)

	loaded, err := f.tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, loaded.Status)
	assert.False(t, loaded.SoftDeleted)
	assert.Empty(t, loaded.CalendarEventID)
}

func TestReconcileStore_MovedEventFollowed(t *testing.T) {
	f := newFixture(t)
	task, eventID := f.scheduledTask(t, "Write intro")

	// Simulate the user dragging the event half an hour later.
	ctx := context.Background()
	require.NoError(t, f.calendar.DeleteEvent(ctx, eventID))
	moved, err := f.calendar.InsertEvent(ctx, f.feedID, "Write intro (General)",
		"2025-01-10T04:00:00.000Z", "2025-01-10T05:00:00.000Z")
	require.NoError(t, err)
	require.NoError(t, f.tasks.MarkScheduled(ctx, task.ID, "2025-01-10T03:30:00.000Z", moved))

	res, err := newReconciler(f, config.MissedPolicySoftDelete).ReconcileStore(ctx, f.calendar)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Moved)
	assert.Equal(t, 0, res.Missed)

	loaded, err := f.tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, loaded.Status)
	assert.Equal(t, "2025-01-10T04:00:00.000Z", loaded.ScheduledStart)

	history, err := f.tasks.History(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, string(domain.ActionMoved), history[0][0])
	assert.Equal(t, "2025-01-10T03:30:00.000Z", history[0][1])
	assert.Equal(t, "2025-01-10T04:00:00.000Z", history[0][2])
}

func TestReconcileStore_UntouchedEventUnchanged(t *testing.T) {
	f := newFixture(t)
	task, _ := f.scheduledTask(t, "Write intro")

	res, err := newReconciler(f, config.MissedPolicySoftDelete).ReconcileStore(context.Background(), f.calendar)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	loaded, err := f.tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, loaded.Status)
}

func TestRun_ReconcilesOnDiskCalendar(t *testing.T) {
	ctx := context.Background()

	tasks := persistence.NewTaskStore(memoryConn(t))
	require.NoError(t, tasks.EnsureSchema(ctx))

	converter := timeutil.NewConverter(timeutil.DefaultOffset)
	path := filepath.Join(t.TempDir(), "dev.db")

	cal, err := calendar.Open(ctx, path, converter, true)
	require.NoError(t, err)

	owner, err := cal.FirstUserID(ctx)
	require.NoError(t, err)
	feedID, err := cal.EnsureFeed(ctx, owner, "VibeOS")
	require.NoError(t, err)

	projectID, err := tasks.UpsertProject(ctx, domain.NewProject("Test"))
	require.NoError(t, err)
	task := domain.NewTask(projectID, "Write intro")
	require.NoError(t, tasks.InsertTask(ctx, task))

	eventID, err := cal.InsertEvent(ctx, feedID, "Write intro (General)",
		"2025-01-10T03:30:00.000Z", "2025-01-10T04:30:00.000Z")
	require.NoError(t, err)
	require.NoError(t, tasks.MarkScheduled(ctx, task.ID, "2025-01-10T03:30:00.000Z", eventID))
	require.NoError(t, cal.DeleteEvent(ctx, eventID))
	require.NoError(t, cal.Close())

	r := New(tasks, path, converter, config.MissedPolicySoftDelete, nil)
	res, err := r.Run(ctx)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Missed)
}
