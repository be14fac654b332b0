package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	calendar "github.com/vibeos/vibecore/internal/calendar/infrastructure/persistence"
	"github.com/vibeos/vibecore/internal/planning/infrastructure/persistence"
	"github.com/vibeos/vibecore/internal/shared/infrastructure/database"
	_ "github.com/vibeos/vibecore/internal/shared/infrastructure/database/sqlite"
	"github.com/vibeos/vibecore/internal/timeutil"
	"github.com/vibeos/vibecore/pkg/config"
)

func newTestTaskStore(t *testing.T) *persistence.TaskStore {
	t.Helper()
	conn, err := database.NewConnection(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := persistence.NewTaskStore(conn)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

// newTestConfig lays out a full data directory under a temp root: one input
// file, a week template, and a calendar database path.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	inputs := filepath.Join(root, "inputs")
	require.NoError(t, os.MkdirAll(inputs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inputs, "1_thesis.json"), []byte(`{
		"project_name": "Thesis",
		"default_category": "Code",
		"tasks": [{"name": "Write intro"}]
	}`), 0o644))

	templatePath := filepath.Join(root, "week_template.json")
	require.NoError(t, os.WriteFile(templatePath, []byte(`{
		"current_mode": "normal",
		"modes": {"normal": {
			"Monday": [{"start": "09:00", "end": "10:00", "category": "Code"}]
		}}
	}`), 0o644))

	return &config.Config{
		InputsDir:       inputs,
		TemplatePath:    templatePath,
		CalendarDBPath:  filepath.Join(root, "dev.db"),
		CalendarFeed:    "VibeOS",
		UTCOffset:       timeutil.DefaultOffset,
		LookaheadDays:   1,
		LimitPerSubject: 1,
		PlanCutoverHour: 20,
		MissedPolicy:    config.MissedPolicySoftDelete,
		WatcherDebounce: 10 * time.Millisecond,
	}
}

func testDriver(t *testing.T) (*Driver, *persistence.TaskStore, *config.Config) {
	t.Helper()
	cfg := newTestConfig(t)
	tasks := newTestTaskStore(t)
	converter := &timeutil.Converter{
		Offset: timeutil.DefaultOffset,
		Clock:  timeutil.FixedClock(time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)),
	}
	return New(cfg, tasks, converter, nil), tasks, cfg
}

func TestRun_FullPass(t *testing.T) {
	driver, tasks, cfg := testDriver(t)
	ctx := context.Background()

	require.NoError(t, driver.Run(ctx, "test"))

	// The ingested task went through the optimizer onto the calendar.
	scheduled, err := tasks.ScheduledTasks(ctx)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "Write intro", scheduled[0].Name)

	converter := timeutil.NewConverter(cfg.UTCOffset)
	cal, err := calendar.Open(ctx, cfg.CalendarDBPath, converter, false)
	require.NoError(t, err)
	defer cal.Close()

	ev, err := cal.GetEvent(ctx, scheduled[0].CalendarEventID)
	require.NoError(t, err)
	assert.Equal(t, "Write intro (Code)", ev.Title)
}

func TestRun_LaterStepsRunAfterFailure(t *testing.T) {
	driver, tasks, cfg := testDriver(t)
	require.NoError(t, os.Remove(cfg.TemplatePath))

	err := driver.Run(context.Background(), "test")
	assert.Error(t, err, "plan step must fail without a template")

	// Ingestion still happened before the plan failure.
	n, err2 := tasks.CountTasks(context.Background())
	require.NoError(t, err2)
	assert.Equal(t, 1, n)
}

func TestTrigger_DropsWhenBusy(t *testing.T) {
	driver, _, _ := testDriver(t)

	// No worker is draining the queue, so only one trigger fits.
	assert.True(t, driver.Trigger("api"))
	assert.False(t, driver.Trigger("api"))
}

func TestStartAndTrigger_RunsPipeline(t *testing.T) {
	driver, tasks, _ := testDriver(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver.Start(ctx)
	require.True(t, driver.Trigger("test"))

	require.Eventually(t, func() bool {
		scheduled, err := tasks.ScheduledTasks(context.Background())
		return err == nil && len(scheduled) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	driver.Wait()
}

func TestWatcher_TriggersOnNewJSONFile(t *testing.T) {
	driver, tasks, cfg := testDriver(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver.Start(ctx)
	watcher := NewWatcher(driver, cfg.InputsDir, cfg.WatcherDebounce, nil)
	go func() { _ = watcher.Run(ctx) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputsDir, "2_extra.json"), []byte(`{
		"project_name": "Extra",
		"default_category": "Code",
		"tasks": [{"name": "Extra task"}]
	}`), 0o644))

	require.Eventually(t, func() bool {
		n, err := tasks.CountTasks(context.Background())
		return err == nil && n == 2
	}, 5*time.Second, 50*time.Millisecond)
}
