package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeos/vibecore/internal/shared/infrastructure/database"
	_ "github.com/vibeos/vibecore/internal/shared/infrastructure/database/sqlite"
	"github.com/vibeos/vibecore/internal/timeutil"
)

func testConverter() *timeutil.Converter {
	return &timeutil.Converter{
		Offset: timeutil.DefaultOffset,
		Clock:  timeutil.FixedClock(time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)),
	}
}

func newTestCalendar(t *testing.T) *Store {
	t.Helper()

	conn, err := database.NewConnection(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := NewStore(conn, testConverter())
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestOpen_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.db")

	_, err := Open(context.Background(), path, testConverter(), false)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpen_CreateBootstrapsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.db")

	store, err := Open(context.Background(), path, testConverter(), true)
	require.NoError(t, err)
	defer store.Close()

	ok, err := store.HasEventTables(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasEventTables_IncompleteSchema(t *testing.T) {
	conn, err := database.NewConnection(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := NewStore(conn, testConverter())
	ok, err := store.HasEventTables(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFirstUserID_AdoptsExisting(t *testing.T) {
	store := newTestCalendar(t)
	ctx := context.Background()

	_, err := store.exec.Exec(ctx,
		`INSERT INTO User (id, email, name) VALUES ('u-1', 'me@example.com', 'Me')`)
	require.NoError(t, err)

	id, err := store.FirstUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)
}

func TestFirstUserID_CreatesLocalUser(t *testing.T) {
	store := newTestCalendar(t)

	id, err := store.FirstUserID(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	again, err := store.FirstUserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestEnsureFeed_Idempotent(t *testing.T) {
	store := newTestCalendar(t)
	ctx := context.Background()

	owner, err := store.FirstUserID(ctx)
	require.NoError(t, err)

	feedID, err := store.EnsureFeed(ctx, owner, "VibeOS")
	require.NoError(t, err)
	assert.NotEmpty(t, feedID)

	again, err := store.EnsureFeed(ctx, owner, "VibeOS")
	require.NoError(t, err)
	assert.Equal(t, feedID, again)
}

func TestEventLifecycle(t *testing.T) {
	store := newTestCalendar(t)
	ctx := context.Background()

	owner, err := store.FirstUserID(ctx)
	require.NoError(t, err)
	feedID, err := store.EnsureFeed(ctx, owner, "VibeOS")
	require.NoError(t, err)

	eventID, err := store.InsertEvent(ctx, feedID, "Write intro (Study)",
		"2025-01-10T03:30:00.000Z", "2025-01-10T04:30:00.000Z")
	require.NoError(t, err)

	ev, err := store.GetEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, "Write intro (Study)", ev.Title)
	assert.Equal(t, "2025-01-10T03:30:00.000Z", ev.Start)
	assert.False(t, ev.AllDay)

	require.NoError(t, store.DeleteEvent(ctx, eventID))

	_, err = store.GetEvent(ctx, eventID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestHasEventOn(t *testing.T) {
	store := newTestCalendar(t)
	ctx := context.Background()

	owner, err := store.FirstUserID(ctx)
	require.NoError(t, err)
	feedID, err := store.EnsureFeed(ctx, owner, "VibeOS")
	require.NoError(t, err)

	_, err = store.InsertEvent(ctx, feedID, "Sleep",
		"2025-01-10T16:30:00.000Z", "2025-01-11T00:30:00.000Z")
	require.NoError(t, err)

	has, err := store.HasEventOn(ctx, feedID, "Sleep", "2025-01-10")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = store.HasEventOn(ctx, feedID, "Sleep", "2025-01-11")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = store.HasEventOn(ctx, feedID, "Lunch", "2025-01-10")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestAllEventsOrdered(t *testing.T) {
	store := newTestCalendar(t)
	ctx := context.Background()

	owner, err := store.FirstUserID(ctx)
	require.NoError(t, err)
	feedID, err := store.EnsureFeed(ctx, owner, "VibeOS")
	require.NoError(t, err)

	_, err = store.InsertEvent(ctx, feedID, "Later",
		"2025-01-10T10:00:00.000Z", "2025-01-10T11:00:00.000Z")
	require.NoError(t, err)
	_, err = store.InsertEvent(ctx, feedID, "Earlier",
		"2025-01-10T03:30:00.000Z", "2025-01-10T04:30:00.000Z")
	require.NoError(t, err)

	events, err := store.AllEvents(ctx, feedID)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "Earlier", events[0].Title)
	assert.Equal(t, "Later", events[1].Title)
}

func TestEventsByTitlePrefix(t *testing.T) {
	store := newTestCalendar(t)
	ctx := context.Background()

	ownerID, err := store.FirstUserID(ctx)
	require.NoError(t, err)
	feedID, err := store.EnsureFeed(ctx, ownerID, "VibeOS")
	require.NoError(t, err)
	otherFeed, err := store.EnsureFeed(ctx, ownerID, "Other")
	require.NoError(t, err)

	_, err = store.InsertEvent(ctx, feedID, "Write intro (Code)", "2025-01-06T03:30:00.000Z", "2025-01-06T04:30:00.000Z")
	require.NoError(t, err)
	_, err = store.InsertEvent(ctx, feedID, "Write outline (Code)", "2025-01-05T03:30:00.000Z", "2025-01-05T04:30:00.000Z")
	require.NoError(t, err)
	_, err = store.InsertEvent(ctx, feedID, "Lunch", "2025-01-06T07:30:00.000Z", "2025-01-06T08:30:00.000Z")
	require.NoError(t, err)
	_, err = store.InsertEvent(ctx, otherFeed, "Write essay (Study)", "2025-01-06T05:30:00.000Z", "2025-01-06T06:30:00.000Z")
	require.NoError(t, err)

	events, err := store.EventsByTitlePrefix(ctx, feedID, "Write")
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Ordered by start; only the queried feed contributes.
	assert.Equal(t, "Write outline (Code)", events[0].Title)
	assert.Equal(t, "Write intro (Code)", events[1].Title)

	none, err := store.EventsByTitlePrefix(ctx, feedID, "Gym")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWithTx_CommitVisible(t *testing.T) {
	store := newTestCalendar(t)
	ctx := context.Background()

	ownerID, err := store.FirstUserID(ctx)
	require.NoError(t, err)
	feedID, err := store.EnsureFeed(ctx, ownerID, "VibeOS")
	require.NoError(t, err)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	id, err := store.WithTx(tx).InsertEvent(ctx, feedID, "Tx event", "2025-01-06T03:30:00.000Z", "2025-01-06T04:30:00.000Z")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	ev, err := store.GetEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Tx event", ev.Title)
}
