// Package persistence implements the external calendar store over the
// calendar UI's SQLite database (User, CalendarFeed, CalendarEvent).
package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/vibeos/vibecore/internal/calendar/domain"
	"github.com/vibeos/vibecore/internal/shared/infrastructure/database"
	"github.com/vibeos/vibecore/internal/timeutil"
)

// ErrUnavailable is returned when the calendar database file does not
// exist. The reconciler treats this as a skip, not a failure.
var ErrUnavailable = errors.New("calendar store unavailable")

// ErrEventNotFound is returned when an event lookup matches no row.
var ErrEventNotFound = errors.New("calendar event not found")

// Store reads and writes the external calendar database.
type Store struct {
	exec      database.Executor
	conn      database.Connection
	converter *timeutil.Converter
}

// Open connects to the calendar database at path. The file must already
// exist (the calendar UI owns bootstrap); otherwise ErrUnavailable is
// returned. Pass create=true to bootstrap a fresh local store instead.
func Open(ctx context.Context, path string, converter *timeutil.Converter, create bool) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && !create {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, path)
	}

	conn, err := database.NewConnection(ctx, database.Config{Driver: database.DriverSQLite, SQLitePath: path})
	if err != nil {
		return nil, fmt.Errorf("open calendar store: %w", err)
	}

	s := &Store{exec: conn, conn: conn, converter: converter}
	if create {
		if err := s.EnsureSchema(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewStore wraps an existing connection, for tests and transactions.
func NewStore(conn database.Connection, converter *timeutil.Converter) *Store {
	return &Store{exec: conn, conn: conn, converter: converter}
}

// WithTx returns a store bound to the given transaction.
func (s *Store) WithTx(tx database.Transaction) *Store {
	return &Store{exec: tx, conn: s.conn, converter: s.converter}
}

// Begin starts a write transaction on the underlying connection.
func (s *Store) Begin(ctx context.Context) (database.Transaction, error) {
	return s.conn.BeginTx(ctx)
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureSchema creates the calendar tables for a locally bootstrapped
// store. The schema mirrors the calendar UI's prisma tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS User (
			id TEXT PRIMARY KEY,
			email TEXT,
			name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS CalendarFeed (
			id TEXT PRIMARY KEY,
			name TEXT,
			type TEXT,
			enabled INTEGER DEFAULT 1,
			userId TEXT,
			createdAt TEXT,
			updatedAt TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS CalendarEvent (
			id TEXT PRIMARY KEY,
			feedId TEXT,
			title TEXT,
			start TEXT,
			end TEXT,
			allDay INTEGER DEFAULT 0,
			createdAt TEXT,
			updatedAt TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure calendar schema: %w", err)
		}
	}
	return nil
}

// HasEventTables reports whether the CalendarEvent table exists. A calendar
// file without it is schema-incomplete and reconciliation is skipped.
func (s *Store) HasEventTables(ctx context.Context) (bool, error) {
	row := s.exec.QueryRow(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'CalendarEvent'`)
	var name string
	if err := row.Scan(&name); err != nil {
		if database.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("inspect calendar schema: %w", err)
	}
	return true, nil
}

// FirstUserID returns the calendar owner: the first User row, creating a
// default local user when the store is empty.
func (s *Store) FirstUserID(ctx context.Context) (string, error) {
	row := s.exec.QueryRow(ctx, `SELECT id FROM User LIMIT 1`)
	var id string
	err := row.Scan(&id)
	if err == nil {
		return id, nil
	}
	if !database.IsNoRows(err) {
		return "", fmt.Errorf("find calendar user: %w", err)
	}

	id = uuid.New().String()
	_, err = s.exec.Exec(ctx,
		`INSERT INTO User (id, email, name) VALUES (?, ?, ?)`,
		id, "local@vibeos", "VibeOS")
	if err != nil {
		return "", fmt.Errorf("create calendar user: %w", err)
	}
	return id, nil
}

// EnsureFeed finds the named feed for the owner, creating a local feed if
// absent. Returns the feed ID.
func (s *Store) EnsureFeed(ctx context.Context, ownerID, name string) (string, error) {
	row := s.exec.QueryRow(ctx,
		`SELECT id FROM CalendarFeed WHERE name = ? AND userId = ?`, name, ownerID)
	var id string
	err := row.Scan(&id)
	if err == nil {
		return id, nil
	}
	if !database.IsNoRows(err) {
		return "", fmt.Errorf("find feed %q: %w", name, err)
	}

	id = uuid.New().String()
	now := s.converter.NowUTCISO()
	_, err = s.exec.Exec(ctx,
		`INSERT INTO CalendarFeed (id, name, type, enabled, createdAt, updatedAt, userId)
		 VALUES (?, ?, 'LOCAL', 1, ?, ?, ?)`,
		id, name, now, now, ownerID)
	if err != nil {
		return "", fmt.Errorf("create feed %q: %w", name, err)
	}
	return id, nil
}

// InsertEvent writes one event and returns its ID. Start and end must
// already be calendar ISO strings.
func (s *Store) InsertEvent(ctx context.Context, feedID, title, startISO, endISO string) (string, error) {
	id := uuid.New().String()
	now := s.converter.NowUTCISO()
	_, err := s.exec.Exec(ctx,
		`INSERT INTO CalendarEvent (id, feedId, title, start, end, allDay, createdAt, updatedAt)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		id, feedID, title, startISO, endISO, now, now)
	if err != nil {
		return "", fmt.Errorf("insert event %q: %w", title, err)
	}
	return id, nil
}

// GetEvent loads an event by ID.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	row := s.exec.QueryRow(ctx,
		`SELECT id, feedId, title, start, end, allDay, createdAt, updatedAt
		 FROM CalendarEvent WHERE id = ?`, eventID)
	ev, err := scanEvent(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return ev, nil
}

// DeleteEvent removes an event by ID.
func (s *Store) DeleteEvent(ctx context.Context, eventID string) error {
	_, err := s.exec.Exec(ctx, `DELETE FROM CalendarEvent WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

// HasEventOn reports whether the feed already holds an event with this
// title starting on the given date (ISO date prefix). The planner uses
// this to keep re-runs from inserting duplicates.
func (s *Store) HasEventOn(ctx context.Context, feedID, title, datePrefix string) (bool, error) {
	row := s.exec.QueryRow(ctx,
		`SELECT id FROM CalendarEvent WHERE feedId = ? AND title = ? AND start LIKE ?`,
		feedID, title, datePrefix+"%")
	var id string
	if err := row.Scan(&id); err != nil {
		if database.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check event %q on %s: %w", title, datePrefix, err)
	}
	return true, nil
}

// EventsByTitlePrefix returns the feed's events whose title starts with the
// given prefix, ordered by start.
func (s *Store) EventsByTitlePrefix(ctx context.Context, feedID, titlePrefix string) ([]*domain.Event, error) {
	rows, err := s.exec.Query(ctx,
		`SELECT id, feedId, title, start, end, allDay, createdAt, updatedAt
		 FROM CalendarEvent WHERE feedId = ? AND title LIKE ? ORDER BY start ASC`,
		feedID, titlePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("query events by title: %w", err)
	}
	return collectEvents(rows)
}

// AllEvents returns every event in the feed ordered by start.
func (s *Store) AllEvents(ctx context.Context, feedID string) ([]*domain.Event, error) {
	rows, err := s.exec.Query(ctx,
		`SELECT id, feedId, title, start, end, allDay, createdAt, updatedAt
		 FROM CalendarEvent WHERE feedId = ? ORDER BY start ASC`, feedID)
	if err != nil {
		return nil, fmt.Errorf("query feed events: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows database.Rows) ([]*domain.Event, error) {
	defer rows.Close()
	var events []*domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanEvent(row database.Row) (*domain.Event, error) {
	var ev domain.Event
	var allDay int
	if err := row.Scan(&ev.ID, &ev.FeedID, &ev.Title, &ev.Start, &ev.End, &allDay, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return nil, err
	}
	ev.AllDay = allDay != 0
	return &ev, nil
}
