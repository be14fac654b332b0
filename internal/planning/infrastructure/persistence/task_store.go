// Package persistence implements the durable task store over the shared
// database abstraction. It runs on SQLite locally and PostgreSQL in server
// deployments.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vibeos/vibecore/internal/planning/domain"
	"github.com/vibeos/vibecore/internal/shared/infrastructure/database"
)

// ErrTaskNotFound is returned when a task lookup matches no row.
var ErrTaskNotFound = errors.New("task not found")

// ErrProjectNotFound is returned when a project lookup matches no row.
var ErrProjectNotFound = errors.New("project not found")

// TaskStore persists projects, tasks, and the reconciler history log.
type TaskStore struct {
	exec   database.Executor
	conn   database.Connection
	driver database.Driver
}

// NewTaskStore creates a task store over a database connection.
func NewTaskStore(conn database.Connection) *TaskStore {
	return &TaskStore{exec: conn, conn: conn, driver: conn.Driver()}
}

// WithTx returns a store bound to the given transaction.
func (s *TaskStore) WithTx(tx database.Transaction) *TaskStore {
	return &TaskStore{exec: tx, conn: s.conn, driver: s.driver}
}

// Begin starts a write transaction on the underlying connection.
func (s *TaskStore) Begin(ctx context.Context) (database.Transaction, error) {
	return s.conn.BeginTx(ctx)
}

func (s *TaskStore) q(query string) string {
	return database.Rebind(s.driver, query)
}

// EnsureSchema creates the task tables when they do not exist yet.
func (s *TaskStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT,
			category TEXT,
			priority INTEGER,
			color TEXT,
			tags TEXT,
			reality_factor REAL DEFAULT 1.0
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT,
			name TEXT,
			status TEXT DEFAULT 'PENDING',
			category TEXT,
			priority INTEGER,
			duration INTEGER,
			actual_duration INTEGER,
			energy_req TEXT,
			task_type TEXT,
			fixed_slot TEXT,
			dependency TEXT,
			deadline_offset INTEGER,
			notes TEXT,
			scheduled_start TEXT,
			calendar_event_id TEXT,
			idempotency_key TEXT,
			is_soft_deleted INTEGER DEFAULT 0,
			created_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS history_log (
			task_id TEXT,
			action TEXT,
			planned_start TEXT,
			actual_start TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure task schema: %w", err)
		}
	}
	return nil
}

// GetProjectByName looks a project up by its display name.
func (s *TaskStore) GetProjectByName(ctx context.Context, name string) (*domain.Project, error) {
	row := s.exec.QueryRow(ctx, s.q(
		`SELECT id, name, category, priority, color, tags, reality_factor FROM projects WHERE name = ?`), name)

	var p domain.Project
	var tags string
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Priority, &p.Color, &tags, &p.RealityFactor); err != nil {
		if database.IsNoRows(err) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project %q: %w", name, err)
	}
	if tags != "" {
		p.Tags = strings.Split(tags, ",")
	}
	return &p, nil
}

// UpsertProject inserts a project by name, or updates the priority of an
// existing one. Returns the project ID either way.
func (s *TaskStore) UpsertProject(ctx context.Context, p *domain.Project) (string, error) {
	existing, err := s.GetProjectByName(ctx, p.Name)
	if err == nil {
		_, err = s.exec.Exec(ctx, s.q(`UPDATE projects SET priority = ? WHERE id = ?`), p.Priority, existing.ID)
		if err != nil {
			return "", fmt.Errorf("update project %q: %w", p.Name, err)
		}
		return existing.ID, nil
	}
	if !errors.Is(err, ErrProjectNotFound) {
		return "", err
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err = s.exec.Exec(ctx, s.q(
		`INSERT INTO projects (id, name, category, priority, color, tags, reality_factor)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.Name, p.Category, p.Priority, p.Color, strings.Join(p.Tags, ","), p.RealityFactor)
	if err != nil {
		return "", fmt.Errorf("insert project %q: %w", p.Name, err)
	}
	return p.ID, nil
}

// TaskExists reports whether a task with this name already exists in the
// project. This is the ingestion dedup key.
func (s *TaskStore) TaskExists(ctx context.Context, projectID, name string) (bool, error) {
	row := s.exec.QueryRow(ctx, s.q(
		`SELECT id FROM tasks WHERE project_id = ? AND name = ?`), projectID, name)
	var id string
	if err := row.Scan(&id); err != nil {
		if database.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check task %q: %w", name, err)
	}
	return true, nil
}

// InsertTask persists a new task.
func (s *TaskStore) InsertTask(ctx context.Context, t *domain.Task) error {
	_, err := s.exec.Exec(ctx, s.q(
		`INSERT INTO tasks (
			id, project_id, name, status,
			is_soft_deleted, idempotency_key,
			category, priority,
			duration, actual_duration, energy_req,
			task_type, fixed_slot, dependency,
			deadline_offset, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.ProjectID, t.Name, string(t.Status),
		boolToInt(t.SoftDeleted), t.IdempotencyKey,
		t.Category, t.Priority,
		t.Duration, string(t.EnergyReq),
		string(t.Type), t.FixedSlot, t.Dependency,
		t.DeadlineOffset, t.Notes, t.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert task %q: %w", t.Name, err)
	}
	return nil
}

// PendingTasks returns the schedulable backlog: PENDING, not soft-deleted,
// highest priority first, oldest first within a priority.
func (s *TaskStore) PendingTasks(ctx context.Context) ([]*domain.Task, error) {
	return s.queryTasks(ctx, s.q(
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status = 'PENDING' AND is_soft_deleted = 0
		 ORDER BY priority DESC, created_at ASC`))
}

// ScheduledTasks returns tasks the planner has placed on the calendar.
func (s *TaskStore) ScheduledTasks(ctx context.Context) ([]*domain.Task, error) {
	return s.queryTasks(ctx, s.q(
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status = 'SCHEDULED' AND calendar_event_id IS NOT NULL AND calendar_event_id != ''
		 ORDER BY scheduled_start ASC`))
}

// MarkScheduled links a task to its calendar event.
func (s *TaskStore) MarkScheduled(ctx context.Context, taskID, scheduledStartISO, eventID string) error {
	res, err := s.exec.Exec(ctx, s.q(
		`UPDATE tasks SET status = 'SCHEDULED', scheduled_start = ?, calendar_event_id = ? WHERE id = ?`),
		scheduledStartISO, eventID, taskID)
	if err != nil {
		return fmt.Errorf("mark task %s scheduled: %w", taskID, err)
	}
	return requireRow(res, taskID)
}

// MarkMissed records an externally deleted event: the task is missed,
// soft-deleted, and unlinked from the calendar.
func (s *TaskStore) MarkMissed(ctx context.Context, taskID string) error {
	res, err := s.exec.Exec(ctx, s.q(
		`UPDATE tasks SET status = 'MISSED', is_soft_deleted = 1, calendar_event_id = NULL WHERE id = ?`),
		taskID)
	if err != nil {
		return fmt.Errorf("mark task %s missed: %w", taskID, err)
	}
	return requireRow(res, taskID)
}

// MarkPendingAgain returns a task to the backlog, clearing its calendar
// link. Used by the requeue missed-task policy.
func (s *TaskStore) MarkPendingAgain(ctx context.Context, taskID string) error {
	res, err := s.exec.Exec(ctx, s.q(
		`UPDATE tasks SET status = 'PENDING', scheduled_start = NULL, calendar_event_id = NULL WHERE id = ?`),
		taskID)
	if err != nil {
		return fmt.Errorf("requeue task %s: %w", taskID, err)
	}
	return requireRow(res, taskID)
}

// UpdateScheduledStart follows a calendar event the user moved.
func (s *TaskStore) UpdateScheduledStart(ctx context.Context, taskID, iso string) error {
	res, err := s.exec.Exec(ctx, s.q(
		`UPDATE tasks SET scheduled_start = ? WHERE id = ?`), iso, taskID)
	if err != nil {
		return fmt.Errorf("update scheduled start of %s: %w", taskID, err)
	}
	return requireRow(res, taskID)
}

// AppendHistory records a reconciler observation.
func (s *TaskStore) AppendHistory(ctx context.Context, taskID string, action domain.HistoryAction, planned, actual string) error {
	_, err := s.exec.Exec(ctx, s.q(
		`INSERT INTO history_log (task_id, action, planned_start, actual_start) VALUES (?, ?, ?, ?)`),
		taskID, string(action), planned, actual)
	if err != nil {
		return fmt.Errorf("append history for %s: %w", taskID, err)
	}
	return nil
}

// History returns the recorded actions for a task, oldest first.
func (s *TaskStore) History(ctx context.Context, taskID string) ([][3]string, error) {
	rows, err := s.exec.Query(ctx, s.q(
		`SELECT action, planned_start, actual_start FROM history_log WHERE task_id = ?`), taskID)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", taskID, err)
	}
	defer rows.Close()

	var out [][3]string
	for rows.Next() {
		var rec [3]string
		if err := rows.Scan(&rec[0], &rec[1], &rec[2]); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetTask loads a single task by ID.
func (s *TaskStore) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	tasks, err := s.queryTasks(ctx, s.q(
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), taskID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, ErrTaskNotFound
	}
	return tasks[0], nil
}

// CountTasks returns the number of tasks in the store, soft-deleted
// included.
func (s *TaskStore) CountTasks(ctx context.Context) (int, error) {
	row := s.exec.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

const taskColumns = `id, project_id, name, status, category, priority, duration,
	actual_duration, energy_req, task_type, fixed_slot, dependency,
	deadline_offset, notes, scheduled_start, calendar_event_id,
	idempotency_key, is_soft_deleted, created_at`

func (s *TaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := s.exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(row database.Row) (*domain.Task, error) {
	var (
		t              domain.Task
		status         string
		energy         string
		taskType       string
		actualDuration *int
		fixedSlot      *string
		dependency     *string
		notes          *string
		scheduledStart *string
		eventID        *string
		softDeleted    int
		createdAt      string
	)

	err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &status, &t.Category, &t.Priority, &t.Duration,
		&actualDuration, &energy, &taskType, &fixedSlot, &dependency,
		&t.DeadlineOffset, &notes, &scheduledStart, &eventID,
		&t.IdempotencyKey, &softDeleted, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Status = domain.Status(status)
	t.EnergyReq = domain.Energy(energy)
	t.Type = domain.TaskType(taskType)
	t.ActualDuration = actualDuration
	t.SoftDeleted = softDeleted != 0
	if fixedSlot != nil {
		t.FixedSlot = *fixedSlot
	}
	if dependency != nil {
		t.Dependency = *dependency
	}
	if notes != nil {
		t.Notes = *notes
	}
	if scheduledStart != nil {
		t.ScheduledStart = *scheduledStart
	}
	if eventID != nil {
		t.CalendarEventID = *eventID
	}
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		t.CreatedAt = ts
	}

	return &t, nil
}

func requireRow(res database.Result, taskID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
