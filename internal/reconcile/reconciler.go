// Package reconcile detects calendar edits made by the user and folds them
// back into the task backlog before each planning run.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	calendar "github.com/vibeos/vibecore/internal/calendar/infrastructure/persistence"
	"github.com/vibeos/vibecore/internal/planning/domain"
	"github.com/vibeos/vibecore/internal/planning/infrastructure/persistence"
	"github.com/vibeos/vibecore/internal/timeutil"
	"github.com/vibeos/vibecore/pkg/config"
)

// Result summarizes one reconciliation pass.
type Result struct {
	// Skipped is true when the calendar store was absent or incomplete
	// and no reconciliation ran.
	Skipped bool
	Missed  int
	Moved   int
}

// Reconciler compares scheduled tasks against their calendar events.
type Reconciler struct {
	tasks        *persistence.TaskStore
	calendarPath string
	converter    *timeutil.Converter
	policy       config.MissedPolicy
	logger       *slog.Logger
}

// New creates a reconciler over the calendar database at calendarPath.
func New(tasks *persistence.TaskStore, calendarPath string, converter *timeutil.Converter, policy config.MissedPolicy, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		tasks:        tasks,
		calendarPath: calendarPath,
		converter:    converter,
		policy:       policy,
		logger:       logger,
	}
}

// Run opens the calendar store and reconciles against it. A missing
// calendar file is a skip, not a failure: the calendar UI may simply not
// be set up on this machine.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	store, err := calendar.Open(ctx, r.calendarPath, r.converter, false)
	if err != nil {
		if errors.Is(err, calendar.ErrUnavailable) {
			r.logger.Warn("calendar store missing, skipping reconciliation",
				"path", r.calendarPath)
			return Result{Skipped: true}, nil
		}
		return Result{}, err
	}
	defer store.Close()

	return r.ReconcileStore(ctx, store)
}

// ReconcileStore reconciles against an already opened calendar store.
func (r *Reconciler) ReconcileStore(ctx context.Context, store *calendar.Store) (Result, error) {
	ok, err := store.HasEventTables(ctx)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		r.logger.Warn("calendar store has no event tables, skipping reconciliation",
			"path", r.calendarPath)
		return Result{Skipped: true}, nil
	}

	scheduled, err := r.tasks.ScheduledTasks(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, task := range scheduled {
		if task.CalendarEventID == "" {
			continue
		}

		event, err := store.GetEvent(ctx, task.CalendarEventID)
		if errors.Is(err, calendar.ErrEventNotFound) {
			if err := r.handleMissing(ctx, task); err != nil {
				return res, err
			}
			res.Missed++
			continue
		}
		if err != nil {
			return res, err
		}

		if event.Start != task.ScheduledStart {
			if err := r.handleMoved(ctx, task, event.Start); err != nil {
				return res, err
			}
			res.Moved++
		}
	}

	r.logger.Info("reconciliation finished",
		"scheduled", len(scheduled), "missed", res.Missed, "moved", res.Moved)
	return res, nil
}

// handleMissing applies the configured policy to a task whose event the
// user deleted from the calendar.
func (r *Reconciler) handleMissing(ctx context.Context, task *domain.Task) error {
	switch r.policy {
	case config.MissedPolicyRequeue:
		r.logger.Info("event deleted, requeueing task",
			"task", task.Name, "task_id", task.ID)
		if err := r.tasks.MarkPendingAgain(ctx, task.ID); err != nil {
			return fmt.Errorf("requeue task %s: %w", task.ID, err)
		}
	default:
		r.logger.Info("event deleted, marking task missed",
			"task", task.Name, "task_id", task.ID)
		if err := r.tasks.MarkMissed(ctx, task.ID); err != nil {
			return fmt.Errorf("mark task %s missed: %w", task.ID, err)
		}
	}
	return nil
}

// handleMoved records a user-moved event: the task follows the event to
// its new start, with a history row keeping the original plan.
func (r *Reconciler) handleMoved(ctx context.Context, task *domain.Task, newStart string) error {
	r.logger.Info("event moved, following",
		"task", task.Name, "task_id", task.ID,
		"from", task.ScheduledStart, "to", newStart)

	if err := r.tasks.UpdateScheduledStart(ctx, task.ID, newStart); err != nil {
		return fmt.Errorf("move task %s: %w", task.ID, err)
	}
	if err := r.tasks.AppendHistory(ctx, task.ID, domain.ActionMoved, task.ScheduledStart, newStart); err != nil {
		return fmt.Errorf("record move for task %s: %w", task.ID, err)
	}
	return nil
}
