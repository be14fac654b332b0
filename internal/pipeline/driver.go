// Package pipeline runs the full scheduling pass and owns its triggers:
// reconcile the calendar, ingest new inputs, plan the lookahead window.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	calendar "github.com/vibeos/vibecore/internal/calendar/infrastructure/persistence"
	"github.com/vibeos/vibecore/internal/ingest"
	"github.com/vibeos/vibecore/internal/planning/application"
	"github.com/vibeos/vibecore/internal/planning/infrastructure/persistence"
	"github.com/vibeos/vibecore/internal/reconcile"
	"github.com/vibeos/vibecore/internal/template"
	"github.com/vibeos/vibecore/internal/timeutil"
	"github.com/vibeos/vibecore/pkg/config"
	"github.com/vibeos/vibecore/pkg/observability"
)

// Driver executes pipeline runs serially. Triggers from any source funnel
// through a single-slot queue into one worker goroutine, so two runs never
// overlap and a trigger arriving mid-run is simply dropped.
type Driver struct {
	cfg       *config.Config
	tasks     *persistence.TaskStore
	converter *timeutil.Converter
	logger    *slog.Logger

	triggers chan string
	wg       sync.WaitGroup
}

// New wires a driver from configuration and the shared task store.
func New(cfg *config.Config, tasks *persistence.TaskStore, converter *timeutil.Converter, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		cfg:       cfg,
		tasks:     tasks,
		converter: converter,
		logger:    logger,
		triggers:  make(chan string, 1),
	}
}

// Trigger requests a pipeline run. Returns false when the queue is full,
// meaning a run is already underway or queued; the caller's work will be
// picked up by that run or the next trigger.
func (d *Driver) Trigger(source string) bool {
	select {
	case d.triggers <- source:
		return true
	default:
		d.logger.Info("pipeline busy, trigger dropped", "source", source)
		return false
	}
}

// Start launches the worker goroutine. It exits when ctx is cancelled;
// Wait blocks until then.
func (d *Driver) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case source := <-d.triggers:
				if err := d.Run(ctx, source); err != nil {
					d.logger.Error("pipeline run failed", "source", source, "error", err)
				}
			}
		}
	}()
}

// Wait blocks until the worker has exited.
func (d *Driver) Wait() {
	d.wg.Wait()
}

// Run executes one full pass: reconcile, ingest, plan. Each step runs even
// when an earlier one failed; errors are collected and returned together.
// All task writes share one transaction committed at run end, so whatever
// the steps managed stays durable even when a later step failed. The whole
// run is bounded by the configured max duration.
func (d *Driver) Run(ctx context.Context, source string) error {
	ctx = observability.NewRunContext(ctx, source)
	if d.cfg.RunMaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.RunMaxDuration)
		defer cancel()
	}

	logger := d.logger.With("source", source)
	timer := observability.StartTimer("pipeline_run").WithLogger(logger)
	logger.InfoContext(ctx, "pipeline run starting")

	tx, err := d.tasks.Begin(ctx)
	if err != nil {
		err = fmt.Errorf("begin task transaction: %w", err)
		timer.StopWithError(err)
		return err
	}
	store := d.tasks.WithTx(tx)

	var errs error

	if _, err := d.reconcileStep(ctx, store); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("reconcile: %w", err))
		logger.ErrorContext(ctx, "reconcile step failed", "error", err)
	}

	if _, err := d.ingestStep(ctx, store); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("ingest: %w", err))
		logger.ErrorContext(ctx, "ingest step failed", "error", err)
	}

	if err := d.planStep(ctx, store); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("plan: %w", err))
		logger.ErrorContext(ctx, "plan step failed", "error", err)
	}

	if err := tx.Commit(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("commit task transaction: %w", err))
	}

	timer.StopWithError(errs)
	return errs
}

// Reconcile runs only the reconciliation step, in its own transaction.
func (d *Driver) Reconcile(ctx context.Context) (reconcile.Result, error) {
	var res reconcile.Result
	err := d.inTaskTx(ctx, func(store *persistence.TaskStore) error {
		var err error
		res, err = d.reconcileStep(ctx, store)
		return err
	})
	return res, err
}

// Ingest runs only the ingestion step, in its own transaction.
func (d *Driver) Ingest(ctx context.Context) (int, error) {
	var n int
	err := d.inTaskTx(ctx, func(store *persistence.TaskStore) error {
		var err error
		n, err = d.ingestStep(ctx, store)
		return err
	})
	return n, err
}

// Plan runs only the planning step, in its own transaction.
func (d *Driver) Plan(ctx context.Context) error {
	return d.inTaskTx(ctx, func(store *persistence.TaskStore) error {
		return d.planStep(ctx, store)
	})
}

// inTaskTx runs fn against a transaction-bound task store, committing on
// success and rolling back on error.
func (d *Driver) inTaskTx(ctx context.Context, fn func(*persistence.TaskStore) error) error {
	tx, err := d.tasks.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin task transaction: %w", err)
	}
	if err := fn(d.tasks.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			err = multierr.Append(err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

func (d *Driver) reconcileStep(ctx context.Context, store *persistence.TaskStore) (reconcile.Result, error) {
	r := reconcile.New(store, d.cfg.CalendarDBPath, d.converter, d.cfg.MissedPolicy, d.logger)
	return r.Run(ctx)
}

func (d *Driver) ingestStep(ctx context.Context, store *persistence.TaskStore) (int, error) {
	return ingest.New(store, d.cfg.InputsDir, d.logger).Run(ctx)
}

// planStep loads the week template fresh, opens the calendar store, and runs
// the planner inside one calendar transaction. The template is re-read every
// run so edits take effect without a restart. Days already planned before a
// failure stay on the calendar.
func (d *Driver) planStep(ctx context.Context, store *persistence.TaskStore) error {
	wt, err := template.Load(d.cfg.TemplatePath)
	if err != nil {
		return err
	}

	cal, err := calendar.Open(ctx, d.cfg.CalendarDBPath, d.converter, true)
	if err != nil {
		return err
	}
	defer cal.Close()

	caltx, err := cal.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin calendar transaction: %w", err)
	}

	planner := application.NewPlanner(
		store,
		cal.WithTx(caltx),
		template.NewExpander(wt, d.logger),
		application.NewArchitect(d.cfg.LimitPerSubject, d.logger),
		application.NewOptimizer(d.logger),
		d.converter,
		d.cfg.CalendarFeed,
		d.cfg.LookaheadDays,
		d.cfg.PlanCutoverHour,
		d.logger,
	)

	_, err = planner.Plan(ctx)
	if cErr := caltx.Commit(ctx); cErr != nil {
		err = multierr.Append(err, fmt.Errorf("commit calendar transaction: %w", cErr))
	}
	return err
}
