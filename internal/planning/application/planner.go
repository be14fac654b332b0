package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	calendar "github.com/vibeos/vibecore/internal/calendar/infrastructure/persistence"
	"github.com/vibeos/vibecore/internal/planning/domain"
	"github.com/vibeos/vibecore/internal/planning/infrastructure/persistence"
	"github.com/vibeos/vibecore/internal/template"
	"github.com/vibeos/vibecore/internal/timeutil"
)

// Planner runs the lookahead scheduling loop: expand one day of the week
// template, pick a balanced batch, place it, write calendar events, and
// cascade the leftovers into the next day.
type Planner struct {
	tasks     *persistence.TaskStore
	calendar  *calendar.Store
	expander  *template.Expander
	architect *Architect
	optimizer *Optimizer
	converter *timeutil.Converter

	feedName  string
	lookahead int
	cutover   int // hour after which planning starts tomorrow

	logger *slog.Logger
}

// NewPlanner wires a planner from its collaborators.
func NewPlanner(
	tasks *persistence.TaskStore,
	cal *calendar.Store,
	expander *template.Expander,
	architect *Architect,
	optimizer *Optimizer,
	converter *timeutil.Converter,
	feedName string,
	lookahead, cutover int,
	logger *slog.Logger,
) *Planner {
	if lookahead < 1 {
		lookahead = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		tasks:     tasks,
		calendar:  cal,
		expander:  expander,
		architect: architect,
		optimizer: optimizer,
		converter: converter,
		feedName:  feedName,
		lookahead: lookahead,
		cutover:   cutover,
		logger:    logger,
	}
}

// Plan schedules the pending backlog over the lookahead window and returns
// the number of tasks scheduled. Cancellation is honored between days; work
// already committed for earlier days stands.
func (p *Planner) Plan(ctx context.Context) (int, error) {
	ownerID, err := p.calendar.FirstUserID(ctx)
	if err != nil {
		return 0, err
	}
	feedID, err := p.calendar.EnsureFeed(ctx, ownerID, p.feedName)
	if err != nil {
		return 0, err
	}

	pendings, err := p.tasks.PendingTasks(ctx)
	if err != nil {
		return 0, err
	}

	start := p.startDay()
	scheduled := 0

	for offset := 0; offset < p.lookahead; offset++ {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("plan run cancelled", "days_done", offset)
			return scheduled, err
		}

		date := start.AddDate(0, 0, offset)
		placed, remaining, err := p.planDay(ctx, feedID, date, pendings)
		if err != nil {
			return scheduled, fmt.Errorf("plan %s: %w", date.Format("2006-01-02"), err)
		}
		scheduled += placed
		pendings = remaining

		if len(pendings) == 0 {
			break
		}
	}

	p.logger.Info("plan run finished",
		"scheduled", scheduled, "unplaced", len(pendings))
	return scheduled, nil
}

// startDay picks the first day to plan: today, or tomorrow once the evening
// cutover has passed.
func (p *Planner) startDay() time.Time {
	now := p.converter.NowLocal()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if now.Hour() > p.cutover {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// planDay handles one date: constants to the calendar, a balanced batch
// through the optimizer, events plus status updates for each placement.
// It returns the placement count and the cascade pool for the next day.
func (p *Planner) planDay(ctx context.Context, feedID string, date time.Time, pendings []*domain.Task) (int, []*domain.Task, error) {
	free, constants, err := p.expander.Expand(date, 1)
	if err != nil {
		return 0, pendings, err
	}

	if err := p.writeConstants(ctx, feedID, constants); err != nil {
		return 0, pendings, err
	}

	batch, deferred := p.architect.BalancedBatch(pendings)
	assignments := p.optimizer.Solve(batch, free)
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].SlotIndex < assignments[j].SlotIndex
	})

	byID := make(map[string]*domain.Task, len(batch))
	for _, t := range batch {
		byID[t.ID] = t
	}

	placed := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		task := byID[a.TaskID]
		title := fmt.Sprintf("%s (%s)", task.Name, task.Category)
		startISO := p.converter.LocalToUTCISO(a.Start)
		endISO := p.converter.LocalToUTCISO(a.End)

		eventID, err := p.calendar.InsertEvent(ctx, feedID, title, startISO, endISO)
		if err != nil {
			return len(placed), pendings, err
		}
		if err := p.tasks.MarkScheduled(ctx, task.ID, startISO, eventID); err != nil {
			return len(placed), pendings, err
		}
		placed[task.ID] = true
	}

	p.logger.Info("planned day",
		"date", date.Format("2006-01-02"),
		"free_slots", len(free), "batch", len(batch), "placed", len(placed))

	// Cascade pool: unplaced batch members first, then the tasks the
	// drip-feed deferred, both in original order.
	next := make([]*domain.Task, 0, len(pendings)-len(placed))
	for _, t := range batch {
		if !placed[t.ID] {
			next = append(next, t)
		}
	}
	next = append(next, deferred...)

	return len(placed), next, nil
}

// writeConstants mirrors the day's constant blocks into the calendar,
// skipping any block already present (same title, same start date).
func (p *Planner) writeConstants(ctx context.Context, feedID string, constants []domain.Slot) error {
	for _, slot := range constants {
		title := slot.Label
		if title == "" {
			title = domain.CategoryConstant
		}
		startISO := p.converter.LocalToUTCISO(slot.Start)

		exists, err := p.calendar.HasEventOn(ctx, feedID, title, startISO[:10])
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		endISO := p.converter.LocalToUTCISO(slot.End)
		if _, err := p.calendar.InsertEvent(ctx, feedID, title, startISO, endISO); err != nil {
			return err
		}
	}
	return nil
}
