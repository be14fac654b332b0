package template

import (
	"log/slog"
	"sort"
	"time"

	"github.com/vibeos/vibecore/internal/planning/domain"
	"github.com/vibeos/vibecore/internal/timeutil"
)

const minutesPerDay = 24 * 60

// Expander turns the weekly template into dated slots, partitioned into
// optimizer candidates and constant blocks.
type Expander struct {
	template *WeekTemplate
	logger   *slog.Logger
}

// NewExpander creates an expander over a loaded template.
func NewExpander(wt *WeekTemplate, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{template: wt, logger: logger}
}

// Expand produces the free slots and constant blocks for daysAhead days
// starting at start. Both lists are sorted ascending by start time, and no
// free slot overlaps a constant block on the same day.
func (e *Expander) Expand(start time.Time, daysAhead int) (free, constants []domain.Slot, err error) {
	schedule, err := e.template.ActiveSchedule()
	if err != nil {
		return nil, nil, err
	}

	for offset := 0; offset < daysAhead; offset++ {
		date := truncateToDay(start.AddDate(0, 0, offset))
		dayFree, dayConstants := e.expandDay(schedule, date)
		free = append(free, dayFree...)
		constants = append(constants, dayConstants...)
	}

	sort.Slice(free, func(i, j int) bool { return free[i].Start.Before(free[j].Start) })
	sort.Slice(constants, func(i, j int) bool { return constants[i].Start.Before(constants[j].Start) })

	return free, constants, nil
}

// dayBlocks resolves the block list for a weekday, following a reference to
// another weekday at most one hop. Chained references resolve to nothing.
func (e *Expander) dayBlocks(schedule map[string]DaySchedule, weekday string) []Block {
	day, ok := schedule[weekday]
	if !ok {
		return nil
	}
	if day.IsRef() {
		target, ok := schedule[day.Ref]
		if !ok || target.IsRef() {
			return nil
		}
		return target.Blocks
	}
	return day.Blocks
}

// candidate is a block joined with a concrete date, before masking.
type candidate struct {
	slot domain.Slot
	// segments are the minute-of-day intervals the block covers on this
	// date. A midnight-crossing block covers the late evening and, because
	// the template repeats daily, the same early-morning span.
	segments [][2]int
}

func (e *Expander) expandDay(schedule map[string]DaySchedule, date time.Time) (free, constants []domain.Slot) {
	blocks := e.dayBlocks(schedule, date.Format("Monday"))
	if len(blocks) == 0 {
		return nil, nil
	}

	var freeCands, constCands []candidate

	for _, b := range blocks {
		cand, ok := e.materialize(b, date)
		if !ok {
			continue
		}
		if cand.slot.IsConstant() {
			constCands = append(constCands, cand)
		} else {
			freeCands = append(freeCands, cand)
		}
	}

	// Busy mask: drop free candidates that overlap any constant block on
	// this day. Without this the optimizer would place tasks on top of
	// blocks written outside its control.
	masked := freeCands[:0]
	for _, fc := range freeCands {
		blocked := false
		for _, cc := range constCands {
			if segmentsOverlap(fc.segments, cc.segments) {
				blocked = true
				break
			}
		}
		if !blocked {
			masked = append(masked, fc)
		}
	}

	// Per-day exact-start dedup: at most one block per distinct start,
	// constant wins over free.
	seen := make(map[string]bool, len(constCands)+len(masked))
	for _, cc := range constCands {
		key := cc.slot.Start.Format(timeutil.ISOLayout)
		if seen[key] {
			continue
		}
		seen[key] = true
		constants = append(constants, cc.slot)
	}
	for _, fc := range masked {
		key := fc.slot.Start.Format(timeutil.ISOLayout)
		if seen[key] {
			continue
		}
		seen[key] = true
		free = append(free, fc.slot)
	}

	return free, constants
}

// materialize joins a raw block with a date. Malformed clock values are
// logged and the block skipped; the rest of the day continues.
func (e *Expander) materialize(b Block, date time.Time) (candidate, bool) {
	sh, sm, err := timeutil.ParseClock(b.Start)
	if err != nil {
		e.logger.Warn("skipping template block with bad start time",
			"block", b.Label, "start", b.Start, "date", date.Format("2006-01-02"), "error", err)
		return candidate{}, false
	}
	eh, em, err := timeutil.ParseClock(b.End)
	if err != nil {
		e.logger.Warn("skipping template block with bad end time",
			"block", b.Label, "end", b.End, "date", date.Format("2006-01-02"), "error", err)
		return candidate{}, false
	}

	startMin := sh*60 + sm
	endMin := eh*60 + em

	start := time.Date(date.Year(), date.Month(), date.Day(), sh, sm, 0, 0, date.Location())
	end := time.Date(date.Year(), date.Month(), date.Day(), eh, em, 0, 0, date.Location())

	var segments [][2]int
	if endMin > startMin {
		segments = [][2]int{{startMin, endMin}}
	} else {
		// Midnight crossing: the block runs into the next day, and its
		// early-morning span recurs on this day too.
		end = end.AddDate(0, 0, 1)
		segments = [][2]int{{startMin, minutesPerDay}, {0, endMin}}
	}

	return candidate{
		slot: domain.Slot{
			Start:        start,
			End:          end,
			Duration:     int(end.Sub(start).Minutes()),
			Category:     b.Category,
			Label:        b.Label,
			EnergySupply: b.EnergySupply,
		},
		segments: segments,
	}, true
}

func segmentsOverlap(a, b [][2]int) bool {
	for _, sa := range a {
		for _, sb := range b {
			if sa[0] < sb[1] && sa[1] > sb[0] {
				return true
			}
		}
	}
	return false
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
