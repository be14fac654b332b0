package application

import (
	"log/slog"
	"time"

	"github.com/vibeos/vibecore/internal/planning/domain"
	"github.com/vibeos/vibecore/internal/timeutil"
)

// Scoring weights. Every placement is worth scheduling at all (base), higher
// priority dominates, matching energy helps, earlier slots break ties.
const (
	scoreBase         = 10000
	scorePriority     = 5000
	scoreSlotPenalty  = 10
	energyBonusMatch  = 500
	energyBonusExcess = 100
	energyBonusShort  = -1000
)

// weekendBlockedCategories are never scheduled on Saturday or Sunday.
var weekendBlockedCategories = map[string]bool{
	"Study": true,
	"Learn": true,
}

// Optimizer assigns a batch of tasks to free slots, maximizing the total
// placement score under the hard constraints. The search is exact branch
// and bound; batches and slot lists are small enough that it completes
// instantly in practice.
type Optimizer struct {
	logger *slog.Logger
}

// NewOptimizer creates an optimizer.
func NewOptimizer(logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{logger: logger}
}

// Solve places tasks into slots. Each task takes at most one slot, each slot
// at most one task, and when a task and its dependency are both placed the
// dependency gets the earlier slot. Ordering only binds placed pairs: an
// unplaced dependency leaves its dependent free to take any slot.
// An infeasible or empty instance yields an empty result, never an error.
// The result is deterministic for identical inputs.
func (o *Optimizer) Solve(tasks []*domain.Task, slots []domain.Slot) []domain.Assignment {
	if len(tasks) == 0 || len(slots) == 0 {
		return nil
	}

	s := newSolver(tasks, slots)
	s.search(0, 0)

	var out []domain.Assignment
	for ti, si := range s.best {
		if si < 0 {
			continue
		}
		t := tasks[s.order[ti]]
		slot := slots[si]
		out = append(out, domain.Assignment{
			TaskID:       t.ID,
			Name:         t.Name,
			Start:        slot.Start,
			End:          slot.Start.Add(time.Duration(t.Duration) * time.Minute),
			SlotIndex:    si,
			EnergySupply: slot.EnergySupply,
		})
	}

	o.logger.Debug("optimizer solved batch",
		"tasks", len(tasks), "slots", len(slots), "placed", len(out))
	return out
}

// candidate is one feasible (task, slot) pairing and its score.
type candidate struct {
	slot  int
	score int
}

type solver struct {
	tasks []*domain.Task
	// order indexes tasks so that a dependency always precedes its
	// dependent in the search.
	order []int
	// cands[i] are the feasible slots for tasks[order[i]], ascending.
	cands [][]candidate
	// bestTail[i] is the max achievable score from tasks i.. onward.
	bestTail []int
	// depOf[i] is the position (in order) of the in-batch dependency of
	// task i, or -1.
	depOf []int

	slotUsed  []bool
	chosen    []int
	best      []int
	bestScore int
}

func newSolver(tasks []*domain.Task, slots []domain.Slot) *solver {
	s := &solver{
		tasks:    tasks,
		order:    dependencyOrder(tasks),
		slotUsed: make([]bool, len(slots)),
	}

	pos := make(map[string]int, len(tasks))
	for i, ti := range s.order {
		pos[tasks[ti].ID] = i
	}

	s.cands = make([][]candidate, len(s.order))
	s.depOf = make([]int, len(s.order))
	for i, ti := range s.order {
		t := tasks[ti]
		s.depOf[i] = -1
		if t.Dependency != "" {
			if p, ok := pos[t.Dependency]; ok && p < i {
				s.depOf[i] = p
			}
		}
		for si, slot := range slots {
			if !feasible(t, slot) {
				continue
			}
			s.cands[i] = append(s.cands[i], candidate{slot: si, score: score(t, slot, si)})
		}
	}

	s.bestTail = make([]int, len(s.order)+1)
	for i := len(s.order) - 1; i >= 0; i-- {
		top := 0
		for _, c := range s.cands[i] {
			if c.score > top {
				top = c.score
			}
		}
		s.bestTail[i] = s.bestTail[i+1] + top
	}

	s.chosen = make([]int, len(s.order))
	s.best = make([]int, len(s.order))
	for i := range s.best {
		s.chosen[i] = -1
		s.best[i] = -1
	}
	s.bestScore = -1
	return s
}

func (s *solver) search(i, total int) {
	if total+s.bestTail[i] <= s.bestScore {
		return
	}
	if i == len(s.order) {
		if total > s.bestScore {
			s.bestScore = total
			copy(s.best, s.chosen)
		}
		return
	}

	// A dependent schedules after its placed dependency. An unplaced
	// dependency (chosen stays -1) imposes no bound.
	minSlot := -1
	if d := s.depOf[i]; d >= 0 {
		minSlot = s.chosen[d]
	}

	for _, c := range s.cands[i] {
		if s.slotUsed[c.slot] || c.slot <= minSlot {
			continue
		}
		s.slotUsed[c.slot] = true
		s.chosen[i] = c.slot
		s.search(i+1, total+c.score)
		s.chosen[i] = -1
		s.slotUsed[c.slot] = false
	}

	// Leaving the task unplaced is always an option.
	s.search(i+1, total)
}

// dependencyOrder returns task indices with in-batch dependencies moved
// ahead of their dependents, otherwise preserving input order.
func dependencyOrder(tasks []*domain.Task) []int {
	byID := make(map[string]int, len(tasks))
	for i, t := range tasks {
		byID[t.ID] = i
	}

	order := make([]int, 0, len(tasks))
	placed := make([]bool, len(tasks))
	var place func(i int)
	place = func(i int) {
		if placed[i] {
			return
		}
		placed[i] = true // marks before recursing, so a cycle cannot loop
		if dep := tasks[i].Dependency; dep != "" {
			if di, ok := byID[dep]; ok {
				place(di)
			}
		}
		order = append(order, i)
	}
	for i := range tasks {
		place(i)
	}
	return order
}

// feasible applies the hard filters for pairing a task with a slot.
func feasible(t *domain.Task, slot domain.Slot) bool {
	if t.Duration > slot.Duration {
		return false
	}

	if weekendBlockedCategories[t.Category] {
		switch slot.Start.Weekday() {
		case time.Saturday, time.Sunday:
			return false
		}
	}

	if t.Type == domain.TaskFixed {
		return timeutil.ClockOf(slot.Start) == t.FixedSlot
	}
	return slot.Accepts(t.Category)
}

// score values one placement. Keep in sync with the weight constants above.
func score(t *domain.Task, slot domain.Slot, slotIndex int) int {
	req := t.EnergyReq.Level()
	supply := slot.EnergySupply.Level()

	bonus := 0
	switch {
	case req == supply:
		bonus = energyBonusMatch
	case req > supply:
		bonus = energyBonusShort
	default:
		bonus = energyBonusExcess
	}

	return scoreBase + scorePriority*t.Priority + bonus - scoreSlotPenalty*slotIndex
}
