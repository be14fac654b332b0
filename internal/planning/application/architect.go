// Package application holds the planning services: batch selection,
// slot assignment, and the lookahead planner that drives them.
package application

import (
	"log/slog"

	"github.com/samber/lo"

	"github.com/vibeos/vibecore/internal/planning/domain"
)

// Architect selects the daily work batch from the pending backlog,
// drip-feeding subjects so no single one floods a day.
type Architect struct {
	limitPerSubject int
	logger          *slog.Logger
}

// NewArchitect creates an architect. A limit below 1 is clamped to 1.
func NewArchitect(limitPerSubject int, logger *slog.Logger) *Architect {
	if limitPerSubject < 1 {
		limitPerSubject = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Architect{limitPerSubject: limitPerSubject, logger: logger}
}

// BalancedBatch keeps at most limitPerSubject tasks per pacing key and
// returns the rest as the deferred remainder, both preserving the input
// order. Pendings arrive priority-sorted, so ties within a key resolve to
// the highest-priority tasks.
func (a *Architect) BalancedBatch(pendings []*domain.Task) (batch, deferred []*domain.Task) {
	taken := make(map[string]int, len(pendings))
	batch, deferred = lo.FilterReject(pendings, func(t *domain.Task, _ int) bool {
		key := t.PacingKey()
		if taken[key] >= a.limitPerSubject {
			return false
		}
		taken[key]++
		return true
	})

	if len(deferred) > 0 {
		a.logger.Debug("drip-feed deferred tasks",
			"pending", len(pendings), "batch", len(batch), "deferred", len(deferred))
	}
	return batch, deferred
}
