package domain

import "time"

// CategoryConstant marks fixed personal blocks (sleep, meals, gym). They are
// written straight to the calendar and never given to the optimizer.
const CategoryConstant = "Constant"

// CategoryFree marks slots any flexible task may occupy.
const CategoryFree = "Free"

// Slot is a concrete dated block produced by expanding the week template.
// Slots are transient: produced for one plan run, never persisted.
type Slot struct {
	Start        time.Time
	End          time.Time
	Duration     int // minutes
	Category     string
	Label        string
	EnergySupply Energy
}

// IsConstant reports whether the slot is a constant block.
func (s Slot) IsConstant() bool {
	return s.Category == CategoryConstant
}

// Overlaps reports whether two slots share any time: a.start < b.end and
// a.end > b.start.
func (s Slot) Overlaps(other Slot) bool {
	return s.Start.Before(other.End) && s.End.After(other.Start)
}

// SameDay reports whether both slots start on the same calendar date.
func (s Slot) SameDay(other Slot) bool {
	ay, am, ad := s.Start.Date()
	by, bm, bd := other.Start.Date()
	return ay == by && am == bm && ad == bd
}

// Accepts reports whether the slot category admits a flexible task of the
// given category.
func (s Slot) Accepts(category string) bool {
	return s.Category == category || s.Category == CategoryFree
}
