package domain

import "time"

// Assignment is the optimizer's placement of one task into one slot. The
// task occupies the head of the slot: [slot.start, slot.start+duration).
type Assignment struct {
	TaskID       string
	Name         string
	Start        time.Time
	End          time.Time
	SlotIndex    int
	EnergySupply Energy
}

// HistoryAction names a reconciler history record.
type HistoryAction string

const (
	// ActionMoved records a calendar event moved by the user.
	ActionMoved HistoryAction = "MOVED"
)
