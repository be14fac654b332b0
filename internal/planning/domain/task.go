// Package domain defines the planning data model: projects, tasks, slots,
// and optimizer assignments.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusScheduled Status = "SCHEDULED"
	StatusMissed    Status = "MISSED"
	StatusBlocked   Status = "BLOCKED"
	StatusDone      Status = "DONE"
)

// TaskType distinguishes tasks the optimizer may place freely from tasks
// pinned to an exact time of day.
type TaskType string

const (
	TaskFlexible TaskType = "Flexible"
	TaskFixed    TaskType = "Fixed"
)

// Energy represents an energy level, required by a task or supplied by a
// template block.
type Energy string

const (
	EnergyLow    Energy = "Low"
	EnergyMedium Energy = "Medium"
	EnergyHigh   Energy = "High"
	EnergyAny    Energy = "Any"
)

// Level maps an energy value onto the 1..3 scale the optimizer scores with.
// Any and unknown values count as Medium.
func (e Energy) Level() int {
	switch e {
	case EnergyLow:
		return 1
	case EnergyHigh:
		return 3
	default:
		return 2
	}
}

// Task is a unit of work pulled from the backlog and placed into a slot.
type Task struct {
	ID              string
	ProjectID       string
	Name            string
	Status          Status
	Category        string
	Priority        int
	Duration        int // planned minutes
	ActualDuration  *int
	EnergyReq       Energy
	Type            TaskType
	FixedSlot       string // "HH:MM", Fixed tasks only
	Dependency      string // task ID this task waits on
	DeadlineOffset  int
	Notes           string
	ScheduledStart  string // calendar ISO, set iff Status == StatusScheduled
	CalendarEventID string // set iff Status == StatusScheduled
	SoftDeleted     bool
	IdempotencyKey  string
	CreatedAt       time.Time
}

// NewTask creates a task with backlog defaults: 60 minutes, medium energy,
// flexible, pending.
func NewTask(projectID, name string) *Task {
	return &Task{
		ID:             uuid.New().String(),
		ProjectID:      projectID,
		Name:           name,
		Status:         StatusPending,
		Duration:       60,
		EnergyReq:      EnergyMedium,
		Type:           TaskFlexible,
		IdempotencyKey: uuid.New().String(),
		CreatedAt:      time.Now().UTC(),
	}
}

// Subject derives the drip-feed subject from the task name: the first word
// when the name has several, "Gen" otherwise.
func (t *Task) Subject() string {
	for i := 0; i < len(t.Name); i++ {
		if t.Name[i] == ' ' {
			return t.Name[:i]
		}
	}
	return "Gen"
}

// PacingKey groups tasks that compete for the same daily drip-feed quota.
func (t *Task) PacingKey() string {
	return t.Category + "_" + t.Subject()
}
