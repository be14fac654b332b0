package domain

import "github.com/google/uuid"

// Project groups tasks by course or project and carries the defaults tasks
// inherit.
type Project struct {
	ID       string
	Name     string
	Category string
	Priority int
	Color    string
	Tags     []string
	// RealityFactor is a duration calibration multiplier. Stored but not
	// yet consumed by the optimizer.
	RealityFactor float64
}

// NewProject creates a project with ingestion defaults.
func NewProject(name string) *Project {
	return &Project{
		ID:            uuid.New().String(),
		Name:          name,
		Category:      "General",
		Priority:      1,
		Color:         "#FFFFFF",
		RealityFactor: 1.0,
	}
}
