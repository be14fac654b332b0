// Package template loads the weekly template and expands it into concrete
// dated slots for the planner.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/vibeos/vibecore/internal/planning/domain"
)

// ErrConfig wraps template configuration failures: missing file, malformed
// JSON, unknown current mode.
var ErrConfig = errors.New("week template config error")

// Block is one recurring window in the weekly template.
type Block struct {
	Start        string        `json:"start"` // "HH:MM"
	End          string        `json:"end"`   // "HH:MM"
	Category     string        `json:"category"`
	Label        string        `json:"label,omitempty"`
	EnergySupply domain.Energy `json:"energy_supply,omitempty"`
	Notes        string        `json:"notes,omitempty"`
}

// DaySchedule is either a list of blocks or the name of another weekday to
// copy (resolved with a single hop, never transitively).
type DaySchedule struct {
	Blocks []Block
	Ref    string
}

// UnmarshalJSON accepts either a JSON array of blocks or a weekday string.
func (d *DaySchedule) UnmarshalJSON(data []byte) error {
	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		d.Ref = ref
		return nil
	}
	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("day schedule must be a block list or weekday name: %w", err)
	}
	d.Blocks = blocks
	return nil
}

// IsRef reports whether the schedule points at another weekday.
func (d DaySchedule) IsRef() bool { return d.Ref != "" }

// WeekTemplate is the root template document.
type WeekTemplate struct {
	CurrentMode string                            `json:"current_mode"`
	Modes       map[string]map[string]DaySchedule `json:"modes"`
}

// ActiveSchedule resolves the weekday map for the current mode.
func (wt *WeekTemplate) ActiveSchedule() (map[string]DaySchedule, error) {
	schedule, ok := wt.Modes[wt.CurrentMode]
	if !ok {
		return nil, fmt.Errorf("%w: unknown current_mode %q", ErrConfig, wt.CurrentMode)
	}
	return schedule, nil
}

// Load reads a week template from disk.
func Load(path string) (*WeekTemplate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}

	var wt WeekTemplate
	if err := json.Unmarshal(raw, &wt); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
	}

	if wt.CurrentMode == "" {
		return nil, fmt.Errorf("%w: %s has no current_mode", ErrConfig, path)
	}
	if _, ok := wt.Modes[wt.CurrentMode]; !ok {
		return nil, fmt.Errorf("%w: current_mode %q not present in modes", ErrConfig, wt.CurrentMode)
	}

	return &wt, nil
}
