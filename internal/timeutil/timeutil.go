// Package timeutil handles the local wall-clock to calendar-UTC conversion.
//
// All datetimes inside the planner are naive local wall-clock values. The
// downstream calendar applies the viewer offset on display, so persisting
// offset-adjusted UTC yields correct wall-clock rendering regardless of
// viewer.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ISOLayout is the timestamp format the external calendar stores.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// DefaultOffset is the local offset assumed when none is configured (IST).
const DefaultOffset = 5*time.Hour + 30*time.Minute

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return realClock{} }

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock { return fixedClock{t} }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// Converter converts between planner wall-clock time and calendar UTC.
type Converter struct {
	Offset time.Duration
	Clock  Clock
}

// NewConverter creates a Converter with the given local offset.
func NewConverter(offset time.Duration) *Converter {
	return &Converter{Offset: offset, Clock: realClock{}}
}

// LocalToUTCISO converts a naive local wall-clock time into the ISO string
// the calendar stores, by subtracting the configured offset.
func (c *Converter) LocalToUTCISO(local time.Time) string {
	return local.Add(-c.Offset).Format(ISOLayout)
}

// UTCISOToLocal parses a calendar ISO string back into naive local time.
func (c *Converter) UTCISOToLocal(iso string) (time.Time, error) {
	t, err := time.Parse(ISOLayout, iso)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse calendar timestamp %q: %w", iso, err)
	}
	return t.Add(c.Offset), nil
}

// NowUTCISO returns the current UTC time in calendar ISO format.
func (c *Converter) NowUTCISO() string {
	clock := c.Clock
	if clock == nil {
		clock = realClock{}
	}
	return clock.Now().UTC().Format(ISOLayout)
}

// NowLocal returns the current local wall-clock time.
func (c *Converter) NowLocal() time.Time {
	clock := c.Clock
	if clock == nil {
		clock = realClock{}
	}
	return clock.Now()
}

// ParseClock parses an "HH:MM" string into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock value %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock value %q: %w", s, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock value %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock value %q out of range", s)
	}
	return hour, minute, nil
}

// AtClock joins a date with an "HH:MM" time of day.
func AtClock(date time.Time, clock string) (time.Time, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, date.Location()), nil
}

// ClockOf formats the time-of-day of t as "HH:MM".
func ClockOf(t time.Time) string {
	return t.Format("15:04")
}
