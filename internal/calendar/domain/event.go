// Package domain defines the external calendar entities VibeCore reads and
// writes. The calendar store is owned by the downstream calendar UI; tasks
// reference events by ID but never own them.
package domain

// Feed is a calendar feed grouping events. VibeCore writes into a single
// local feed (type LOCAL) it creates on first use.
type Feed struct {
	ID      string
	Name    string
	Type    string
	Enabled bool
	UserID  string
}

// Event is one calendar entry. Start and End are ISO-8601 Zulu strings with
// the local offset pre-applied (see timeutil).
type Event struct {
	ID        string
	FeedID    string
	Title     string
	Start     string
	End       string
	AllDay    bool
	CreatedAt string
	UpdatedAt string
}
