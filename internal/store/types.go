// Package store provides SQLite-based action history storage for rxoverlay.
package store

// ActionRecord is one row of the action history: a dispatched action,
// the window it targeted, and how it turned out.
type ActionRecord struct {
	ID          int64
	AtNs        int64
	Action      string
	TargetTitle string
	Outcome     string
	Detail      string
}

// Stats summarizes the history table for status reporting.
type Stats struct {
	Total    int64
	OldestNs int64
	NewestNs int64
}
