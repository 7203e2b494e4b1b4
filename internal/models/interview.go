package models

import (
	"time"
)

// Interview is the template a session is issued against. It supplies the
// interview duration, the window-width policy, and position metadata, and
// accumulates the set of candidates who completed it.
type Interview struct {
	ID       string `json:"id"`
	Position string `json:"position"`
	// Duration is the scheduled length of the interview.
	Duration time.Duration `json:"duration"`
	// TrailWindow is how long after the scheduled start the join link stays
	// valid. Zero means the service default applies.
	TrailWindow time.Duration `json:"trail_window"`
	// CompletedCandidates holds the emails of candidates whose sessions
	// completed. Appends are at-most-once per candidate.
	CompletedCandidates []string  `json:"completed_candidates"`
	CreatedAt           time.Time `json:"created_at"`
}

// HasCompleted reports whether the candidate already appears in the
// completed set.
func (i *Interview) HasCompleted(email string) bool {
	for _, c := range i.CompletedCandidates {
		if c == email {
			return true
		}
	}
	return false
}
