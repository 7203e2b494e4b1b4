// Package models provides data structures for the interview platform.
package models

import (
	"time"
)

// SessionStatus represents the lifecycle state of an interview session.
// The origin schema carried near-duplicate labels ("scheduled", "in-progress");
// only these five canonical states are persisted.
type SessionStatus string

const (
	// SessionStatusPending indicates the session was issued but never joined.
	SessionStatusPending SessionStatus = "pending"
	// SessionStatusActive indicates the candidate has joined and the
	// interview is in progress.
	SessionStatusActive SessionStatus = "active"
	// SessionStatusCompleted indicates the interview finished.
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusExpired indicates the access window closed without a join.
	SessionStatusExpired SessionStatus = "expired"
	// SessionStatusCancelled indicates HR cancelled the session.
	SessionStatusCancelled SessionStatus = "cancelled"
)

// CompletionReason records why a session reached a terminal outcome.
type CompletionReason string

const (
	// CompletionManualEnd means the candidate ended the interview explicitly.
	CompletionManualEnd CompletionReason = "manual_end"
	// CompletionHeartbeatTimeout means the reaper closed an abandoned session.
	CompletionHeartbeatTimeout CompletionReason = "heartbeat_timeout"
	// CompletionAutoComplete means the end-of-window sweep closed the session.
	CompletionAutoComplete CompletionReason = "auto_complete"
	// CompletionExpired means the session expired without ever being joined.
	CompletionExpired CompletionReason = "expired"
)

// Session is a one-time-use, time-boxed interview attempt.
type Session struct {
	ID           string `json:"id"`
	SessionToken string `json:"session_token"` // Unguessable public handle
	InvitationID string `json:"invitation_id"`
	InterviewID  string `json:"interview_id"`

	// Denormalized for reminder queries without joins.
	CandidateEmail string `json:"candidate_email"`
	CandidateName  string `json:"candidate_name"`
	Position       string `json:"position"`

	ScheduledStartTime time.Time `json:"scheduled_start_time"`
	ScheduledEndTime   time.Time `json:"scheduled_end_time"`
	AccessWindowStart  time.Time `json:"access_window_start"`
	AccessWindowEnd    time.Time `json:"access_window_end"`
	// ExpiresAt is the hard deletion horizon, strictly after AccessWindowEnd.
	ExpiresAt time.Time `json:"expires_at"`

	ActualStartTime *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime   *time.Time `json:"actual_end_time,omitempty"`

	Status           SessionStatus    `json:"status"`
	CompletionReason CompletionReason `json:"completion_reason,omitempty"`

	// Captured at first activation.
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// Incremented on every access-gate invocation regardless of outcome.
	JoinAttempts    int        `json:"join_attempts"`
	LastJoinAttempt *time.Time `json:"last_join_attempt,omitempty"`

	LastHeartbeat  *time.Time `json:"last_heartbeat,omitempty"`
	HeartbeatCount int        `json:"heartbeat_count"`

	// One-way idempotency latches for the reminder scheduler.
	ReminderSent2Days bool `json:"reminder_sent_2_days"`
	ReminderSent1Day  bool `json:"reminder_sent_1_day"`
	ReminderSent30Min bool `json:"reminder_sent_30_min"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// String returns the string representation of the session status.
func (s SessionStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the five canonical states.
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusPending, SessionStatusActive, SessionStatusCompleted,
		SessionStatusExpired, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no transition leaves this status.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusExpired, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionStatusPending:
		return next == SessionStatusActive || next == SessionStatusExpired || next == SessionStatusCancelled
	case SessionStatusActive:
		return next == SessionStatusCompleted || next == SessionStatusCancelled
	default:
		return false
	}
}

// ValidSessionStatuses returns all canonical session statuses.
func ValidSessionStatuses() []SessionStatus {
	return []SessionStatus{
		SessionStatusPending,
		SessionStatusActive,
		SessionStatusCompleted,
		SessionStatusExpired,
		SessionStatusCancelled,
	}
}

// IsValid returns true if the reason is a known completion reason.
func (r CompletionReason) IsValid() bool {
	switch r {
	case CompletionManualEnd, CompletionHeartbeatTimeout, CompletionAutoComplete, CompletionExpired:
		return true
	default:
		return false
	}
}

// InWindow reports whether now falls inside the access window (inclusive).
func (s *Session) InWindow(now time.Time) bool {
	return !now.Before(s.AccessWindowStart) && !now.After(s.AccessWindowEnd)
}

// CanJoin reports whether the link could be consumed right now.
func (s *Session) CanJoin(now time.Time) bool {
	return s.Status == SessionStatusPending && s.InWindow(now)
}

// MinutesUntilStart returns the whole minutes remaining until the access
// window opens, rounded up. Zero once the window is open.
func (s *Session) MinutesUntilStart(now time.Time) int {
	if !now.Before(s.AccessWindowStart) {
		return 0
	}
	d := s.AccessWindowStart.Sub(now)
	mins := int(d / time.Minute)
	if d%time.Minute != 0 {
		mins++
	}
	return mins
}

// IsStale reports whether an active session has gone silent for longer than
// timeout. A session with no heartbeat recorded yet is never stale: it may
// have been activated an instant ago, before the first client heartbeat.
func (s *Session) IsStale(now time.Time, timeout time.Duration) bool {
	if s.Status != SessionStatusActive {
		return false
	}
	if s.LastHeartbeat == nil {
		return false
	}
	return now.Sub(*s.LastHeartbeat) > timeout
}

// ReminderBucket identifies one of the fixed lookahead reminder windows.
type ReminderBucket string

const (
	// ReminderBucket2Days fires roughly two days before the scheduled start.
	ReminderBucket2Days ReminderBucket = "2_days"
	// ReminderBucket1Day fires roughly one day before the scheduled start.
	ReminderBucket1Day ReminderBucket = "1_day"
	// ReminderBucket30Min fires thirty minutes before the scheduled start.
	ReminderBucket30Min ReminderBucket = "30_min"
)

// Offset returns the lookahead distance from now to the start of the bucket.
func (b ReminderBucket) Offset() time.Duration {
	switch b {
	case ReminderBucket2Days:
		return 48 * time.Hour
	case ReminderBucket1Day:
		return 24 * time.Hour
	case ReminderBucket30Min:
		return 30 * time.Minute
	default:
		return 0
	}
}

// IsValid returns true if the bucket is one of the three known buckets.
func (b ReminderBucket) IsValid() bool {
	switch b {
	case ReminderBucket2Days, ReminderBucket1Day, ReminderBucket30Min:
		return true
	default:
		return false
	}
}

// AllReminderBuckets returns the buckets in descending lookahead order.
func AllReminderBuckets() []ReminderBucket {
	return []ReminderBucket{ReminderBucket2Days, ReminderBucket1Day, ReminderBucket30Min}
}

// ReminderSent reports whether the flag for the given bucket is latched.
func (s *Session) ReminderSent(b ReminderBucket) bool {
	switch b {
	case ReminderBucket2Days:
		return s.ReminderSent2Days
	case ReminderBucket1Day:
		return s.ReminderSent1Day
	case ReminderBucket30Min:
		return s.ReminderSent30Min
	default:
		return false
	}
}
