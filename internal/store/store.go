// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/airalabs/interview-core/internal/models"
)

// Common errors returned by store operations.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateSession is returned when a session already exists for an
	// invitation.
	ErrDuplicateSession = errors.New("session already exists for invitation")
	// ErrConflict is returned when a conditional update matched no rows
	// because the record was not in the required state.
	ErrConflict = errors.New("record not in required state")
)

// SessionStore defines operations for interview session records.
// Every guarded transition is a single conditional update at the storage
// layer; callers never read-then-write around a state change.
type SessionStore interface {
	// Create persists a new session. Returns ErrDuplicateSession if a
	// session already exists for the invitation.
	Create(ctx context.Context, session *models.Session) error
	// GetByToken retrieves a session by its public token.
	// Returns ErrNotFound if no such session exists.
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	// GetByID retrieves a session by its internal ID.
	GetByID(ctx context.Context, id string) (*models.Session, error)
	// GetByInvitation retrieves the session issued for an invitation.
	GetByInvitation(ctx context.Context, invitationID string) (*models.Session, error)
	// ListByEmail retrieves all sessions for a candidate email.
	ListByEmail(ctx context.Context, email string) ([]*models.Session, error)
	// ListActive retrieves all sessions currently in the active state.
	ListActive(ctx context.Context) ([]*models.Session, error)

	// Activate atomically transitions a pending session to active, recording
	// the actual start time and caller telemetry. Returns ErrConflict if the
	// session was not pending (the caller lost the activation race or the
	// session is terminal), ErrNotFound if the token is unknown.
	Activate(ctx context.Context, token string, now time.Time, ip, userAgent string) (*models.Session, error)
	// Complete atomically transitions an active session to completed.
	// Returns ErrConflict if the session was not active.
	Complete(ctx context.Context, id string, now time.Time, reason models.CompletionReason) (*models.Session, error)
	// Cancel transitions a pending or active session to cancelled.
	Cancel(ctx context.Context, id string, now time.Time) (*models.Session, error)
	// ExpireOverdue transitions pending sessions whose access window closed
	// to expired. Returns the sessions it transitioned.
	ExpireOverdue(ctx context.Context, now time.Time) ([]*models.Session, error)
	// ListOverdueActive retrieves active sessions whose access window has
	// closed, for the auto-complete sweep.
	ListOverdueActive(ctx context.Context, now time.Time) ([]*models.Session, error)

	// RecordJoinAttempt increments the join counter and stamps the attempt
	// time, regardless of session state.
	RecordJoinAttempt(ctx context.Context, token string, now time.Time) error
	// RecordHeartbeat updates liveness fields for an active session and
	// returns the new heartbeat count. Returns ErrConflict if the session is
	// not active.
	RecordHeartbeat(ctx context.Context, token string, now time.Time) (int, error)

	// ListPendingReminders retrieves pending sessions whose scheduled start
	// falls in [from, to) and whose flag for the bucket is unset.
	ListPendingReminders(ctx context.Context, bucket models.ReminderBucket, from, to time.Time) ([]*models.Session, error)
	// MarkReminderSent latches the reminder flag for the bucket. Returns
	// true if this call performed the latch, false if it was already set.
	MarkReminderSent(ctx context.Context, id string, bucket models.ReminderBucket) (bool, error)

	// DeleteExpired physically removes sessions past their deletion horizon,
	// independent of logical status. Returns the number removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// InvitationStore defines operations for interview invitations.
type InvitationStore interface {
	// Create persists a new invitation.
	Create(ctx context.Context, invitation *models.Invitation) error
	// Get retrieves an invitation by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*models.Invitation, error)
	// Accept marks the invitation accepted with the chosen slot.
	Accept(ctx context.Context, id string, slot time.Time, now time.Time) error
}

// InterviewStore defines operations for interview templates.
type InterviewStore interface {
	// Create persists a new interview template.
	Create(ctx context.Context, interview *models.Interview) error
	// Get retrieves an interview by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*models.Interview, error)
	// AddCompletedCandidate appends the candidate email to the interview's
	// completed set if not already present. Returns true if appended.
	AddCompletedCandidate(ctx context.Context, id, email string) (bool, error)
}

// Store is the main interface for database operations.
type Store interface {
	// Sessions returns the SessionStore for session operations.
	Sessions() SessionStore
	// Invitations returns the InvitationStore for invitation operations.
	Invitations() InvitationStore
	// Interviews returns the InterviewStore for interview template operations.
	Interviews() InterviewStore

	// WithTx executes the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Close closes the underlying connection.
	Close() error
}
