package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/airalabs/interview-core/internal/models"
	"github.com/airalabs/interview-core/internal/store"
)

// Common errors returned by the lifecycle engine.
var (
	// ErrSessionNotFound is returned when the session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidState is returned when an operation is not permitted in the
	// session's current state.
	ErrInvalidState = errors.New("operation not valid in current session state")
	// ErrInvalidReason is returned for an unknown completion reason.
	ErrInvalidReason = errors.New("unknown completion reason")
)

// Lifecycle drives session state transitions after activation: completion,
// cancellation, and the expiry of never-joined sessions.
type Lifecycle struct {
	store  store.Store
	logger *slog.Logger
}

// NewLifecycle creates a new lifecycle engine.
func NewLifecycle(s store.Store, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{store: s, logger: logger}
}

// Complete transitions an active session to completed. Calling it on an
// already-completed session is a no-op returning the original completion
// metadata. On a first completion the owning interview's completed-candidates
// set is updated, at most once per candidate.
func (l *Lifecycle) Complete(ctx context.Context, token string, now time.Time, reason models.CompletionReason) (*models.Session, error) {
	if !reason.IsValid() {
		return nil, ErrInvalidReason
	}

	sessions := l.store.Sessions()

	sess, err := sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	completed, err := sessions.Complete(ctx, sess.ID, now, reason)
	if err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("completing session: %w", err)
		}
		// Conditional update matched nothing: either an idempotent repeat on
		// a completed session, or a genuinely invalid state.
		current, getErr := sessions.GetByToken(ctx, token)
		if getErr != nil {
			return nil, fmt.Errorf("reloading session: %w", getErr)
		}
		if current.Status == models.SessionStatusCompleted {
			return current, nil
		}
		return nil, ErrInvalidState
	}

	l.logger.Info("session completed",
		"session_id", completed.ID,
		"reason", string(reason),
		"candidate_email", completed.CandidateEmail,
	)

	l.notifyInterview(ctx, completed)

	return completed, nil
}

// notifyInterview records the candidate in the interview's completed set.
// The session itself is already completed; a failure here is logged and left
// for reconciliation rather than unwinding the transition.
func (l *Lifecycle) notifyInterview(ctx context.Context, sess *models.Session) {
	added, err := l.store.Interviews().AddCompletedCandidate(ctx, sess.InterviewID, sess.CandidateEmail)
	if err != nil {
		l.logger.Error("failed to update interview completed set",
			"session_id", sess.ID,
			"interview_id", sess.InterviewID,
			"error", err,
		)
		return
	}
	if added {
		l.logger.Info("candidate added to interview completed set",
			"interview_id", sess.InterviewID,
			"candidate_email", sess.CandidateEmail,
		)
	}
}

// Cancel transitions a pending or active session to cancelled. Cancelling an
// already-cancelled session is a no-op.
func (l *Lifecycle) Cancel(ctx context.Context, id string, now time.Time) (*models.Session, error) {
	cancelled, err := l.store.Sessions().Cancel(ctx, id, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		if errors.Is(err, store.ErrConflict) {
			current, getErr := l.store.Sessions().GetByID(ctx, id)
			if getErr != nil {
				return nil, fmt.Errorf("reloading session: %w", getErr)
			}
			if current.Status == models.SessionStatusCancelled {
				return current, nil
			}
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("cancelling session: %w", err)
	}

	l.logger.Info("session cancelled", "session_id", cancelled.ID)
	return cancelled, nil
}

// ExpireOverdue moves pending sessions whose window has closed to expired.
// It returns the number of sessions transitioned.
func (l *Lifecycle) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	expired, err := l.store.Sessions().ExpireOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expiring sessions: %w", err)
	}
	for _, sess := range expired {
		l.logger.Info("session expired unused",
			"session_id", sess.ID,
			"candidate_email", sess.CandidateEmail,
			"window_end", sess.AccessWindowEnd,
		)
	}
	return len(expired), nil
}

// AutoCompleteOverdue completes active sessions whose access window has
// closed, with reason auto_complete. Safe under concurrent sweeps: the
// completion is the same conditional update the explicit path uses.
func (l *Lifecycle) AutoCompleteOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := l.store.Sessions().ListOverdueActive(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("listing overdue sessions: %w", err)
	}

	var completed int
	for _, sess := range overdue {
		if _, err := l.store.Sessions().Complete(ctx, sess.ID, now, models.CompletionAutoComplete); err != nil {
			if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
				continue
			}
			l.logger.Error("failed to auto-complete session",
				"session_id", sess.ID,
				"error", err,
			)
			continue
		}
		completed++
	}
	return completed, nil
}
