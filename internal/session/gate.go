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

// DenyReason is a machine-readable code for a rejected join attempt.
type DenyReason string

// Deny reasons returned by the access gate.
const (
	DenySessionNotFound  DenyReason = "SESSION_NOT_FOUND"
	DenySessionCompleted DenyReason = "SESSION_COMPLETED"
	DenySessionExpired   DenyReason = "SESSION_EXPIRED"
	DenySessionCancelled DenyReason = "SESSION_CANCELLED"
	DenyTooEarly         DenyReason = "TOO_EARLY"
	DenyTooLate          DenyReason = "TOO_LATE"
	DenyUnauthorized     DenyReason = "UNAUTHORIZED"
	DenyLinkAlreadyUsed  DenyReason = "LINK_ALREADY_USED"
)

// Caller carries the optional verified identity and telemetry of a join
// request.
type Caller struct {
	// Email is the verified identity, empty when the request is anonymous.
	Email     string
	IPAddress string
	UserAgent string
}

// Decision is the tagged result of an access-gate evaluation. Expected
// business denials are carried here rather than as errors.
type Decision struct {
	Allowed bool
	Session *models.Session

	Reason DenyReason
	// MinutesUntil is populated for TOO_EARLY denials.
	MinutesUntil int
	// AvailableAt is populated for TOO_EARLY denials.
	AvailableAt time.Time
	// ExpiredAt is populated for TOO_LATE denials.
	ExpiredAt time.Time
}

func allow(sess *models.Session) Decision {
	return Decision{Allowed: true, Session: sess}
}

func deny(reason DenyReason, sess *models.Session) Decision {
	return Decision{Reason: reason, Session: sess}
}

// Gate decides whether a session token may be consumed right now and, on the
// first allowed evaluation, performs the single-use activation.
type Gate struct {
	store  store.Store
	logger *slog.Logger
}

// NewGate creates a new access gate.
func NewGate(s store.Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: s, logger: logger}
}

// Evaluate runs the gate's decision ladder for the token at the given time.
// Every invocation against a known session records a join attempt before the
// decision is returned, whatever the outcome. Errors are infrastructure
// failures only; business denials come back inside the Decision.
func (g *Gate) Evaluate(ctx context.Context, token string, now time.Time, caller Caller) (Decision, error) {
	sessions := g.store.Sessions()

	sess, err := sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return deny(DenySessionNotFound, nil), nil
		}
		return Decision{}, fmt.Errorf("loading session: %w", err)
	}

	if err := sessions.RecordJoinAttempt(ctx, token, now); err != nil && !errors.Is(err, store.ErrNotFound) {
		return Decision{}, fmt.Errorf("recording join attempt: %w", err)
	}

	if d, done := g.decide(sess, now, caller); done {
		return d, nil
	}

	// Pending, in window, authorized: claim the single-use activation. The
	// store's conditional update guarantees exactly one winner under
	// concurrent requests; losers see the session as already activated.
	activated, err := sessions.Activate(ctx, token, now, caller.IPAddress, caller.UserAgent)
	if err == nil {
		g.logger.Info("session activated",
			"session_id", activated.ID,
			"candidate_email", activated.CandidateEmail,
			"ip_address", caller.IPAddress,
		)
		return allow(activated), nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return Decision{}, fmt.Errorf("activating session: %w", err)
	}

	// Lost the race or the state moved under us; re-read and re-decide so the
	// caller gets an accurate denial.
	sess, err = sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return deny(DenySessionNotFound, nil), nil
		}
		return Decision{}, fmt.Errorf("reloading session: %w", err)
	}
	if d, done := g.decide(sess, now, caller); done {
		return d, nil
	}
	return deny(DenyLinkAlreadyUsed, sess), nil
}

// decide walks the denial ladder. It reports done=false only when the
// session is pending and eligible for activation.
func (g *Gate) decide(sess *models.Session, now time.Time, caller Caller) (Decision, bool) {
	switch sess.Status {
	case models.SessionStatusCompleted:
		return deny(DenySessionCompleted, sess), true
	case models.SessionStatusExpired:
		return deny(DenySessionExpired, sess), true
	case models.SessionStatusCancelled:
		return deny(DenySessionCancelled, sess), true
	}

	if now.Before(sess.AccessWindowStart) {
		d := deny(DenyTooEarly, sess)
		d.MinutesUntil = sess.MinutesUntilStart(now)
		d.AvailableAt = sess.AccessWindowStart
		return d, true
	}
	if now.After(sess.AccessWindowEnd) {
		d := deny(DenyTooLate, sess)
		d.ExpiredAt = sess.AccessWindowEnd
		return d, true
	}

	if caller.Email != "" && caller.Email != sess.CandidateEmail {
		return deny(DenyUnauthorized, sess), true
	}

	// The link is single-use: an active session with a recorded start must
	// resume through the heartbeat and status endpoints, not re-validation.
	if sess.Status == models.SessionStatusActive && sess.ActualStartTime != nil {
		return deny(DenyLinkAlreadyUsed, sess), true
	}

	return Decision{}, false
}
