// Package session implements the interview session core: issuance, the
// access gate, the lifecycle engine, and heartbeat tracking.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/airalabs/interview-core/internal/models"
	"github.com/airalabs/interview-core/internal/store"
	"github.com/airalabs/interview-core/pkg/config"
)

// Common errors returned by the issuer.
var (
	// ErrInvitationNotAccepted is returned when the invitation has not been
	// accepted with a concrete slot.
	ErrInvitationNotAccepted = errors.New("invitation not accepted")
	// ErrInterviewNotFound is returned when the interview template is missing.
	ErrInterviewNotFound = errors.New("interview not found")
)

// Issuer creates session records from accepted invitations.
type Issuer struct {
	store  store.Store
	cfg    config.SessionConfig
	logger *slog.Logger
}

// NewIssuer creates a new Issuer.
func NewIssuer(s store.Store, cfg config.SessionConfig, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{
		store:  s,
		cfg:    cfg,
		logger: logger,
	}
}

// Issue creates a session for an accepted invitation. Issuance is idempotent
// per invitation: if a session already exists, the existing session is
// returned so acceptance retries are safe.
func (i *Issuer) Issue(ctx context.Context, invitationID string) (*models.Session, error) {
	invitation, err := i.store.Invitations().Get(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("loading invitation: %w", err)
	}
	if !invitation.IsAccepted() {
		return nil, ErrInvitationNotAccepted
	}

	interview, err := i.store.Interviews().Get(ctx, invitation.InterviewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInterviewNotFound
		}
		return nil, fmt.Errorf("loading interview: %w", err)
	}

	sess, err := i.build(invitation, interview)
	if err != nil {
		return nil, err
	}

	if err := i.store.Sessions().Create(ctx, sess); err != nil {
		if errors.Is(err, store.ErrDuplicateSession) {
			existing, getErr := i.store.Sessions().GetByInvitation(ctx, invitationID)
			if getErr != nil {
				return nil, fmt.Errorf("loading existing session: %w", getErr)
			}
			i.logger.Info("session already issued for invitation",
				"invitation_id", invitationID,
				"session_id", existing.ID,
			)
			return existing, nil
		}
		return nil, fmt.Errorf("creating session: %w", err)
	}

	i.logger.Info("session issued",
		"session_id", sess.ID,
		"invitation_id", invitationID,
		"interview_id", interview.ID,
		"scheduled_start", sess.ScheduledStartTime,
		"window_start", sess.AccessWindowStart,
		"window_end", sess.AccessWindowEnd,
	)

	return sess, nil
}

func (i *Issuer) build(invitation *models.Invitation, interview *models.Interview) (*models.Session, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	trail := interview.TrailWindow
	if trail <= 0 {
		trail = i.cfg.DefaultTrailWindow
	}

	start := invitation.ChosenSlot.UTC()
	windowStart := start.Add(-i.cfg.LeadWindow)
	windowEnd := start.Add(trail)
	expiresAt := windowEnd.Add(i.cfg.RetentionBuffer)

	// The retention buffer is validated at config load, but a session whose
	// deletion horizon is not strictly after its window end would be garbage
	// collected while still reportable. Refuse to persist one.
	if !expiresAt.After(windowEnd) {
		return nil, fmt.Errorf("expiry horizon %v not after access window end %v", expiresAt, windowEnd)
	}

	return &models.Session{
		SessionToken:       token,
		InvitationID:       invitation.ID,
		InterviewID:        interview.ID,
		CandidateEmail:     invitation.CandidateEmail,
		CandidateName:      invitation.CandidateName,
		Position:           interview.Position,
		ScheduledStartTime: start,
		ScheduledEndTime:   start.Add(interview.Duration),
		AccessWindowStart:  windowStart,
		AccessWindowEnd:    windowEnd,
		ExpiresAt:          expiresAt,
		Status:             models.SessionStatusPending,
	}, nil
}
