package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/airalabs/interview-core/internal/models"
	"github.com/airalabs/interview-core/internal/store"
)

// InvitationStore implements store.InvitationStore using PostgreSQL.
type InvitationStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *InvitationStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create persists a new invitation.
func (s *InvitationStore) Create(ctx context.Context, invitation *models.Invitation) error {
	if invitation.ID == "" {
		invitation.ID = uuid.New().String()
	}
	if invitation.CreatedAt.IsZero() {
		invitation.CreatedAt = time.Now().UTC()
	}
	if invitation.Status == "" {
		invitation.Status = models.InvitationStatusPending
	}

	query := `
		INSERT INTO invitations (id, interview_id, candidate_email, candidate_name,
			offered_slots, chosen_slot, status, expires_at, accepted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.conn().ExecContext(ctx, query,
		invitation.ID,
		invitation.InterviewID,
		invitation.CandidateEmail,
		invitation.CandidateName,
		pq.Array(invitation.OfferedSlots),
		invitation.ChosenSlot,
		string(invitation.Status),
		invitation.ExpiresAt,
		invitation.AcceptedAt,
		invitation.CreatedAt,
	)
	return err
}

// Get retrieves an invitation by ID.
func (s *InvitationStore) Get(ctx context.Context, id string) (*models.Invitation, error) {
	query := `
		SELECT id, interview_id, candidate_email, candidate_name,
			offered_slots, chosen_slot, status, expires_at, accepted_at, created_at
		FROM invitations WHERE id = $1
	`

	var inv models.Invitation
	var status string
	var chosenSlot, acceptedAt sql.NullTime

	err := s.conn().QueryRowContext(ctx, query, id).Scan(
		&inv.ID, &inv.InterviewID, &inv.CandidateEmail, &inv.CandidateName,
		pq.Array(&inv.OfferedSlots), &chosenSlot, &status, &inv.ExpiresAt,
		&acceptedAt, &inv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	inv.Status = models.InvitationStatus(status)
	if chosenSlot.Valid {
		inv.ChosenSlot = &chosenSlot.Time
	}
	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}

	return &inv, nil
}

// Accept marks the invitation accepted with the chosen slot. The status guard
// keeps a second acceptance from moving the slot.
func (s *InvitationStore) Accept(ctx context.Context, id string, slot time.Time, now time.Time) error {
	query := `
		UPDATE invitations
		SET status = 'accepted', chosen_slot = $2, accepted_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := s.conn().ExecContext(ctx, query, id, slot, now)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrConflict
	}
	return nil
}
