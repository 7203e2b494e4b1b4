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

// InterviewStore implements store.InterviewStore using PostgreSQL.
type InterviewStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *InterviewStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create persists a new interview template.
func (s *InterviewStore) Create(ctx context.Context, interview *models.Interview) error {
	if interview.ID == "" {
		interview.ID = uuid.New().String()
	}
	if interview.CreatedAt.IsZero() {
		interview.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO interviews (id, position, duration_seconds, trail_window_seconds,
			completed_candidates, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.conn().ExecContext(ctx, query,
		interview.ID,
		interview.Position,
		int64(interview.Duration.Seconds()),
		int64(interview.TrailWindow.Seconds()),
		pq.Array(interview.CompletedCandidates),
		interview.CreatedAt,
	)
	return err
}

// Get retrieves an interview by ID.
func (s *InterviewStore) Get(ctx context.Context, id string) (*models.Interview, error) {
	query := `
		SELECT id, position, duration_seconds, trail_window_seconds,
			completed_candidates, created_at
		FROM interviews WHERE id = $1
	`

	var iv models.Interview
	var durationSecs, trailSecs int64

	err := s.conn().QueryRowContext(ctx, query, id).Scan(
		&iv.ID, &iv.Position, &durationSecs, &trailSecs,
		pq.Array(&iv.CompletedCandidates), &iv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	iv.Duration = time.Duration(durationSecs) * time.Second
	iv.TrailWindow = time.Duration(trailSecs) * time.Second

	return &iv, nil
}

// AddCompletedCandidate appends the candidate email if not already present.
// The membership check lives in the UPDATE so concurrent completions cannot
// append the same candidate twice.
func (s *InterviewStore) AddCompletedCandidate(ctx context.Context, id, email string) (bool, error) {
	query := `
		UPDATE interviews
		SET completed_candidates = array_append(completed_candidates, $2)
		WHERE id = $1 AND NOT ($2 = ANY (completed_candidates))
	`

	result, err := s.conn().ExecContext(ctx, query, id, email)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
