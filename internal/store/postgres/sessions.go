package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/airalabs/interview-core/internal/models"
	"github.com/airalabs/interview-core/internal/store"
)

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *SessionStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const sessionColumns = `
	id, session_token, invitation_id, interview_id,
	candidate_email, candidate_name, position,
	scheduled_start_time, scheduled_end_time,
	access_window_start, access_window_end, expires_at,
	actual_start_time, actual_end_time,
	status, completion_reason, ip_address, user_agent,
	join_attempts, last_join_attempt, last_heartbeat, heartbeat_count,
	reminder_sent_2_days, reminder_sent_1_day, reminder_sent_30_min,
	created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var sess models.Session
	var status, reason string
	var actualStart, actualEnd, lastJoin, lastHeartbeat sql.NullTime

	err := row.Scan(
		&sess.ID, &sess.SessionToken, &sess.InvitationID, &sess.InterviewID,
		&sess.CandidateEmail, &sess.CandidateName, &sess.Position,
		&sess.ScheduledStartTime, &sess.ScheduledEndTime,
		&sess.AccessWindowStart, &sess.AccessWindowEnd, &sess.ExpiresAt,
		&actualStart, &actualEnd,
		&status, &reason, &sess.IPAddress, &sess.UserAgent,
		&sess.JoinAttempts, &lastJoin, &lastHeartbeat, &sess.HeartbeatCount,
		&sess.ReminderSent2Days, &sess.ReminderSent1Day, &sess.ReminderSent30Min,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sess.Status = models.SessionStatus(status)
	if !sess.Status.IsValid() {
		return nil, fmt.Errorf("unknown session status %q", status)
	}
	sess.CompletionReason = models.CompletionReason(reason)
	if actualStart.Valid {
		sess.ActualStartTime = &actualStart.Time
	}
	if actualEnd.Valid {
		sess.ActualEndTime = &actualEnd.Time
	}
	if lastJoin.Valid {
		sess.LastJoinAttempt = &lastJoin.Time
	}
	if lastHeartbeat.Valid {
		sess.LastHeartbeat = &lastHeartbeat.Time
	}

	return &sess, nil
}

// Create persists a new session.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}
	if session.Status == "" {
		session.Status = models.SessionStatusPending
	}

	query := `
		INSERT INTO sessions (
			id, session_token, invitation_id, interview_id,
			candidate_email, candidate_name, position,
			scheduled_start_time, scheduled_end_time,
			access_window_start, access_window_end, expires_at,
			status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.conn().ExecContext(ctx, query,
		session.ID,
		session.SessionToken,
		session.InvitationID,
		session.InterviewID,
		session.CandidateEmail,
		session.CandidateName,
		session.Position,
		session.ScheduledStartTime,
		session.ScheduledEndTime,
		session.AccessWindowStart,
		session.AccessWindowEnd,
		session.ExpiresAt,
		string(session.Status),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicateSession
	}
	return err
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetByToken retrieves a session by its public token.
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	query := `SELECT` + sessionColumns + ` FROM sessions WHERE session_token = $1`

	sess, err := scanSession(s.conn().QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return sess, err
}

// GetByID retrieves a session by its internal ID.
func (s *SessionStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT` + sessionColumns + ` FROM sessions WHERE id = $1`

	sess, err := scanSession(s.conn().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return sess, err
}

// GetByInvitation retrieves the session issued for an invitation.
func (s *SessionStore) GetByInvitation(ctx context.Context, invitationID string) (*models.Session, error) {
	query := `SELECT` + sessionColumns + ` FROM sessions WHERE invitation_id = $1`

	sess, err := scanSession(s.conn().QueryRowContext(ctx, query, invitationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return sess, err
}

// ListByEmail retrieves all sessions for a candidate email.
func (s *SessionStore) ListByEmail(ctx context.Context, email string) ([]*models.Session, error) {
	query := `SELECT` + sessionColumns + `
		FROM sessions WHERE candidate_email = $1
		ORDER BY scheduled_start_time DESC`

	return s.list(ctx, query, email)
}

// ListActive retrieves all sessions currently in the active state.
func (s *SessionStore) ListActive(ctx context.Context) ([]*models.Session, error) {
	query := `SELECT` + sessionColumns + ` FROM sessions WHERE status = 'active'`
	return s.list(ctx, query)
}

func (s *SessionStore) list(ctx context.Context, query string, args ...any) ([]*models.Session, error) {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Activate atomically transitions a pending session to active.
// The status guard in the WHERE clause is what makes concurrent activation
// safe: exactly one caller's UPDATE matches the pending row.
func (s *SessionStore) Activate(ctx context.Context, token string, now time.Time, ip, userAgent string) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'active', actual_start_time = $2,
		    ip_address = $3, user_agent = $4, updated_at = $2
		WHERE session_token = $1 AND status = 'pending'
		RETURNING` + sessionColumns

	sess, err := scanSession(s.conn().QueryRowContext(ctx, query, token, now, ip, userAgent))
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish "lost the race / wrong state" from "unknown token".
		if _, getErr := s.GetByToken(ctx, token); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrConflict
	}
	return sess, err
}

// Complete atomically transitions an active session to completed.
func (s *SessionStore) Complete(ctx context.Context, id string, now time.Time, reason models.CompletionReason) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'completed', actual_end_time = $2,
		    completion_reason = $3, updated_at = $2
		WHERE id = $1 AND status = 'active'
		RETURNING` + sessionColumns

	sess, err := scanSession(s.conn().QueryRowContext(ctx, query, id, now, string(reason)))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if checkErr := s.conn().QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists); checkErr != nil {
			return nil, checkErr
		}
		if !exists {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrConflict
	}
	return sess, err
}

// Cancel transitions a pending or active session to cancelled.
func (s *SessionStore) Cancel(ctx context.Context, id string, now time.Time) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'cancelled', updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'active')
		RETURNING` + sessionColumns

	sess, err := scanSession(s.conn().QueryRowContext(ctx, query, id, now))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if checkErr := s.conn().QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists); checkErr != nil {
			return nil, checkErr
		}
		if !exists {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrConflict
	}
	return sess, err
}

// ExpireOverdue transitions pending sessions whose access window closed.
func (s *SessionStore) ExpireOverdue(ctx context.Context, now time.Time) ([]*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'expired', completion_reason = 'expired', updated_at = $1
		WHERE status = 'pending' AND access_window_end < $1
		RETURNING` + sessionColumns

	return s.list(ctx, query, now)
}

// ListOverdueActive retrieves active sessions whose access window has closed.
func (s *SessionStore) ListOverdueActive(ctx context.Context, now time.Time) ([]*models.Session, error) {
	query := `SELECT` + sessionColumns + `
		FROM sessions WHERE status = 'active' AND access_window_end < $1`
	return s.list(ctx, query, now)
}

// RecordJoinAttempt increments the join counter for any known session.
func (s *SessionStore) RecordJoinAttempt(ctx context.Context, token string, now time.Time) error {
	query := `
		UPDATE sessions
		SET join_attempts = join_attempts + 1, last_join_attempt = $2, updated_at = $2
		WHERE session_token = $1`

	result, err := s.conn().ExecContext(ctx, query, token, now)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RecordHeartbeat updates liveness fields for an active session.
func (s *SessionStore) RecordHeartbeat(ctx context.Context, token string, now time.Time) (int, error) {
	query := `
		UPDATE sessions
		SET last_heartbeat = $2, heartbeat_count = heartbeat_count + 1, updated_at = $2
		WHERE session_token = $1 AND status = 'active'
		RETURNING heartbeat_count`

	var count int
	err := s.conn().QueryRowContext(ctx, query, token, now).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetByToken(ctx, token); getErr != nil {
			return 0, getErr
		}
		return 0, store.ErrConflict
	}
	return count, err
}

func reminderColumn(bucket models.ReminderBucket) (string, error) {
	switch bucket {
	case models.ReminderBucket2Days:
		return "reminder_sent_2_days", nil
	case models.ReminderBucket1Day:
		return "reminder_sent_1_day", nil
	case models.ReminderBucket30Min:
		return "reminder_sent_30_min", nil
	default:
		return "", fmt.Errorf("unknown reminder bucket %q", bucket)
	}
}

// ListPendingReminders retrieves pending sessions due a reminder for the bucket.
func (s *SessionStore) ListPendingReminders(ctx context.Context, bucket models.ReminderBucket, from, to time.Time) ([]*models.Session, error) {
	col, err := reminderColumn(bucket)
	if err != nil {
		return nil, err
	}

	// col comes from the fixed mapping above, never from input.
	query := `SELECT` + sessionColumns + `
		FROM sessions
		WHERE status = 'pending'
		  AND scheduled_start_time >= $1 AND scheduled_start_time < $2
		  AND ` + col + ` = FALSE
		ORDER BY scheduled_start_time ASC`

	return s.list(ctx, query, from, to)
}

// MarkReminderSent latches the reminder flag for the bucket.
func (s *SessionStore) MarkReminderSent(ctx context.Context, id string, bucket models.ReminderBucket) (bool, error) {
	col, err := reminderColumn(bucket)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE sessions
		SET ` + col + ` = TRUE, updated_at = $2
		WHERE id = $1 AND ` + col + ` = FALSE`

	result, err := s.conn().ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// DeleteExpired physically removes sessions past their deletion horizon.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.conn().ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
