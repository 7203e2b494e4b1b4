// Package memory provides a mutex-guarded in-memory implementation of the
// store interfaces. It mirrors the conditional-update semantics of the
// PostgreSQL store, which makes it suitable for service tests (including
// activation-race tests) and local development without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/airalabs/interview-core/internal/models"
	"github.com/airalabs/interview-core/internal/store"
)

// Store implements store.Store in memory.
type Store struct {
	mu           sync.Mutex
	sessions     map[string]*models.Session // by id
	byToken      map[string]string          // token -> id
	byInvitation map[string]string          // invitation id -> session id
	invitations  map[string]*models.Invitation
	interviews   map[string]*models.Interview
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		sessions:     make(map[string]*models.Session),
		byToken:      make(map[string]string),
		byInvitation: make(map[string]string),
		invitations:  make(map[string]*models.Invitation),
		interviews:   make(map[string]*models.Interview),
	}
}

// Sessions returns the SessionStore.
func (s *Store) Sessions() store.SessionStore { return (*sessionStore)(s) }

// Invitations returns the InvitationStore.
func (s *Store) Invitations() store.InvitationStore { return (*invitationStore)(s) }

// Interviews returns the InterviewStore.
func (s *Store) Interviews() store.InterviewStore { return (*interviewStore)(s) }

// WithTx executes fn against the same store. The in-memory store has no
// transactions; each operation is individually atomic under the mutex.
func (s *Store) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func copySession(sess *models.Session) *models.Session {
	out := *sess
	return &out
}

type sessionStore Store

func (s *sessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byInvitation[session.InvitationID]; exists {
		return store.ErrDuplicateSession
	}

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

	stored := copySession(session)
	s.sessions[stored.ID] = stored
	s.byToken[stored.SessionToken] = stored.ID
	s.byInvitation[stored.InvitationID] = stored.ID
	return nil
}

func (s *sessionStore) getByTokenLocked(token string) (*models.Session, error) {
	id, ok := s.byToken[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.sessions[id], nil
}

func (s *sessionStore) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getByTokenLocked(token)
	if err != nil {
		return nil, err
	}
	return copySession(sess), nil
}

func (s *sessionStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copySession(sess), nil
}

func (s *sessionStore) GetByInvitation(ctx context.Context, invitationID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byInvitation[invitationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copySession(s.sessions[id]), nil
}

func (s *sessionStore) ListByEmail(ctx context.Context, email string) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.CandidateEmail == email {
			out = append(out, copySession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledStartTime.After(out[j].ScheduledStartTime)
	})
	return out, nil
}

func (s *sessionStore) ListActive(ctx context.Context) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.Status == models.SessionStatusActive {
			out = append(out, copySession(sess))
		}
	}
	return out, nil
}

func (s *sessionStore) Activate(ctx context.Context, token string, now time.Time, ip, userAgent string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getByTokenLocked(token)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionStatusPending {
		return nil, store.ErrConflict
	}

	start := now
	sess.Status = models.SessionStatusActive
	sess.ActualStartTime = &start
	sess.IPAddress = ip
	sess.UserAgent = userAgent
	sess.UpdatedAt = now
	return copySession(sess), nil
}

func (s *sessionStore) Complete(ctx context.Context, id string, now time.Time, reason models.CompletionReason) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sess.Status != models.SessionStatusActive {
		return nil, store.ErrConflict
	}

	end := now
	sess.Status = models.SessionStatusCompleted
	sess.ActualEndTime = &end
	sess.CompletionReason = reason
	sess.UpdatedAt = now
	return copySession(sess), nil
}

func (s *sessionStore) Cancel(ctx context.Context, id string, now time.Time) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sess.Status != models.SessionStatusPending && sess.Status != models.SessionStatusActive {
		return nil, store.ErrConflict
	}

	sess.Status = models.SessionStatusCancelled
	sess.UpdatedAt = now
	return copySession(sess), nil
}

func (s *sessionStore) ExpireOverdue(ctx context.Context, now time.Time) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.Status == models.SessionStatusPending && sess.AccessWindowEnd.Before(now) {
			sess.Status = models.SessionStatusExpired
			sess.CompletionReason = models.CompletionExpired
			sess.UpdatedAt = now
			out = append(out, copySession(sess))
		}
	}
	return out, nil
}

func (s *sessionStore) ListOverdueActive(ctx context.Context, now time.Time) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.Status == models.SessionStatusActive && sess.AccessWindowEnd.Before(now) {
			out = append(out, copySession(sess))
		}
	}
	return out, nil
}

func (s *sessionStore) RecordJoinAttempt(ctx context.Context, token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getByTokenLocked(token)
	if err != nil {
		return err
	}
	attempt := now
	sess.JoinAttempts++
	sess.LastJoinAttempt = &attempt
	sess.UpdatedAt = now
	return nil
}

func (s *sessionStore) RecordHeartbeat(ctx context.Context, token string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getByTokenLocked(token)
	if err != nil {
		return 0, err
	}
	if sess.Status != models.SessionStatusActive {
		return 0, store.ErrConflict
	}

	beat := now
	sess.LastHeartbeat = &beat
	sess.HeartbeatCount++
	sess.UpdatedAt = now
	return sess.HeartbeatCount, nil
}

func (s *sessionStore) ListPendingReminders(ctx context.Context, bucket models.ReminderBucket, from, to time.Time) ([]*models.Session, error) {
	if !bucket.IsValid() {
		return nil, fmt.Errorf("unknown reminder bucket %q", bucket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.Status != models.SessionStatusPending || sess.ReminderSent(bucket) {
			continue
		}
		if sess.ScheduledStartTime.Before(from) || !sess.ScheduledStartTime.Before(to) {
			continue
		}
		out = append(out, copySession(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledStartTime.Before(out[j].ScheduledStartTime)
	})
	return out, nil
}

func (s *sessionStore) MarkReminderSent(ctx context.Context, id string, bucket models.ReminderBucket) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if sess.ReminderSent(bucket) {
		return false, nil
	}

	switch bucket {
	case models.ReminderBucket2Days:
		sess.ReminderSent2Days = true
	case models.ReminderBucket1Day:
		sess.ReminderSent1Day = true
	case models.ReminderBucket30Min:
		sess.ReminderSent30Min = true
	default:
		return false, fmt.Errorf("unknown reminder bucket %q", bucket)
	}
	sess.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *sessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(s.sessions, id)
			delete(s.byToken, sess.SessionToken)
			delete(s.byInvitation, sess.InvitationID)
			removed++
		}
	}
	return removed, nil
}

type invitationStore Store

func (s *invitationStore) Create(ctx context.Context, invitation *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if invitation.ID == "" {
		invitation.ID = uuid.New().String()
	}
	if invitation.CreatedAt.IsZero() {
		invitation.CreatedAt = time.Now().UTC()
	}
	if invitation.Status == "" {
		invitation.Status = models.InvitationStatusPending
	}

	stored := *invitation
	s.invitations[stored.ID] = &stored
	return nil
}

func (s *invitationStore) Get(ctx context.Context, id string) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *inv
	return &out, nil
}

func (s *invitationStore) Accept(ctx context.Context, id string, slot time.Time, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return store.ErrNotFound
	}
	if inv.Status != models.InvitationStatusPending {
		return store.ErrConflict
	}

	chosen := slot
	accepted := now
	inv.Status = models.InvitationStatusAccepted
	inv.ChosenSlot = &chosen
	inv.AcceptedAt = &accepted
	return nil
}

type interviewStore Store

func (s *interviewStore) Create(ctx context.Context, interview *models.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if interview.ID == "" {
		interview.ID = uuid.New().String()
	}
	if interview.CreatedAt.IsZero() {
		interview.CreatedAt = time.Now().UTC()
	}

	stored := *interview
	stored.CompletedCandidates = append([]string(nil), interview.CompletedCandidates...)
	s.interviews[stored.ID] = &stored
	return nil
}

func (s *interviewStore) Get(ctx context.Context, id string) (*models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iv, ok := s.interviews[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *iv
	out.CompletedCandidates = append([]string(nil), iv.CompletedCandidates...)
	return &out, nil
}

func (s *interviewStore) AddCompletedCandidate(ctx context.Context, id, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iv, ok := s.interviews[id]
	if !ok {
		return false, store.ErrNotFound
	}
	for _, c := range iv.CompletedCandidates {
		if c == email {
			return false, nil
		}
	}
	iv.CompletedCandidates = append(iv.CompletedCandidates, email)
	return true, nil
}
