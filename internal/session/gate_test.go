package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/airalabs/interview-core/internal/models"
	"github.com/airalabs/interview-core/internal/store"
	"github.com/airalabs/interview-core/internal/store/memory"
)

func testStart() time.Time {
	return time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
}

// seedSession creates a pending session with a 30 minute lead and 150 minute
// trail around testStart.
func seedSession(t *testing.T, st store.Store, mutate func(*models.Session)) *models.Session {
	t.Helper()

	start := testStart()
	sess := &models.Session{
		ID:                 uuid.New().String(),
		SessionToken:       uuid.New().String(),
		InvitationID:       uuid.New().String(),
		InterviewID:        uuid.New().String(),
		CandidateEmail:     "jane@example.com",
		CandidateName:      "Jane Doe",
		Position:           "Backend Engineer",
		ScheduledStartTime: start,
		ScheduledEndTime:   start.Add(time.Hour),
		AccessWindowStart:  start.Add(-30 * time.Minute),
		AccessWindowEnd:    start.Add(150 * time.Minute),
		ExpiresAt:          start.Add(150*time.Minute + 72*time.Hour),
		Status:             models.SessionStatusPending,
	}
	if mutate != nil {
		mutate(sess)
	}
	if err := st.Sessions().Create(context.Background(), sess); err != nil {
		t.Fatalf("seeding session: %v", err)
	}
	return sess
}

func TestGateUnknownToken(t *testing.T) {
	st := memory.New()
	gate := NewGate(st, nil)

	d, err := gate.Evaluate(context.Background(), "no-such-token", testStart(), Caller{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Fatal("unknown token must be denied")
	}
	if d.Reason != DenySessionNotFound {
		t.Fatalf("reason = %s, want %s", d.Reason, DenySessionNotFound)
	}
}

func TestGateTooEarlyThenAllowedThenUsed(t *testing.T) {
	st := memory.New()
	gate := NewGate(st, nil)
	ctx := context.Background()
	sess := seedSession(t, st, nil)

	// Ten minutes before the window opens.
	early := sess.AccessWindowStart.Add(-10 * time.Minute)
	d, err := gate.Evaluate(ctx, sess.SessionToken, early, Caller{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed || d.Reason != DenyTooEarly {
		t.Fatalf("got %+v, want TOO_EARLY denial", d)
	}
	if d.MinutesUntil != 10 {
		t.Errorf("MinutesUntil = %d, want 10", d.MinutesUntil)
	}
	if !d.AvailableAt.Equal(sess.AccessWindowStart) {
		t.Errorf("AvailableAt = %v, want %v", d.AvailableAt, sess.AccessWindowStart)
	}

	// Inside the window the link admits and activates.
	inWindow := sess.ScheduledStartTime.Add(time.Minute)
	d, err = gate.Evaluate(ctx, sess.SessionToken, inWindow, Caller{IPAddress: "198.51.100.7", UserAgent: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow, got denial %s", d.Reason)
	}
	if d.Session.Status != models.SessionStatusActive {
		t.Errorf("status = %s, want active", d.Session.Status)
	}
	if d.Session.ActualStartTime == nil || !d.Session.ActualStartTime.Equal(inWindow) {
		t.Errorf("actual start = %v, want %v", d.Session.ActualStartTime, inWindow)
	}
	if d.Session.IPAddress != "198.51.100.7" {
		t.Errorf("ip = %q, want capture at activation", d.Session.IPAddress)
	}

	// Second use of the same link is refused.
	d, err = gate.Evaluate(ctx, sess.SessionToken, inWindow.Add(time.Minute), Caller{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed || d.Reason != DenyLinkAlreadyUsed {
		t.Fatalf("got %+v, want LINK_ALREADY_USED denial", d)
	}

	// Every evaluation above recorded a join attempt.
	stored, err := st.Sessions().GetByToken(ctx, sess.SessionToken)
	if err != nil {
		t.Fatalf("reloading session: %v", err)
	}
	if stored.JoinAttempts != 3 {
		t.Errorf("join attempts = %d, want 3", stored.JoinAttempts)
	}
}

func TestGateMinutesUntilRoundsUp(t *testing.T) {
	st := memory.New()
	gate := NewGate(st, nil)
	sess := seedSession(t, st, nil)

	// 90 seconds before the window opens reads as 2 minutes, not 1.
	now := sess.AccessWindowStart.Add(-90 * time.Second)
	d, err := gate.Evaluate(context.Background(), sess.SessionToken, now, Caller{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Reason != DenyTooEarly {
		t.Fatalf("reason = %s, want TOO_EARLY", d.Reason)
	}
	if d.MinutesUntil != 2 {
		t.Errorf("MinutesUntil = %d, want 2", d.MinutesUntil)
	}
}

func TestGateTooLate(t *testing.T) {
	st := memory.New()
	gate := NewGate(st, nil)
	sess := seedSession(t, st, nil)

	late := sess.AccessWindowEnd.Add(time.Second)
	d, err := gate.Evaluate(context.Background(), sess.SessionToken, late, Caller{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed || d.Reason != DenyTooLate {
		t.Fatalf("got %+v, want TOO_LATE denial", d)
	}
	if !d.ExpiredAt.Equal(sess.AccessWindowEnd) {
		t.Errorf("ExpiredAt = %v, want %v", d.ExpiredAt, sess.AccessWindowEnd)
	}
}

func TestGateWindowBoundariesInclusive(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	first := seedSession(t, st, nil)
	gate := NewGate(st, nil)
	d, err := gate.Evaluate(ctx, first.SessionToken, first.AccessWindowStart, Caller{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed {
		t.Errorf("window start should admit, got %s", d.Reason)
	}

	second := seedSession(t, st, func(s *models.Session) {
		s.CandidateEmail = "other@example.com"
	})
	d, err = gate.Evaluate(ctx, second.SessionToken, second.AccessWindowEnd, Caller{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed {
		t.Errorf("window end should admit, got %s", d.Reason)
	}
}

func TestGateTerminalStates(t *testing.T) {
	cases := []struct {
		status models.SessionStatus
		want   DenyReason
	}{
		{models.SessionStatusCompleted, DenySessionCompleted},
		{models.SessionStatusExpired, DenySessionExpired},
		{models.SessionStatusCancelled, DenySessionCancelled},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			st := memory.New()
			gate := NewGate(st, nil)
			sess := seedSession(t, st, func(s *models.Session) {
				s.Status = tc.status
			})

			d, err := gate.Evaluate(context.Background(), sess.SessionToken, sess.ScheduledStartTime, Caller{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Allowed || d.Reason != tc.want {
				t.Fatalf("got %+v, want %s denial", d, tc.want)
			}
		})
	}
}

func TestGateIdentityCheck(t *testing.T) {
	st := memory.New()
	gate := NewGate(st, nil)
	ctx := context.Background()
	sess := seedSession(t, st, nil)
	now := sess.ScheduledStartTime

	// Wrong verified identity is refused before the link is consumed.
	d, err := gate.Evaluate(ctx, sess.SessionToken, now, Caller{Email: "mallory@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed || d.Reason != DenyUnauthorized {
		t.Fatalf("got %+v, want UNAUTHORIZED denial", d)
	}

	stored, _ := st.Sessions().GetByToken(ctx, sess.SessionToken)
	if stored.Status != models.SessionStatusPending {
		t.Fatalf("denied attempt must not consume the link, status = %s", stored.Status)
	}

	// The right identity still gets in afterwards.
	d, err = gate.Evaluate(ctx, sess.SessionToken, now, Caller{Email: sess.CandidateEmail})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("matching identity should admit, got %s", d.Reason)
	}
}

func TestGateAnonymousCallerAdmitted(t *testing.T) {
	st := memory.New()
	gate := NewGate(st, nil)
	sess := seedSession(t, st, nil)

	d, err := gate.Evaluate(context.Background(), sess.SessionToken, sess.ScheduledStartTime, Caller{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("anonymous caller inside the window should admit, got %s", d.Reason)
	}
}

// TestGateConcurrentActivation drives many simultaneous validations of the
// same link and asserts exactly one wins.
func TestGateConcurrentActivation(t *testing.T) {
	const attempts = 32

	st := memory.New()
	gate := NewGate(st, nil)
	ctx := context.Background()
	sess := seedSession(t, st, nil)
	now := sess.ScheduledStartTime

	var wg sync.WaitGroup
	decisions := make([]Decision, attempts)
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i], errs[i] = gate.Evaluate(ctx, sess.SessionToken, now, Caller{})
		}(i)
	}
	wg.Wait()

	var allowed int
	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			t.Fatalf("attempt %d errored: %v", i, errs[i])
		}
		if decisions[i].Allowed {
			allowed++
		} else if decisions[i].Reason != DenyLinkAlreadyUsed {
			t.Errorf("loser %d denied with %s, want LINK_ALREADY_USED", i, decisions[i].Reason)
		}
	}
	if allowed != 1 {
		t.Fatalf("allowed = %d, want exactly 1", allowed)
	}

	stored, _ := st.Sessions().GetByToken(ctx, sess.SessionToken)
	if stored.Status != models.SessionStatusActive {
		t.Errorf("status = %s, want active", stored.Status)
	}
	if stored.JoinAttempts != attempts {
		t.Errorf("join attempts = %d, want %d", stored.JoinAttempts, attempts)
	}
}
