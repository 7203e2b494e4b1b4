package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/airalabs/interview-core/internal/models"
	"github.com/airalabs/interview-core/internal/store/memory"
)

func TestCompleteActiveSession(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	life := NewLifecycle(st, nil)

	interview := &models.Interview{
		ID:       "int-1",
		Position: "Backend Engineer",
		Duration: time.Hour,
	}
	if err := st.Interviews().Create(ctx, interview); err != nil {
		t.Fatalf("creating interview: %v", err)
	}

	sess := seedSession(t, st, func(s *models.Session) {
		s.InterviewID = interview.ID
		s.Status = models.SessionStatusActive
	})

	end := sess.ScheduledStartTime.Add(45 * time.Minute)
	done, err := life.Complete(ctx, sess.SessionToken, end, models.CompletionManualEnd)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.SessionStatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}
	if done.CompletionReason != models.CompletionManualEnd {
		t.Errorf("reason = %s, want manual_end", done.CompletionReason)
	}
	if done.ActualEndTime == nil || !done.ActualEndTime.Equal(end) {
		t.Errorf("actual end = %v, want %v", done.ActualEndTime, end)
	}

	got, err := st.Interviews().Get(ctx, interview.ID)
	if err != nil {
		t.Fatalf("loading interview: %v", err)
	}
	if !got.HasCompleted(sess.CandidateEmail) {
		t.Error("candidate missing from interview completed set")
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	life := NewLifecycle(st, nil)

	if err := st.Interviews().Create(ctx, &models.Interview{ID: "int-1", Duration: time.Hour}); err != nil {
		t.Fatalf("creating interview: %v", err)
	}
	sess := seedSession(t, st, func(s *models.Session) {
		s.InterviewID = "int-1"
		s.Status = models.SessionStatusActive
	})

	first := sess.ScheduledStartTime.Add(40 * time.Minute)
	done, err := life.Complete(ctx, sess.SessionToken, first, models.CompletionManualEnd)
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}

	// A repeat, later and with a different reason, returns the original.
	again, err := life.Complete(ctx, sess.SessionToken, first.Add(10*time.Minute), models.CompletionAutoComplete)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if again.CompletionReason != models.CompletionManualEnd {
		t.Errorf("repeat overwrote reason: %s", again.CompletionReason)
	}
	if !again.ActualEndTime.Equal(*done.ActualEndTime) {
		t.Errorf("repeat moved end time: %v vs %v", again.ActualEndTime, done.ActualEndTime)
	}
}

func TestCompleteRejections(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	life := NewLifecycle(st, nil)
	now := testStart()

	if _, err := life.Complete(ctx, "missing", now, models.CompletionManualEnd); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown token: err = %v, want ErrSessionNotFound", err)
	}

	pending := seedSession(t, st, nil)
	if _, err := life.Complete(ctx, pending.SessionToken, now, models.CompletionManualEnd); !errors.Is(err, ErrInvalidState) {
		t.Errorf("pending session: err = %v, want ErrInvalidState", err)
	}

	if _, err := life.Complete(ctx, pending.SessionToken, now, models.CompletionReason("bogus")); !errors.Is(err, ErrInvalidReason) {
		t.Errorf("bogus reason: err = %v, want ErrInvalidReason", err)
	}
}

func TestCancel(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	life := NewLifecycle(st, nil)
	now := testStart()

	pending := seedSession(t, st, nil)
	cancelled, err := life.Cancel(ctx, pending.ID, now)
	if err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if cancelled.Status != models.SessionStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	// Cancelling again is a no-op.
	again, err := life.Cancel(ctx, pending.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if again.Status != models.SessionStatusCancelled {
		t.Errorf("repeat status = %s, want cancelled", again.Status)
	}

	completed := seedSession(t, st, func(s *models.Session) {
		s.CandidateEmail = "other@example.com"
		s.Status = models.SessionStatusCompleted
	})
	if _, err := life.Cancel(ctx, completed.ID, now); !errors.Is(err, ErrInvalidState) {
		t.Errorf("cancel completed: err = %v, want ErrInvalidState", err)
	}
}

func TestExpireOverdue(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	life := NewLifecycle(st, nil)

	overdue := seedSession(t, st, nil)
	active := seedSession(t, st, func(s *models.Session) {
		s.CandidateEmail = "active@example.com"
		s.Status = models.SessionStatusActive
	})
	fresh := seedSession(t, st, func(s *models.Session) {
		s.CandidateEmail = "fresh@example.com"
		s.ScheduledStartTime = s.ScheduledStartTime.Add(24 * time.Hour)
		s.AccessWindowStart = s.AccessWindowStart.Add(24 * time.Hour)
		s.AccessWindowEnd = s.AccessWindowEnd.Add(24 * time.Hour)
	})

	afterWindow := overdue.AccessWindowEnd.Add(time.Minute)
	n, err := life.ExpireOverdue(ctx, afterWindow)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d sessions, want 1", n)
	}

	got, _ := st.Sessions().GetByToken(ctx, overdue.SessionToken)
	if got.Status != models.SessionStatusExpired {
		t.Errorf("overdue pending status = %s, want expired", got.Status)
	}
	got, _ = st.Sessions().GetByToken(ctx, active.SessionToken)
	if got.Status != models.SessionStatusActive {
		t.Errorf("active session must not be expired by the pending sweep")
	}
	got, _ = st.Sessions().GetByToken(ctx, fresh.SessionToken)
	if got.Status != models.SessionStatusPending {
		t.Errorf("future session must stay pending")
	}
}

func TestAutoCompleteOverdue(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	life := NewLifecycle(st, nil)

	if err := st.Interviews().Create(ctx, &models.Interview{ID: "int-1", Duration: time.Hour}); err != nil {
		t.Fatalf("creating interview: %v", err)
	}
	running := seedSession(t, st, func(s *models.Session) {
		s.InterviewID = "int-1"
		s.Status = models.SessionStatusActive
	})

	afterWindow := running.AccessWindowEnd.Add(time.Minute)
	n, err := life.AutoCompleteOverdue(ctx, afterWindow)
	if err != nil {
		t.Fatalf("auto-complete: %v", err)
	}
	if n != 1 {
		t.Fatalf("completed %d sessions, want 1", n)
	}

	got, _ := st.Sessions().GetByToken(ctx, running.SessionToken)
	if got.Status != models.SessionStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.CompletionReason != models.CompletionAutoComplete {
		t.Errorf("reason = %s, want auto_complete", got.CompletionReason)
	}
}

func TestRecordHeartbeat(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	monitor := NewMonitor(st, nil)

	active := seedSession(t, st, func(s *models.Session) {
		s.Status = models.SessionStatusActive
	})
	now := testStart()

	for i := 1; i <= 3; i++ {
		count, err := monitor.RecordHeartbeat(ctx, active.SessionToken, now.Add(time.Duration(i)*30*time.Second))
		if err != nil {
			t.Fatalf("heartbeat %d: %v", i, err)
		}
		if count != i {
			t.Errorf("heartbeat count = %d, want %d", count, i)
		}
	}

	got, _ := st.Sessions().GetByToken(ctx, active.SessionToken)
	want := now.Add(90 * time.Second)
	if got.LastHeartbeat == nil || !got.LastHeartbeat.Equal(want) {
		t.Errorf("last heartbeat = %v, want %v", got.LastHeartbeat, want)
	}
}

func TestRecordHeartbeatRejections(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	monitor := NewMonitor(st, nil)
	now := testStart()

	if _, err := monitor.RecordHeartbeat(ctx, "missing", now); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown token: err = %v, want ErrSessionNotFound", err)
	}

	for _, status := range []models.SessionStatus{
		models.SessionStatusPending,
		models.SessionStatusCompleted,
		models.SessionStatusExpired,
		models.SessionStatusCancelled,
	} {
		sess := seedSession(t, st, func(s *models.Session) {
			s.CandidateEmail = string(status) + "@example.com"
			s.Status = status
		})
		if _, err := monitor.RecordHeartbeat(ctx, sess.SessionToken, now); !errors.Is(err, ErrInvalidState) {
			t.Errorf("%s session: err = %v, want ErrInvalidState", status, err)
		}
	}
}
