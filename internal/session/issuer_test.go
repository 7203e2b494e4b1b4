package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/airalabs/interview-core/internal/models"
	"github.com/airalabs/interview-core/internal/store/memory"
	"github.com/airalabs/interview-core/pkg/config"
)

func issuerConfig() config.SessionConfig {
	return config.SessionConfig{
		LeadWindow:         30 * time.Minute,
		DefaultTrailWindow: 150 * time.Minute,
		RetentionBuffer:    72 * time.Hour,
		HeartbeatTimeout:   2 * time.Minute,
	}
}

func seedAcceptedInvitation(t *testing.T, st *memory.Store, trail time.Duration) *models.Invitation {
	t.Helper()
	ctx := context.Background()
	slot := testStart()

	interview := &models.Interview{
		ID:          "int-1",
		Position:    "Backend Engineer",
		Duration:    time.Hour,
		TrailWindow: trail,
	}
	if err := st.Interviews().Create(ctx, interview); err != nil {
		t.Fatalf("creating interview: %v", err)
	}

	inv := &models.Invitation{
		ID:             "inv-1",
		InterviewID:    interview.ID,
		CandidateEmail: "jane@example.com",
		CandidateName:  "Jane Doe",
		OfferedSlots:   []time.Time{slot},
		ChosenSlot:     &slot,
		Status:         models.InvitationStatusAccepted,
		ExpiresAt:      slot.Add(-time.Hour),
	}
	if err := st.Invitations().Create(ctx, inv); err != nil {
		t.Fatalf("creating invitation: %v", err)
	}
	return inv
}

func TestIssueComputesWindow(t *testing.T) {
	st := memory.New()
	issuer := NewIssuer(st, issuerConfig(), nil)
	inv := seedAcceptedInvitation(t, st, 0)

	sess, err := issuer.Issue(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	start := testStart()
	if !sess.ScheduledStartTime.Equal(start) {
		t.Errorf("scheduled start = %v, want %v", sess.ScheduledStartTime, start)
	}
	if !sess.AccessWindowStart.Equal(start.Add(-30 * time.Minute)) {
		t.Errorf("window start = %v, want start-30m", sess.AccessWindowStart)
	}
	if !sess.AccessWindowEnd.Equal(start.Add(150 * time.Minute)) {
		t.Errorf("window end = %v, want start+150m (default trail)", sess.AccessWindowEnd)
	}
	if !sess.ScheduledEndTime.Equal(start.Add(time.Hour)) {
		t.Errorf("scheduled end = %v, want start+duration", sess.ScheduledEndTime)
	}
	if sess.Status != models.SessionStatusPending {
		t.Errorf("status = %s, want pending", sess.Status)
	}
	if sess.SessionToken == "" {
		t.Error("session token must be set")
	}
	if !sess.ExpiresAt.After(sess.AccessWindowEnd) {
		t.Errorf("expiry %v must be strictly after window end %v", sess.ExpiresAt, sess.AccessWindowEnd)
	}
	if sess.CandidateEmail != inv.CandidateEmail || sess.Position != "Backend Engineer" {
		t.Error("candidate and position must be denormalized onto the session")
	}
}

func TestIssueUsesInterviewTrailWindow(t *testing.T) {
	st := memory.New()
	issuer := NewIssuer(st, issuerConfig(), nil)
	inv := seedAcceptedInvitation(t, st, 4*time.Hour)

	sess, err := issuer.Issue(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !sess.AccessWindowEnd.Equal(testStart().Add(4 * time.Hour)) {
		t.Errorf("window end = %v, want interview trail of 4h", sess.AccessWindowEnd)
	}
}

func TestIssueIsIdempotentPerInvitation(t *testing.T) {
	st := memory.New()
	issuer := NewIssuer(st, issuerConfig(), nil)
	inv := seedAcceptedInvitation(t, st, 0)
	ctx := context.Background()

	first, err := issuer.Issue(ctx, inv.ID)
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := issuer.Issue(ctx, inv.ID)
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if first.ID != second.ID || first.SessionToken != second.SessionToken {
		t.Errorf("reissue minted a new session: %s vs %s", first.ID, second.ID)
	}
}

func TestIssueRejectsUnacceptedInvitation(t *testing.T) {
	st := memory.New()
	issuer := NewIssuer(st, issuerConfig(), nil)
	ctx := context.Background()
	slot := testStart()

	if err := st.Interviews().Create(ctx, &models.Interview{ID: "int-1", Duration: time.Hour}); err != nil {
		t.Fatalf("creating interview: %v", err)
	}
	inv := &models.Invitation{
		ID:             "inv-pending",
		InterviewID:    "int-1",
		CandidateEmail: "jane@example.com",
		OfferedSlots:   []time.Time{slot},
		Status:         models.InvitationStatusPending,
	}
	if err := st.Invitations().Create(ctx, inv); err != nil {
		t.Fatalf("creating invitation: %v", err)
	}

	if _, err := issuer.Issue(ctx, inv.ID); !errors.Is(err, ErrInvitationNotAccepted) {
		t.Errorf("err = %v, want ErrInvitationNotAccepted", err)
	}
}

func TestIssueRejectsMissingInterview(t *testing.T) {
	st := memory.New()
	issuer := NewIssuer(st, issuerConfig(), nil)
	ctx := context.Background()
	slot := testStart()

	inv := &models.Invitation{
		ID:             "inv-orphan",
		InterviewID:    "int-missing",
		CandidateEmail: "jane@example.com",
		ChosenSlot:     &slot,
		Status:         models.InvitationStatusAccepted,
	}
	if err := st.Invitations().Create(ctx, inv); err != nil {
		t.Fatalf("creating invitation: %v", err)
	}

	if _, err := issuer.Issue(ctx, inv.ID); !errors.Is(err, ErrInterviewNotFound) {
		t.Errorf("err = %v, want ErrInterviewNotFound", err)
	}
}

func TestNewTokenUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token, err := NewToken()
		if err != nil {
			t.Fatalf("token generation: %v", err)
		}
		if len(token) < 40 {
			t.Fatalf("token %q too short to be unguessable", token)
		}
		if seen[token] {
			t.Fatal("duplicate token generated")
		}
		seen[token] = true
	}
}
