package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/airalabs/interview-core/internal/api/middleware"
	"github.com/airalabs/interview-core/internal/models"
	"github.com/airalabs/interview-core/internal/session"
	"github.com/airalabs/interview-core/internal/store"
	"github.com/airalabs/interview-core/pkg/logger"
)

// SessionHandler handles session-facing HTTP requests.
type SessionHandler struct {
	store     store.Store
	gate      *session.Gate
	lifecycle *session.Lifecycle
	monitor   *session.Monitor
	logger    *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(s store.Store, gate *session.Gate, lifecycle *session.Lifecycle, monitor *session.Monitor, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		store:     s,
		gate:      gate,
		lifecycle: lifecycle,
		monitor:   monitor,
		logger:    log,
	}
}

// sessionView is the candidate-facing projection of a session. Internal
// telemetry (join attempts, reminder flags, IP) stays out of responses.
type sessionView struct {
	SessionToken       string     `json:"session_token"`
	CandidateName      string     `json:"candidate_name"`
	Position           string     `json:"position"`
	ScheduledStartTime time.Time  `json:"scheduled_start_time"`
	ScheduledEndTime   time.Time  `json:"scheduled_end_time"`
	AccessWindowStart  time.Time  `json:"access_window_start"`
	AccessWindowEnd    time.Time  `json:"access_window_end"`
	Status             string     `json:"status"`
	ActualStartTime    *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime      *time.Time `json:"actual_end_time,omitempty"`
}

func newSessionView(s *models.Session) sessionView {
	return sessionView{
		SessionToken:       s.SessionToken,
		CandidateName:      s.CandidateName,
		Position:           s.Position,
		ScheduledStartTime: s.ScheduledStartTime,
		ScheduledEndTime:   s.ScheduledEndTime,
		AccessWindowStart:  s.AccessWindowStart,
		AccessWindowEnd:    s.AccessWindowEnd,
		Status:             string(s.Status),
		ActualStartTime:    s.ActualStartTime,
		ActualEndTime:      s.ActualEndTime,
	}
}

// Validate handles GET /sessions/{token}/validate. It runs the access gate
// and, when the caller is admitted, consumes the single-use link.
func (h *SessionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	ctx := logger.ContextWithSessionToken(r.Context(), token)

	caller := session.Caller{
		Email:     middleware.GetUserEmail(ctx),
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}

	decision, err := h.gate.Evaluate(ctx, token, time.Now().UTC(), caller)
	if err != nil {
		h.logger.WithContext(ctx).Error("gate evaluation failed", "error", err)
		WriteError(w, http.StatusInternalServerError, CodeInternalError, "failed to validate session")
		return
	}

	if decision.Allowed {
		WriteJSON(w, http.StatusOK, map[string]any{
			"allowed": true,
			"session": newSessionView(decision.Session),
		})
		return
	}

	h.writeDenial(w, decision)
}

// writeDenial maps a gate denial to its HTTP status and payload.
func (h *SessionHandler) writeDenial(w http.ResponseWriter, d session.Decision) {
	switch d.Reason {
	case session.DenySessionNotFound:
		WriteError(w, http.StatusNotFound, CodeSessionNotFound, "session not found")
	case session.DenySessionCompleted:
		WriteError(w, http.StatusGone, CodeSessionCompleted, "this interview has already been completed")
	case session.DenySessionExpired:
		WriteError(w, http.StatusGone, CodeSessionExpired, "this interview link has expired")
	case session.DenySessionCancelled:
		WriteError(w, http.StatusGone, CodeSessionCancelled, "this interview has been cancelled")
	case session.DenyTooEarly:
		WriteErrorDetails(w, http.StatusForbidden, CodeTooEarly, "the interview is not open yet", map[string]any{
			"minutes_until": d.MinutesUntil,
			"available_at":  d.AvailableAt,
		})
	case session.DenyTooLate:
		WriteErrorDetails(w, http.StatusForbidden, CodeTooLate, "the access window for this interview has closed", map[string]any{
			"expired_at": d.ExpiredAt,
		})
	case session.DenyUnauthorized:
		WriteError(w, http.StatusForbidden, CodeUnauthorized, "this interview link belongs to another candidate")
	case session.DenyLinkAlreadyUsed:
		WriteError(w, http.StatusForbidden, CodeLinkAlreadyUsed, "this interview link has already been used")
	default:
		WriteError(w, http.StatusForbidden, string(d.Reason), "access denied")
	}
}

// statusResponse is the public pre-join view of a session.
type statusResponse struct {
	Status             string    `json:"status"`
	ScheduledStartTime time.Time `json:"scheduled_start_time"`
	AccessWindowStart  time.Time `json:"access_window_start"`
	AccessWindowEnd    time.Time `json:"access_window_end"`
	CanJoin            bool      `json:"can_join"`
	MinutesUntilStart  int       `json:"minutes_until_start"`
}

// Status handles GET /sessions/{token}/status. It is read-only and never
// consumes the link, so pre-interview pages can poll it freely.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	sess, err := h.store.Sessions().GetByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, CodeSessionNotFound, "session not found")
			return
		}
		h.logger.WithContext(r.Context()).Error("failed to load session", "error", err)
		WriteError(w, http.StatusInternalServerError, CodeInternalError, "failed to load session")
		return
	}

	now := time.Now().UTC()
	WriteJSON(w, http.StatusOK, statusResponse{
		Status:             string(sess.Status),
		ScheduledStartTime: sess.ScheduledStartTime,
		AccessWindowStart:  sess.AccessWindowStart,
		AccessWindowEnd:    sess.AccessWindowEnd,
		CanJoin:            sess.CanJoin(now),
		MinutesUntilStart:  sess.MinutesUntilStart(now),
	})
}

// Heartbeat handles POST /sessions/{token}/heartbeat.
func (h *SessionHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	ctx := logger.ContextWithSessionToken(r.Context(), token)

	if !h.authorizeOwner(w, r, token) {
		return
	}

	now := time.Now().UTC()
	count, err := h.monitor.RecordHeartbeat(ctx, token, now)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			WriteError(w, http.StatusNotFound, CodeSessionNotFound, "session not found")
		case errors.Is(err, session.ErrInvalidState):
			WriteError(w, http.StatusBadRequest, CodeInvalidState, "heartbeats are only accepted for active sessions")
		default:
			h.logger.WithContext(ctx).Error("failed to record heartbeat", "error", err)
			WriteError(w, http.StatusInternalServerError, CodeInternalError, "failed to record heartbeat")
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"heartbeat_count": count,
		"recorded_at":     now,
	})
}

// completeRequest is the body for POST /sessions/{token}/complete.
type completeRequest struct {
	Reason string `json:"reason"`
}

// Complete handles POST /sessions/{token}/complete. Repeats on a completed
// session succeed with the original completion metadata.
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	ctx := logger.ContextWithSessionToken(r.Context(), token)

	if !h.authorizeOwner(w, r, token) {
		return
	}

	var req completeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
			return
		}
	}

	reason := models.CompletionReason(req.Reason)
	if req.Reason == "" {
		reason = models.CompletionManualEnd
	}

	sess, err := h.lifecycle.Complete(ctx, token, time.Now().UTC(), reason)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidReason):
			WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "unknown completion reason")
		case errors.Is(err, session.ErrSessionNotFound):
			WriteError(w, http.StatusNotFound, CodeSessionNotFound, "session not found")
		case errors.Is(err, session.ErrInvalidState):
			WriteError(w, http.StatusBadRequest, CodeInvalidState, "only active sessions can be completed")
		default:
			h.logger.WithContext(ctx).Error("failed to complete session", "error", err)
			WriteError(w, http.StatusInternalServerError, CodeInternalError, "failed to complete session")
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"session":           newSessionView(sess),
		"completion_reason": string(sess.CompletionReason),
	})
}

// Mine handles GET /sessions/mine, listing the authenticated candidate's
// sessions newest first.
func (h *SessionHandler) Mine(w http.ResponseWriter, r *http.Request) {
	email := middleware.GetUserEmail(r.Context())
	if email == "" {
		WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	sessions, err := h.store.Sessions().ListByEmail(r.Context(), email)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("failed to list sessions", "error", err)
		WriteError(w, http.StatusInternalServerError, CodeInternalError, "failed to list sessions")
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, newSessionView(s))
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"sessions": views,
		"count":    len(views),
	})
}

// authorizeOwner verifies the authenticated caller owns the session. It
// writes the error response and returns false when access is denied.
func (h *SessionHandler) authorizeOwner(w http.ResponseWriter, r *http.Request, token string) bool {
	email := middleware.GetUserEmail(r.Context())
	if email == "" {
		WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return false
	}

	sess, err := h.store.Sessions().GetByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, CodeSessionNotFound, "session not found")
			return false
		}
		h.logger.WithContext(r.Context()).Error("failed to load session", "error", err)
		WriteError(w, http.StatusInternalServerError, CodeInternalError, "failed to load session")
		return false
	}

	if sess.CandidateEmail != email {
		WriteError(w, http.StatusForbidden, CodeUnauthorized, "this session belongs to another candidate")
		return false
	}
	return true
}

// clientIP extracts the originating IP from RemoteAddr. The RealIP
// middleware has already folded forwarding headers into RemoteAddr, so the
// headers are not consulted here.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
