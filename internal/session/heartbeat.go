package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/airalabs/interview-core/internal/store"
)

// Monitor tracks candidate liveness while a session is active.
type Monitor struct {
	store  store.Store
	logger *slog.Logger
}

// NewMonitor creates a new heartbeat monitor.
func NewMonitor(s store.Store, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{store: s, logger: logger}
}

// RecordHeartbeat stamps the session's liveness fields and returns the
// updated heartbeat count. Returns ErrInvalidState unless the session is
// active: heartbeats are inert before activation and frozen after completion.
func (m *Monitor) RecordHeartbeat(ctx context.Context, token string, now time.Time) (int, error) {
	count, err := m.store.Sessions().RecordHeartbeat(ctx, token, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrSessionNotFound
		}
		if errors.Is(err, store.ErrConflict) {
			return 0, ErrInvalidState
		}
		return 0, fmt.Errorf("recording heartbeat: %w", err)
	}
	return count, nil
}
