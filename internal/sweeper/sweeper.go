// Package sweeper runs the periodic maintenance loops over session records:
// the heartbeat reaper, the expiry sweep for never-joined sessions, the
// end-of-window auto-complete, and the physical TTL sweep.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/airalabs/interview-core/internal/models"
	"github.com/airalabs/interview-core/internal/session"
	"github.com/airalabs/interview-core/internal/store"
	"github.com/airalabs/interview-core/pkg/config"
)

// Sweeper owns the background maintenance loops.
type Sweeper struct {
	store            store.Store
	lifecycle        *session.Lifecycle
	heartbeatTimeout time.Duration
	cfg              config.SweeperConfig
	logger           *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a new Sweeper.
func New(s store.Store, lifecycle *session.Lifecycle, sessionCfg config.SessionConfig, cfg config.SweeperConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:            s,
		lifecycle:        lifecycle,
		heartbeatTimeout: sessionCfg.HeartbeatTimeout,
		cfg:              cfg,
		logger:           logger.With("component", "sweeper"),
		stopCh:           make(chan struct{}),
	}
}

// Start launches the reaper, expiry, and retention loops.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("starting sweeper",
		"reaper_interval", s.cfg.ReaperInterval,
		"expiry_interval", s.cfg.ExpiryInterval,
		"retention_interval", s.cfg.RetentionInterval,
	)

	s.loop(ctx, s.cfg.ReaperInterval, func(now time.Time) {
		if err := s.ReapStale(ctx, now); err != nil {
			s.logger.Error("heartbeat reap failed", "error", err)
		}
	})
	s.loop(ctx, s.cfg.ExpiryInterval, func(now time.Time) {
		if err := s.SweepWindows(ctx, now); err != nil {
			s.logger.Error("window sweep failed", "error", err)
		}
	})
	s.loop(ctx, s.cfg.RetentionInterval, func(now time.Time) {
		if err := s.SweepRetention(ctx, now); err != nil {
			s.logger.Error("retention sweep failed", "error", err)
		}
	})
}

// Stop halts all loops and waits for in-flight sweeps to finish.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context, interval time.Duration, fn func(now time.Time)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				fn(time.Now().UTC())
			}
		}
	}()
}

// ReapStale completes active sessions whose heartbeats have gone silent for
// longer than the timeout, with reason heartbeat_timeout. Safe under
// concurrent reaper instances: completion is a conditional update, so a
// session already reaped elsewhere is skipped.
func (s *Sweeper) ReapStale(ctx context.Context, now time.Time) error {
	active, err := s.store.Sessions().ListActive(ctx)
	if err != nil {
		return err
	}

	for _, sess := range active {
		if !sess.IsStale(now, s.heartbeatTimeout) {
			continue
		}
		_, err := s.store.Sessions().Complete(ctx, sess.ID, now, models.CompletionHeartbeatTimeout)
		if err != nil {
			if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
				continue
			}
			s.logger.Error("failed to reap stale session",
				"session_id", sess.ID,
				"error", err,
			)
			continue
		}
		s.logger.Info("reaped stale session",
			"session_id", sess.ID,
			"last_heartbeat", sess.LastHeartbeat,
		)
	}
	return nil
}

// SweepWindows expires never-joined sessions past their window and
// auto-completes active sessions past theirs.
func (s *Sweeper) SweepWindows(ctx context.Context, now time.Time) error {
	expired, err := s.lifecycle.ExpireOverdue(ctx, now)
	if err != nil {
		return err
	}
	completed, err := s.lifecycle.AutoCompleteOverdue(ctx, now)
	if err != nil {
		return err
	}
	if expired > 0 || completed > 0 {
		s.logger.Info("window sweep finished",
			"expired", expired,
			"auto_completed", completed,
		)
	}
	return nil
}

// SweepRetention physically deletes sessions past their hard deletion
// horizon, whatever their logical status.
func (s *Sweeper) SweepRetention(ctx context.Context, now time.Time) error {
	removed, err := s.store.Sessions().DeleteExpired(ctx, now)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Info("retention sweep removed sessions", "count", removed)
	}
	return nil
}
