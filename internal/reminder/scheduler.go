// Package reminder provides the periodic scheduler that emails candidates
// ahead of their scheduled interview time.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/airalabs/interview-core/internal/models"
	"github.com/airalabs/interview-core/internal/store"
	"github.com/airalabs/interview-core/pkg/config"
)

// Sender delivers a reminder email. Implementations must respect the
// context deadline; the scheduler treats any error as retryable.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Scheduler sweeps for sessions whose scheduled start falls in one of the
// lookahead buckets and sends each at most one reminder per bucket, gated by
// the session's one-way flags.
type Scheduler struct {
	store     store.Store
	sender    Sender
	templates *Templates
	cfg       config.ReminderConfig
	baseURL   string
	logger    *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a new reminder scheduler.
func NewScheduler(s store.Store, sender Sender, templates *Templates, cfg config.ReminderConfig, baseURL string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:     s,
		sender:    sender,
		templates: templates,
		cfg:       cfg,
		baseURL:   baseURL,
		logger:    logger.With("component", "reminder"),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the tick loop. It returns immediately; sweeps run in a
// background goroutine until Stop is called or the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting reminder scheduler",
		"tick", s.cfg.Tick,
		"bucket_width", s.cfg.BucketWidth,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.Tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				if err := s.RunOnce(ctx, time.Now().UTC()); err != nil {
					s.logger.Error("reminder sweep failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the tick loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("reminder scheduler stopped")
}

// RunOnce performs a single sweep over all buckets at the given time. It is
// exported so tests and operators can drive virtual time. An error is
// returned only when a bucket query itself fails; individual send failures
// are logged and retried on a later tick because the flag stays unset.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) error {
	for _, bucket := range models.AllReminderBuckets() {
		if err := s.sweepBucket(ctx, bucket, now); err != nil {
			return fmt.Errorf("sweeping %s bucket: %w", bucket, err)
		}
	}
	return nil
}

func (s *Scheduler) sweepBucket(ctx context.Context, bucket models.ReminderBucket, now time.Time) error {
	from := now.Add(bucket.Offset())
	to := from.Add(s.cfg.BucketWidth)

	due, err := s.store.Sessions().ListPendingReminders(ctx, bucket, from, to)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	s.logger.Info("reminders due",
		"bucket", string(bucket),
		"count", len(due),
		"from", from,
		"to", to,
	)

	// Bounded fan-out: a small worker pool keeps a large batch from
	// overwhelming the mail transport. Failures are isolated per session.
	sem := make(chan struct{}, s.cfg.MaxConcurrentSends)
	var wg sync.WaitGroup
	for _, sess := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(sess *models.Session) {
			defer wg.Done()
			defer func() { <-sem }()
			s.remind(ctx, bucket, sess)
		}(sess)
	}
	wg.Wait()

	return nil
}

// remind sends one reminder and latches the bucket flag only after a
// successful send, so a failed send is retried on the next tick.
func (s *Scheduler) remind(ctx context.Context, bucket models.ReminderBucket, sess *models.Session) {
	joinURL := fmt.Sprintf("%s/sessions/%s/validate", s.baseURL, sess.SessionToken)

	subject, body, err := s.templates.Render(bucket, sess, joinURL)
	if err != nil {
		s.logger.Error("failed to render reminder",
			"session_id", sess.ID,
			"bucket", string(bucket),
			"error", err,
		)
		return
	}

	if err := s.sender.Send(ctx, sess.CandidateEmail, subject, body); err != nil {
		s.logger.Error("failed to send reminder",
			"session_id", sess.ID,
			"bucket", string(bucket),
			"candidate_email", sess.CandidateEmail,
			"error", err,
		)
		return
	}

	latched, err := s.store.Sessions().MarkReminderSent(ctx, sess.ID, bucket)
	if err != nil {
		s.logger.Error("failed to latch reminder flag",
			"session_id", sess.ID,
			"bucket", string(bucket),
			"error", err,
		)
		return
	}
	if !latched {
		// A concurrent scheduler instance latched first; its send won.
		s.logger.Warn("reminder flag already latched",
			"session_id", sess.ID,
			"bucket", string(bucket),
		)
		return
	}

	s.logger.Info("reminder sent",
		"session_id", sess.ID,
		"bucket", string(bucket),
		"candidate_email", sess.CandidateEmail,
	)
}
