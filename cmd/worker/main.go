// Package main provides the entry point for the background worker: the
// reminder scheduler and the session sweeper run here, separate from the
// API server so they can be deployed and scaled independently.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/airalabs/interview-core/internal/mailer"
	"github.com/airalabs/interview-core/internal/reminder"
	"github.com/airalabs/interview-core/internal/session"
	"github.com/airalabs/interview-core/internal/shutdown"
	pgstore "github.com/airalabs/interview-core/internal/store/postgres"
	"github.com/airalabs/interview-core/internal/sweeper"
	"github.com/airalabs/interview-core/pkg/config"
	"github.com/airalabs/interview-core/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.New(slog.LevelInfo, true)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database store
	storeCfg := pgstore.DefaultConfig(cfg.DatabaseDSN)
	st, err := pgstore.NewPostgresStore(storeCfg, log.Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.EnsureSchema(context.Background()); err != nil {
		log.Error("failed to apply database schema", "error", err)
		os.Exit(1)
	}

	// Reminder scheduler
	templates, err := reminder.LoadTemplates(cfg.Reminder.TemplatesPath)
	if err != nil {
		log.Error("failed to load reminder templates", "error", err)
		os.Exit(1)
	}
	sender := mailer.NewSMTPSender(cfg.Mail, log.Logger)
	scheduler := reminder.NewScheduler(st, sender, templates, cfg.Reminder, cfg.PublicBaseURL, log.Logger)

	// Session sweeper
	lifecycle := session.NewLifecycle(st, log.Logger)
	sweep := sweeper.New(st, lifecycle, cfg.Session, cfg.Sweeper, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler.Start(ctx)
	sweep.Start(ctx)

	// Setup graceful shutdown
	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coordinator.Register(shutdown.NewCloserComponent("store", st))
	coordinator.Register(shutdown.NewWorkerComponent("sweeper", sweep))
	coordinator.Register(shutdown.NewWorkerComponent("reminder-scheduler", scheduler))

	log.Info("worker started",
		"reminder_tick", cfg.Reminder.Tick,
		"reaper_interval", cfg.Sweeper.ReaperInterval,
	)

	coordinator.WaitForSignal()
	coordinator.Wait()
	log.Info("worker stopped")
	os.Exit(coordinator.ExitCode())
}
