// Package main provides the entry point for the session service: the API
// server plus the reminder and sweep timers, for single-binary deployments.
// Run cmd/worker alongside a timer-less API only if the loops must scale
// separately; every timer operation is idempotent, so overlap is safe.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/airalabs/interview-core/internal/api"
	"github.com/airalabs/interview-core/internal/api/health"
	"github.com/airalabs/interview-core/internal/auth"
	"github.com/airalabs/interview-core/internal/mailer"
	"github.com/airalabs/interview-core/internal/reminder"
	"github.com/airalabs/interview-core/internal/session"
	"github.com/airalabs/interview-core/internal/shutdown"
	pgstore "github.com/airalabs/interview-core/internal/store/postgres"
	"github.com/airalabs/interview-core/internal/sweeper"
	"github.com/airalabs/interview-core/pkg/config"
	"github.com/airalabs/interview-core/pkg/logger"
)

var version = "dev"

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

	// Initialize auth service
	authCfg := &auth.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenExpiry: cfg.JWTExpiry,
	}
	authService := auth.NewService(authCfg, log.Logger)

	// Session services
	gate := session.NewGate(st, log.Logger)
	lifecycle := session.NewLifecycle(st, log.Logger)
	monitor := session.NewMonitor(st, log.Logger)

	checker := health.NewChecker(st, version)

	server := api.NewServer(cfg, api.Deps{
		Store:   st,
		Auth:    authService,
		Gate:    gate,
		Life:    lifecycle,
		Monitor: monitor,
		Health:  checker,
	}, log)

	// Reminder scheduler
	templates, err := reminder.LoadTemplates(cfg.Reminder.TemplatesPath)
	if err != nil {
		log.Error("failed to load reminder templates", "error", err)
		os.Exit(1)
	}
	sender := mailer.NewSMTPSender(cfg.Mail, log.Logger)
	scheduler := reminder.NewScheduler(st, sender, templates, cfg.Reminder, cfg.PublicBaseURL, log.Logger)

	// Session sweeper
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
	coordinator.Register(shutdown.NewServerComponent("http-server", server))

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
			coordinator.Shutdown()
		}
	}()

	coordinator.WaitForSignal()
	coordinator.Wait()
	log.Info("server stopped")
	os.Exit(coordinator.ExitCode())
}
