// Package api provides the HTTP API server for the interview session service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/airalabs/interview-core/internal/api/handlers"
	"github.com/airalabs/interview-core/internal/api/health"
	"github.com/airalabs/interview-core/internal/api/middleware"
	"github.com/airalabs/interview-core/internal/auth"
	"github.com/airalabs/interview-core/internal/session"
	"github.com/airalabs/interview-core/internal/store"
	"github.com/airalabs/interview-core/pkg/config"
	"github.com/airalabs/interview-core/pkg/logger"
)

// Server is the HTTP API server.
type Server struct {
	config     *config.Config
	router     chi.Router
	httpServer *http.Server
	logger     *logger.Logger
}

// Deps holds the services the API server routes requests to.
type Deps struct {
	Store   store.Store
	Auth    *auth.Service
	Gate    *session.Gate
	Life    *session.Lifecycle
	Monitor *session.Monitor
	Health  *health.Checker
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, deps Deps, log *logger.Logger) *Server {
	s := &Server{
		config: cfg,
		logger: log.WithComponent("api"),
	}
	s.router = s.setupRouter(deps)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/health", deps.Health.Handler())

	sessionHandler := handlers.NewSessionHandler(deps.Store, deps.Gate, deps.Life, deps.Monitor, s.logger)

	r.Route("/sessions", func(r chi.Router) {
		// The gate accepts anonymous callers; identity, when present, is
		// checked against the session's candidate.
		r.With(middleware.OptionalAuth(deps.Auth)).
			Get("/{token}/validate", sessionHandler.Validate)

		r.Get("/{token}/status", sessionHandler.Status)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(deps.Auth))
			r.Post("/{token}/heartbeat", sessionHandler.Heartbeat)
			r.Post("/{token}/complete", sessionHandler.Complete)
			r.Get("/mine", sessionHandler.Mine)
		})
	})

	return r
}

// Start begins listening for HTTP requests. It blocks until the server
// stops.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying router, primarily for tests.
func (s *Server) Router() chi.Router {
	return s.router
}
