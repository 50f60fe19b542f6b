// Package server provides the HTTP REST API for the medical research service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/medical-research-service/internal/database"
	"github.com/helixir/medical-research-service/internal/domain"
	"github.com/helixir/medical-research-service/internal/repository"
)

// SessionOrchestrator starts and cancels research sessions.
// *session.Orchestrator satisfies it.
type SessionOrchestrator interface {
	Start(ctx context.Context, query domain.StructuredQuery, mode domain.SessionMode, maxResults int) (*domain.ResearchSession, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// Server is the HTTP REST API server.
type Server struct {
	router       chi.Router
	httpServer   *http.Server
	orchestrator SessionOrchestrator
	sessionRepo  repository.SessionRepository
	resultRepo   repository.ResultRepository
	db           *database.DB
	validate     *validator.Validate
	logger       zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(
	cfg Config,
	orchestrator SessionOrchestrator,
	sessionRepo repository.SessionRepository,
	resultRepo repository.ResultRepository,
	db *database.DB,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		orchestrator: orchestrator,
		sessionRepo:  sessionRepo,
		resultRepo:   resultRepo,
		db:           db,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		logger:       logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.requestLogger)

	// Health and metrics endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/research-sessions", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Post("/", s.startResearchSession)
		r.Get("/", s.listResearchSessions)
		r.Get("/{sessionID}", s.getResearchSession)
		r.Delete("/{sessionID}", s.cancelResearchSession)
		r.Get("/{sessionID}/references", s.getSessionReferences)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the router, used for testing without a listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler returns readiness status including database connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
