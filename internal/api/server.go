// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/repo-ingest/internal/job"
	"github.com/repo-ingest/internal/logging"
	"github.com/repo-ingest/internal/models"
	"github.com/repo-ingest/internal/types"
)

// Interfaces for dependency injection and testing

// WorkRouterInterface routes inbound work items to the fast or slow lane
type WorkRouterInterface interface {
	Route(ctx context.Context, item types.WorkItem) (*job.RouteResult, error)
}

// TrackerInterface exposes the administrative job operations
type TrackerInterface interface {
	Pause(ctx context.Context, jobID, reason string) (*models.JobRecord, error)
	Resume(ctx context.Context, jobID string) (*models.JobRecord, error)
	Reset(ctx context.Context, jobID string) (*models.JobRecord, error)
	UpdateChunkSize(ctx context.Context, jobID string, newSize int) (*models.JobRecord, error)
}

// JobReader reads job snapshots
type JobReader interface {
	GetByID(ctx context.Context, jobID string) (*models.JobRecord, error)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	workRouter WorkRouterInterface
	tracker    TrackerInterface
	jobs       JobReader
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, workRouter WorkRouterInterface, tracker TrackerInterface, jobs JobReader) *Server {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 15 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 15 * time.Second
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 60 * time.Second
	}

	s := &Server{
		router:     mux.NewRouter(),
		workRouter: workRouter,
		tracker:    tracker,
		jobs:       jobs,
		config:     config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Middleware order matters
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/jobs", s.handleSubmitWork).Methods("POST")
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/pause", s.handlePauseJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/resume", s.handleResumeJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/reset", s.handleResetJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/chunk-size", s.handleUpdateChunkSize).Methods("PATCH")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "repo-ingest",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}
