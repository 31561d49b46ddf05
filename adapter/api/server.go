// Package api provides the HTTP API for the scheduler.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Server is the HTTP API server.
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	handler *Handler
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, handler *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		logger:  logger,
		handler: handler,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	h := s.handler

	// Health check
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Auth (register/login/refresh are the only unauthenticated routes)
	s.mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	s.mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	s.mux.HandleFunc("POST /api/v1/auth/refresh-token", h.Refresh)
	s.mux.HandleFunc("PUT /api/v1/auth/sleep-schedule", h.authed(h.UpdateSleepSchedule))

	// Tasks
	s.mux.HandleFunc("POST /api/v1/tasks", h.authed(h.CreateTask))
	s.mux.HandleFunc("GET /api/v1/tasks", h.authed(h.ListTasks))
	s.mux.HandleFunc("GET /api/v1/tasks/{taskID}", h.authed(h.GetTask))
	s.mux.HandleFunc("PUT /api/v1/tasks/{taskID}", h.authed(h.UpdateTask))
	s.mux.HandleFunc("DELETE /api/v1/tasks/{taskID}", h.authed(h.DeleteTask))
	s.mux.HandleFunc("POST /api/v1/tasks/{taskID}/reschedule", h.authed(h.RescheduleTask))

	// Schedule
	s.mux.HandleFunc("POST /api/v1/schedule", h.authed(h.AddScheduleItem))
	s.mux.HandleFunc("GET /api/v1/schedule", h.authed(h.ListSchedule))
	s.mux.HandleFunc("DELETE /api/v1/schedule/{itemID}", h.authed(h.RemoveScheduleItem))

	// Energy
	s.mux.HandleFunc("POST /api/v1/energy", h.authed(h.RecordEnergy))
	s.mux.HandleFunc("GET /api/v1/energy", h.authed(h.GetEnergy))
	s.mux.HandleFunc("GET /api/v1/energy/patterns", h.authed(h.GetEnergyPatterns))
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes a JSON error response in the `{"error": ...}` shape
// clients key their error handling on.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
