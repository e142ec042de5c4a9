// Package server provides the HTTP API for the booking capture engine.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/knexpress/booking-capture/internal/app"
	"github.com/knexpress/booking-capture/internal/store"
)

// Config holds the server configuration.
type Config struct {
	App       *app.App
	Store     *store.Store
	Logger    *slog.Logger
	StaticDir string
}

// Server is the HTTP server for the capture engine.
type Server struct {
	config Config
	logger *slog.Logger
	mux    *http.ServeMux
	start  time.Time
}

// New creates a Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: config,
		logger: logger,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if s.config.Store != nil {
		s.mux.HandleFunc("POST /api/bookings", s.handleCreateBooking)
		s.mux.HandleFunc("GET /api/bookings", s.handleListBookings)
		s.mux.HandleFunc("GET /api/bookings/{id}", s.handleGetBooking)
		s.mux.HandleFunc("GET /api/bookings/{id}/artifacts", s.handleListArtifacts)
		s.mux.HandleFunc("GET /api/artifacts/{id}/image", s.handleArtifactImage)
	}

	if s.config.App != nil {
		s.mux.HandleFunc("POST /api/sessions", s.handleStartSession)
		s.mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionState)
		s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleCancelSession)
		s.mux.HandleFunc("POST /api/sessions/{id}/manual", s.handleManualSubmit)

		s.mux.Handle("GET /api/events", NewEventsHandler(s.config.App.Events(), s.logger))
		s.mux.Handle("GET /api/stream", NewStreamHandler(s.config.App.Camera()))
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth reports process health and capture capabilities.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	liveness := false
	if s.config.App != nil {
		liveness = s.config.App.LivenessAvailable()
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime":   time.Since(s.start).String(),
		"liveness": liveness,
	})
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
