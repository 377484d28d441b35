// Package server provides the HTTP API of the screener: screen job
// submission and status, condition/strategy discovery, run history and the
// event streaming endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Server is the HTTP server
type Server struct {
	router chi.Router
	http   *http.Server
	log    zerolog.Logger
}

// Deps bundles everything the router needs
type Deps struct {
	Handlers *Handlers
	Events   *EventsStreamHandler
	WS       *WSHandler
	System   *SystemHandlers
}

// New creates the HTTP server with all routes registered
func New(port int, deps Deps, log zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	deps.Handlers.RegisterRoutes(r)
	r.Get("/api/events/stream", deps.Events.ServeHTTP)
	r.Get("/api/events/ws", deps.WS.ServeHTTP)
	r.Get("/api/system/status", deps.System.Status)
	r.Post("/api/system/backup", deps.System.TriggerBackup)
	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Server{
		router: r,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log.With().Str("component", "http_server").Logger(),
	}
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
