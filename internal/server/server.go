// Package server exposes the agent runtime over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkern/psyche/internal/consolidate"
	"github.com/mkern/psyche/internal/emotion"
	"github.com/mkern/psyche/internal/pipeline"
	"github.com/mkern/psyche/internal/store"
)

// Server is the psyche HTTP API server.
type Server struct {
	db       *store.DB
	short    *store.ShortTerm
	emotions *emotion.State
	orch     *pipeline.Orchestrator
	worker   *consolidate.Worker

	router  chi.Router
	version string
	started time.Time
}

// New creates a Server over the assembled runtime.
func New(db *store.DB, short *store.ShortTerm, emotions *emotion.State,
	orch *pipeline.Orchestrator, worker *consolidate.Worker, version string) *Server {
	s := &Server{
		db:       db,
		short:    short,
		emotions: emotions,
		orch:     orch,
		worker:   worker,
		version:  version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/chat", s.handleChat)
		r.Post("/consolidate", s.handleConsolidate)
		r.Get("/emotions", s.handleEmotions)
		r.Get("/memory/short-term", s.handleShortTerm)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}
	count, _ := s.short.Count()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"version":    s.version,
		"uptime":     time.Since(s.started).Seconds(),
		"db":         dbOK,
		"db_path":    s.db.Path,
		"short_term": count,
	})
}
