package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lucidmem/lucid/internal/engine"
	"github.com/lucidmem/lucid/internal/location"
	"github.com/lucidmem/lucid/internal/store"
)

// Server is the lucid HTTP API server: a thin JSON layer over the retrieval
// engine and the location service, for tool dispatch.
type Server struct {
	db        *store.DB
	engine    *engine.Engine
	locations *location.Service
	router    chi.Router
	version   string
	started   time.Time
}

// New creates a new Server.
func New(db *store.DB, eng *engine.Engine, locs *location.Service, version string) *Server {
	s := &Server{
		db:        db,
		engine:    eng,
		locations: locs,
		version:   version,
		started:   time.Now(),
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

		r.Post("/memories", s.handleStoreMemory)
		r.Get("/memories", s.handleQueryMemories)
		r.Delete("/memories/{memoryID}", s.handleForgetMemory)
		r.Get("/context", s.handleContext)
		r.Get("/stats", s.handleStats)
		r.Post("/associations", s.handleAssociate)

		r.Post("/migrate/purge", s.handleMigratePurge)
		r.Get("/migrate/status", s.handleMigrateStatus)

		r.Post("/locations/record", s.handleRecordLocation)
		r.Get("/locations", s.handleListLocations)
		r.Get("/locations/associated", s.handleAssociatedLocations)
		r.Get("/locations/orphaned", s.handleOrphanedLocations)
		r.Post("/locations/decay", s.handleDecayLocations)
		r.Post("/locations/merge", s.handleMergeLocations)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
