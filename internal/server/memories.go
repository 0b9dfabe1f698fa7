package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lucidmem/lucid/internal/engine"
	"github.com/lucidmem/lucid/internal/store"
)

func (s *Server) handleStoreMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content         string   `json:"content"`
		Gist            string   `json:"gist"`
		Kind            string   `json:"kind"`
		EmotionalWeight float64  `json:"emotional_weight"`
		Tags            []string `json:"tags"`
		ProjectPath     string   `json:"project_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	var projectID string
	if req.ProjectPath != "" {
		project, err := s.db.EnsureProject(req.ProjectPath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		projectID = project.ID
	}

	m := &store.Memory{
		Content:         req.Content,
		Gist:            req.Gist,
		Kind:            req.Kind,
		EmotionalWeight: req.EmotionalWeight,
		Tags:            req.Tags,
		ProjectID:       projectID,
	}
	if err := s.engine.Store(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": m.ID, "gist": m.Gist})
}

func (s *Server) handleQueryMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := s.retrievalDefaults()
	opts.Kind = q.Get("kind")
	if p := q.Get("project_path"); p != "" {
		project, err := s.db.GetProjectByPath(p)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if project == nil {
			writeJSON(w, http.StatusOK, &engine.RetrievalResult{Results: []engine.Result{}})
			return
		}
		opts.ProjectID = project.ID
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.MaxResults = n
		}
	}

	result, err := s.engine.Retrieve(r.Context(), q.Get("q"), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.Results == nil {
		result.Results = []engine.Result{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleForgetMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")
	if err := s.engine.Forget(id); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(w, http.StatusNotFound, "memory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "forgotten"})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := engine.ContextOptions{Kind: q.Get("kind")}
	if budget := q.Get("budget"); budget != "" {
		if n, err := strconv.Atoi(budget); err == nil {
			opts.TokenBudget = n
		}
	}
	if p := q.Get("project_path"); p != "" {
		project, err := s.db.GetProjectByPath(p)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if project != nil {
			opts.ProjectID = project.ID
		}
	}

	result, err := s.engine.AssembleContext(r.Context(), q.Get("task"), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAssociate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceID string  `json:"source_id"`
		TargetID string  `json:"target_id"`
		Strength float64 `json:"strength"`
		Kind     string  `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.engine.Associate(req.SourceID, req.TargetID, req.Strength, req.Kind); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "associated"})
}

func (s *Server) handleMigrateStatus(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	if model == "" && s.engine.Embedder != nil {
		model = s.engine.Embedder.Model()
	}
	if model == "" {
		writeError(w, http.StatusBadRequest, "model required")
		return
	}

	var (
		status *engine.MigrationStatus
		err    error
	)
	if r.URL.Query().Get("visual") == "true" {
		status, err = s.engine.VisualStatus(model)
	} else {
		status, err = s.engine.Status(model)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleMigratePurge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model  string `json:"model"`
		Visual bool   `json:"visual"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model required")
		return
	}

	var (
		deleted int
		err     error
	)
	if req.Visual {
		deleted, err = s.engine.PurgeVisual(req.Model)
	} else {
		deleted, err = s.engine.Purge(req.Model)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// retrievalDefaults returns engine.DefaultOptions(); the retrieval section of
// the config file is not applied here. Overridden per request by query
// parameters.
func (s *Server) retrievalDefaults() engine.Options {
	return engine.DefaultOptions()
}
