package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/lucidmem/lucid/internal/location"
	"github.com/lucidmem/lucid/internal/store"
)

func (s *Server) handleRecordLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path        string `json:"path"`
		ProjectPath string `json:"project_path"`
		Description string `json:"description"`
		Context     string `json:"context"`
		Activity    string `json:"activity"`
		Tool        string `json:"tool"`
		Task        string `json:"task"`
		Direct      *bool  `json:"direct"`
		SearchSaved bool   `json:"search_saved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path required")
		return
	}

	direct := true
	if req.Direct != nil {
		direct = *req.Direct
	}

	loc, err := s.locations.RecordAccess(req.Path, location.AccessOptions{
		ProjectPath: req.ProjectPath,
		Description: req.Description,
		Context:     req.Context,
		Activity:    req.Activity,
		Tool:        req.Tool,
		Task:        req.Task,
		Direct:      direct,
		SearchSaved: req.SearchSaved,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		locs []store.Location
		err  error
	)
	switch {
	case q.Get("path") != "":
		var loc *store.Location
		loc, err = s.locations.Get(q.Get("path"))
		if err == nil {
			if loc == nil {
				writeError(w, http.StatusNotFound, "location not found")
				return
			}
			writeJSON(w, http.StatusOK, loc)
			return
		}
	case q.Get("find") != "":
		locs, err = s.locations.Find(q.Get("find"))
	case q.Get("activity") != "":
		locs, err = s.locations.ByActivity(q.Get("activity"))
	case q.Get("recent") != "":
		n, _ := strconv.Atoi(q.Get("recent"))
		locs, err = s.locations.Recent(n)
	default:
		locs, err = s.locations.All()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if locs == nil {
		locs = []store.Location{}
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *Server) handleAssociatedLocations(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path required")
		return
	}
	assocs, err := s.locations.AssociatedByPath(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if assocs == nil {
		assocs = []location.Associated{}
	}
	writeJSON(w, http.StatusOK, assocs)
}

func (s *Server) handleOrphanedLocations(w http.ResponseWriter, r *http.Request) {
	orphans, err := s.locations.Orphaned(location.DefaultOrphanOptions())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if orphans == nil {
		orphans = []location.OrphanedLocation{}
	}
	writeJSON(w, http.StatusOK, orphans)
}

func (s *Server) handleDecayLocations(w http.ResponseWriter, r *http.Request) {
	changed, err := s.locations.ApplyFamiliarityDecay(s.locations.Decay)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
}

func (s *Server) handleMergeLocations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPath string `json:"old_path"`
		NewPath string `json:"new_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OldPath == "" || req.NewPath == "" {
		writeError(w, http.StatusBadRequest, "old_path and new_path required")
		return
	}

	merged, err := s.locations.Merge(req.OldPath, req.NewPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if merged == nil {
		writeError(w, http.StatusNotFound, "neither path known")
		return
	}
	writeJSON(w, http.StatusOK, merged)
}
