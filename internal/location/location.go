package location

import (
	"fmt"
	"log"
	"time"

	"github.com/lucidmem/lucid/internal/store"
)

// DefaultCoAccessWindow bounds how far back co-access association formation
// looks when no shared task links two locations.
const DefaultCoAccessWindow = 30 * time.Minute

// Service is the location-memory surface: familiarity tracking, activity
// inference, co-access associations, decay, and merging.
type Service struct {
	DB             *store.DB
	CoAccessWindow time.Duration
	Decay          DecayOptions
	stopCh         chan struct{}
}

// NewService creates a Service with default tuning.
func NewService(db *store.DB) *Service {
	return &Service{
		DB:             db,
		CoAccessWindow: DefaultCoAccessWindow,
		Decay:          DefaultDecayOptions(),
		stopCh:         make(chan struct{}),
	}
}

// AccessOptions describes one location access.
type AccessOptions struct {
	ProjectPath string // optional project scope (absolute path)
	Description string // human description; replaces the stored one when non-empty
	Context     string // what the access was about
	Activity    string // explicit activity type, wins over inference
	Tool        string // tool name, lowest-precedence activity hint
	Task        string // task descriptor, used for co-access grouping
	Direct      bool   // the path was known, not found by searching
	SearchSaved bool   // retrieval of this location avoided a search
}

// RecordAccess records that a path was touched: upserts the location, bumps
// counters, recomputes familiarity from the new count (clearing decay),
// appends an access context, and reinforces co-access associations with
// locations touched in the same task or within the co-access window.
func (s *Service) RecordAccess(path string, opts AccessOptions) (*store.Location, error) {
	if path == "" {
		return nil, fmt.Errorf("record access: empty path")
	}
	now := time.Now().UnixMilli()

	var projectID string
	if opts.ProjectPath != "" {
		project, err := s.DB.EnsureProject(opts.ProjectPath)
		if err != nil {
			return nil, fmt.Errorf("record access: %w", err)
		}
		projectID = project.ID
	}

	loc, err := s.DB.GetLocationByPath(path, projectID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = &store.Location{
			Path:         path,
			ProjectID:    projectID,
			Description:  opts.Description,
			LastAccessed: now,
			CreatedAt:    now,
		}
		if err := s.DB.InsertLocation(loc); err != nil {
			return nil, err
		}
	}

	loc.AccessCount++
	if opts.Direct {
		loc.DirectAccessCount++
	}
	if opts.SearchSaved {
		loc.SearchSavedCount++
	}
	if opts.Description != "" {
		loc.Description = opts.Description
	}
	loc.Familiarity = Familiarity(loc.AccessCount)
	if loc.Familiarity > loc.PeakFamiliarity {
		loc.PeakFamiliarity = loc.Familiarity
	}
	loc.LastAccessed = now
	loc.LastDecayed = nil

	if err := s.DB.UpdateLocationOnAccess(loc); err != nil {
		return nil, err
	}

	activity := InferActivity(opts.Activity, opts.Context, opts.Tool)
	ctx := &store.LocationContext{
		LocationID: loc.ID,
		Context:    opts.Context,
		Activity:   activity,
		Direct:     opts.Direct,
		Task:       opts.Task,
		AccessedAt: now,
	}
	if err := s.DB.AddLocationContext(ctx); err != nil {
		return nil, err
	}

	s.reinforceCoAccess(loc, activity, opts.Task, now)

	return loc, nil
}

// coAccessDelta is the association increment for one co-occurrence, by what
// the two accesses share.
func coAccessDelta(sameTask, sameActivity bool) float64 {
	switch {
	case sameTask && sameActivity:
		return 0.20
	case sameTask:
		return 0.15
	case sameActivity:
		return 0.10
	default:
		return 0.05
	}
}

// reinforceCoAccess links the just-accessed location to others touched in
// the same task or within the co-access window. Association failures are
// logged, never fatal to the access itself.
func (s *Service) reinforceCoAccess(loc *store.Location, activity, task string, now int64) {
	window := s.CoAccessWindow
	if window <= 0 {
		window = DefaultCoAccessWindow
	}
	since := now - window.Milliseconds()

	candidates, err := s.DB.CoAccessCandidates(loc.ID, since, task)
	if err != nil {
		log.Printf("co-access: candidates for %s: %v", loc.Path, err)
		return
	}

	for _, c := range candidates {
		sameTask := task != "" && c.Task == task
		sameActivity := activity != ActivityUnknown && c.Activity == activity
		delta := coAccessDelta(sameTask, sameActivity)
		if err := s.DB.ReinforceLocationAssociation(loc.ID, c.LocationID, delta); err != nil {
			log.Printf("co-access: reinforce %d↔%d: %v", loc.ID, c.LocationID, err)
		}
	}
}

// Get returns the location at a path, or nil if unknown.
func (s *Service) Get(path string) (*store.Location, error) {
	return s.DB.GetLocationByPath(path, "")
}

// Find returns locations matching a path substring pattern.
func (s *Service) Find(pattern string) ([]store.Location, error) {
	return s.DB.FindLocations(pattern)
}

// All returns every known location, most familiar first.
func (s *Service) All() ([]store.Location, error) {
	return s.DB.ListLocations()
}

// Recent returns the n most recently accessed locations.
func (s *Service) Recent(n int) ([]store.Location, error) {
	return s.DB.RecentLocations(n)
}

// Stats summarizes the location store.
func (s *Service) Stats() (*store.LocationStats, error) {
	return s.DB.LocStats()
}

// Contexts returns the most recent access contexts for a path.
func (s *Service) Contexts(path string, limit int) ([]store.LocationContext, error) {
	loc, err := s.DB.GetLocationByPath(path, "")
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, nil
	}
	return s.DB.LocationContexts(loc.ID, limit)
}

// ByActivity returns locations accessed with the given activity type.
func (s *Service) ByActivity(activity string) ([]store.Location, error) {
	return s.DB.LocationsByActivity(activity)
}

// Pin excludes a location from decay and orphan detection. Returns false if
// the path is unknown.
func (s *Service) Pin(path string) (bool, error) {
	return s.DB.SetLocationPinned(path, true)
}

// Unpin re-enables decay and orphan detection for a location.
func (s *Service) Unpin(path string) (bool, error) {
	return s.DB.SetLocationPinned(path, false)
}

// Associated is one co-accessed neighbor of a seed location.
type Associated struct {
	Location store.Location `json:"location"`
	Strength float64        `json:"strength"`
}

// AssociatedByPath returns the seed's co-access neighbors ordered by edge
// strength descending, each with its current familiarity.
func (s *Service) AssociatedByPath(path string) ([]Associated, error) {
	loc, err := s.DB.GetLocationByPath(path, "")
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, nil
	}

	edges, err := s.DB.LocationAssociationsFor(loc.ID)
	if err != nil {
		return nil, err
	}

	var out []Associated
	for _, e := range edges {
		other, err := s.DB.GetLocationByID(e.Other(loc.ID))
		if err != nil {
			return nil, err
		}
		if other == nil {
			continue
		}
		out = append(out, Associated{Location: *other, Strength: e.Strength})
	}
	return out, nil
}
