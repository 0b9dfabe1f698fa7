package location

import (
	"fmt"

	"github.com/lucidmem/lucid/internal/store"
)

// Merge handles a rename: the knowledge learned about oldPath moves to
// newPath. If only oldPath is known it is renamed in place, keeping counters,
// contexts, and associations. If both exist they are combined: access counts
// sum, familiarity takes the max, associations union with strengths summed
// (capped at 1.0), contexts concatenate, and the old row is deleted.
//
// Returns nil (no error) when neither path is known — a negative result,
// not a failure.
func (s *Service) Merge(oldPath, newPath string) (*store.Location, error) {
	oldLoc, err := s.DB.GetLocationByPath(oldPath, "")
	if err != nil {
		return nil, err
	}
	newLoc, err := s.DB.GetLocationByPath(newPath, "")
	if err != nil {
		return nil, err
	}

	switch {
	case oldLoc == nil && newLoc == nil:
		return nil, nil

	case oldLoc != nil && newLoc == nil:
		if err := s.DB.RenameLocation(oldLoc.ID, newPath); err != nil {
			return nil, err
		}
		oldLoc.Path = newPath
		return oldLoc, nil

	case oldLoc == nil:
		// Nothing to fold in; the new path already carries the knowledge.
		return newLoc, nil
	}

	newLoc.AccessCount += oldLoc.AccessCount
	newLoc.DirectAccessCount += oldLoc.DirectAccessCount
	newLoc.SearchSavedCount += oldLoc.SearchSavedCount
	if oldLoc.Familiarity > newLoc.Familiarity {
		newLoc.Familiarity = oldLoc.Familiarity
	}
	if oldLoc.PeakFamiliarity > newLoc.PeakFamiliarity {
		newLoc.PeakFamiliarity = oldLoc.PeakFamiliarity
	}
	if oldLoc.LastAccessed > newLoc.LastAccessed {
		newLoc.LastAccessed = oldLoc.LastAccessed
	}
	if newLoc.Description == "" {
		newLoc.Description = oldLoc.Description
	}
	newLoc.Pinned = newLoc.Pinned || oldLoc.Pinned

	if err := s.DB.UpdateLocationOnAccess(newLoc); err != nil {
		return nil, fmt.Errorf("merge update: %w", err)
	}
	if newLoc.Pinned {
		if _, err := s.DB.SetLocationPinned(newLoc.Path, true); err != nil {
			return nil, err
		}
	}

	// Union associations: every old edge is re-pointed at the survivor by
	// summing its strength onto the corresponding new edge.
	oldEdges, err := s.DB.LocationAssociationsFor(oldLoc.ID)
	if err != nil {
		return nil, err
	}
	for _, e := range oldEdges {
		other := e.Other(oldLoc.ID)
		if other == newLoc.ID {
			continue // edge between the two halves dissolves
		}
		if err := s.DB.ReinforceLocationAssociation(newLoc.ID, other, e.Strength); err != nil {
			return nil, fmt.Errorf("merge associations: %w", err)
		}
	}

	if err := s.DB.MoveLocationContexts(oldLoc.ID, newLoc.ID); err != nil {
		return nil, err
	}
	if err := s.DB.DeleteLocation(oldLoc.ID); err != nil {
		return nil, err
	}
	return newLoc, nil
}
