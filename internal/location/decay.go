package location

import (
	"log"
	"time"

	"github.com/lucidmem/lucid/internal/store"
)

// DecayOptions tunes the passive familiarity decay sweep.
type DecayOptions struct {
	Factor          float64 // fraction removed per sweep
	StickyThreshold float64 // peak familiarity that earns the higher floor
	Floor           float64 // floor for ordinary locations
	WellKnownFloor  float64 // floor for once-well-known locations
	StaleDays       int     // minimum idle days before decay applies
}

// DefaultDecayOptions returns the standard decay tuning.
func DefaultDecayOptions() DecayOptions {
	return DecayOptions{
		Factor:          0.1,
		StickyThreshold: 0.8,
		Floor:           0.1,
		WellKnownFloor:  0.4,
		StaleDays:       30,
	}
}

// OrphanOptions tunes orphan detection.
type OrphanOptions struct {
	MinFamiliarity float64 // only once-learned locations count
	StaleDays      int     // idle days before a location is an orphan
}

// DefaultOrphanOptions returns the standard orphan tuning.
func DefaultOrphanOptions() OrphanOptions {
	return OrphanOptions{MinFamiliarity: 0.4, StaleDays: 60}
}

// ApplyFamiliarityDecay multiplies down the familiarity of every stale,
// unpinned location, bounded below by a floor. Locations whose familiarity
// ever crossed the sticky threshold keep the higher well-known floor.
//
// The sweep is idempotent within a stale window: a location decayed once is
// skipped until another stale window passes without access, so back-to-back
// runs change nothing the first run didn't. Returns the number changed.
func (s *Service) ApplyFamiliarityDecay(opts DecayOptions) (int, error) {
	now := time.Now().UnixMilli()
	staleMs := int64(opts.StaleDays) * 24 * int64(time.Hour/time.Millisecond)
	cutoff := now - staleMs

	stale, err := s.DB.StaleLocations(cutoff)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, loc := range stale {
		if loc.LastDecayed != nil && *loc.LastDecayed > cutoff {
			continue
		}

		floor := opts.Floor
		if loc.PeakFamiliarity > opts.StickyThreshold {
			floor = opts.WellKnownFloor
		}

		decayed := loc.Familiarity * (1 - opts.Factor)
		if decayed < floor {
			decayed = floor
		}
		if decayed == loc.Familiarity {
			// Already at the floor; stamp the sweep so the next run skips it.
			if err := s.DB.SetLocationFamiliarity(loc.ID, decayed, now); err != nil {
				return changed, err
			}
			continue
		}

		if err := s.DB.SetLocationFamiliarity(loc.ID, decayed, now); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// Orphaned returns once-familiar locations that have gone stale: familiarity
// still at or above the minimum but untouched past the threshold. Pinned
// locations never show up.
func (s *Service) Orphaned(opts OrphanOptions) ([]OrphanedLocation, error) {
	now := time.Now().UnixMilli()
	staleMs := int64(opts.StaleDays) * 24 * int64(time.Hour/time.Millisecond)
	cutoff := now - staleMs

	stale, err := s.DB.StaleLocations(cutoff)
	if err != nil {
		return nil, err
	}

	var orphans []OrphanedLocation
	for _, loc := range stale {
		if loc.Familiarity < opts.MinFamiliarity {
			continue
		}
		idleDays := int((now - loc.LastAccessed) / (24 * int64(time.Hour/time.Millisecond)))
		orphans = append(orphans, OrphanedLocation{Location: loc, IdleDays: idleDays})
	}
	return orphans, nil
}

// OrphanedLocation pairs a stale location with how long it has been idle.
type OrphanedLocation struct {
	Location store.Location `json:"location"`
	IdleDays int            `json:"idle_days"`
}

// StartDecayTimer runs the decay sweep on a fixed cadence until Stop.
// Sweep errors are logged and never propagate.
func (s *Service) StartDecayTimer(interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if changed, err := s.ApplyFamiliarityDecay(s.Decay); err != nil {
					log.Printf("decay error: %v", err)
				} else if changed > 0 {
					log.Printf("decay: updated %d locations", changed)
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the service's background goroutines.
func (s *Service) Stop() {
	close(s.stopCh)
}
