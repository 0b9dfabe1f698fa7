package location

import (
	"testing"
	"time"
)

const dayMs = int64(24 * time.Hour / time.Millisecond)

// ageLocation backdates a location's last access so decay sees it as stale.
func ageLocation(t *testing.T, s *Service, path string, days int) {
	t.Helper()
	at := time.Now().UnixMilli() - int64(days)*dayMs
	if _, err := s.DB.Exec(
		"UPDATE locations SET last_accessed = ?, last_decayed = NULL WHERE path = ?", at, path,
	); err != nil {
		t.Fatalf("age location: %v", err)
	}
}

func TestDecayAfterStaleWindow(t *testing.T) {
	s := testService(t)

	// 10 accesses → familiarity 0.5
	for i := 0; i < 10; i++ {
		s.RecordAccess("/decay.go", AccessOptions{})
	}
	ageLocation(t, s, "/decay.go", 31)

	changed, err := s.ApplyFamiliarityDecay(DefaultDecayOptions())
	if err != nil {
		t.Fatalf("ApplyFamiliarityDecay: %v", err)
	}
	if changed != 1 {
		t.Errorf("changed = %d, want 1", changed)
	}

	loc, _ := s.Get("/decay.go")
	if loc.Familiarity < 0.44 || loc.Familiarity > 0.46 {
		t.Errorf("familiarity = %v, want 0.45 (0.5·0.9)", loc.Familiarity)
	}
}

func TestDecayIdempotentWithinWindow(t *testing.T) {
	s := testService(t)

	for i := 0; i < 10; i++ {
		s.RecordAccess("/idem.go", AccessOptions{})
	}
	ageLocation(t, s, "/idem.go", 31)

	if _, err := s.ApplyFamiliarityDecay(DefaultDecayOptions()); err != nil {
		t.Fatalf("first decay: %v", err)
	}
	loc, _ := s.Get("/idem.go")
	after := loc.Familiarity

	// Second immediate run: no intervening access, same stale window.
	changed, err := s.ApplyFamiliarityDecay(DefaultDecayOptions())
	if err != nil {
		t.Fatalf("second decay: %v", err)
	}
	if changed != 0 {
		t.Errorf("second run changed = %d, want 0", changed)
	}
	loc, _ = s.Get("/idem.go")
	if loc.Familiarity != after {
		t.Errorf("familiarity moved on second run: %v → %v", after, loc.Familiarity)
	}
}

func TestDecaySkipsFreshLocations(t *testing.T) {
	s := testService(t)

	s.RecordAccess("/fresh.go", AccessOptions{})

	changed, err := s.ApplyFamiliarityDecay(DefaultDecayOptions())
	if err != nil {
		t.Fatalf("ApplyFamiliarityDecay: %v", err)
	}
	if changed != 0 {
		t.Errorf("changed = %d, want 0 for fresh location", changed)
	}
}

func TestDecayExemptsPinned(t *testing.T) {
	s := testService(t)

	for i := 0; i < 10; i++ {
		s.RecordAccess("/pinned.go", AccessOptions{})
	}
	s.Pin("/pinned.go")
	ageLocation(t, s, "/pinned.go", 90)

	changed, _ := s.ApplyFamiliarityDecay(DefaultDecayOptions())
	if changed != 0 {
		t.Errorf("changed = %d, want 0 (pinned exempt)", changed)
	}
	loc, _ := s.Get("/pinned.go")
	if loc.Familiarity != 0.5 {
		t.Errorf("pinned familiarity moved: %v", loc.Familiarity)
	}
}

func TestDecayStabilizesAtFloor(t *testing.T) {
	s := testService(t)

	for i := 0; i < 10; i++ {
		s.RecordAccess("/floor.go", AccessOptions{})
	}

	// Simulate ~1000 days of hourly sweeps: one effective decay per stale
	// window, each time re-aged with the decay stamp cleared.
	for i := 0; i < 33; i++ {
		ageLocation(t, s, "/floor.go", 31)
		if _, err := s.ApplyFamiliarityDecay(DefaultDecayOptions()); err != nil {
			t.Fatalf("decay %d: %v", i, err)
		}
	}

	loc, _ := s.Get("/floor.go")
	if loc.Familiarity != 0.1 {
		t.Errorf("familiarity = %v, want floor 0.1 (never below)", loc.Familiarity)
	}
}

func TestDecayStickyFloorForWellKnown(t *testing.T) {
	s := testService(t)

	// 100 accesses: familiarity ≈0.91, past the sticky threshold 0.8.
	for i := 0; i < 100; i++ {
		s.RecordAccess("/wellknown.go", AccessOptions{})
	}

	for i := 0; i < 40; i++ {
		ageLocation(t, s, "/wellknown.go", 31)
		if _, err := s.ApplyFamiliarityDecay(DefaultDecayOptions()); err != nil {
			t.Fatalf("decay %d: %v", i, err)
		}
	}

	loc, _ := s.Get("/wellknown.go")
	if loc.Familiarity != 0.4 {
		t.Errorf("familiarity = %v, want well-known floor 0.4", loc.Familiarity)
	}
}

func TestAccessResetsDecay(t *testing.T) {
	s := testService(t)

	for i := 0; i < 10; i++ {
		s.RecordAccess("/revisit.go", AccessOptions{})
	}
	ageLocation(t, s, "/revisit.go", 31)
	s.ApplyFamiliarityDecay(DefaultDecayOptions())

	// A new access recomputes familiarity from the count.
	loc, err := s.RecordAccess("/revisit.go", AccessOptions{})
	if err != nil {
		t.Fatalf("RecordAccess: %v", err)
	}
	want := Familiarity(11)
	if loc.Familiarity != want {
		t.Errorf("familiarity = %v, want %v (recomputed from count)", loc.Familiarity, want)
	}
	if loc.LastDecayed != nil {
		t.Error("decay stamp should clear on access")
	}
}

func TestOrphanedLocations(t *testing.T) {
	s := testService(t)

	// Familiar and stale → orphan
	for i := 0; i < 10; i++ {
		s.RecordAccess("/orphan.go", AccessOptions{})
	}
	ageLocation(t, s, "/orphan.go", 90)

	// Barely known and stale → not an orphan
	s.RecordAccess("/barely.go", AccessOptions{})
	ageLocation(t, s, "/barely.go", 90)

	// Familiar and stale, but pinned → not an orphan
	for i := 0; i < 10; i++ {
		s.RecordAccess("/keeper.go", AccessOptions{})
	}
	s.Pin("/keeper.go")
	ageLocation(t, s, "/keeper.go", 90)

	// Familiar and fresh → not an orphan
	for i := 0; i < 10; i++ {
		s.RecordAccess("/active.go", AccessOptions{})
	}

	orphans, err := s.Orphaned(DefaultOrphanOptions())
	if err != nil {
		t.Fatalf("Orphaned: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("orphans = %d, want 1", len(orphans))
	}
	if orphans[0].Location.Path != "/orphan.go" {
		t.Errorf("orphan = %q", orphans[0].Location.Path)
	}
	if orphans[0].IdleDays < 89 {
		t.Errorf("idle days = %d, want ≈90", orphans[0].IdleDays)
	}
}
