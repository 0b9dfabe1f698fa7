package location

import (
	"math"
	"testing"

	"github.com/lucidmem/lucid/internal/store"
)

func TestMergeRenamesWhenOnlyOldExists(t *testing.T) {
	s := testService(t)

	for i := 0; i < 5; i++ {
		s.RecordAccess("/old/path.go", AccessOptions{})
	}
	neighbor, _ := s.RecordAccess("/neighbor.go", AccessOptions{})

	merged, err := s.Merge("/old/path.go", "/new/path.go")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged == nil {
		t.Fatal("expected merged location")
	}
	if merged.Path != "/new/path.go" {
		t.Errorf("path = %q, want /new/path.go", merged.Path)
	}
	if merged.AccessCount != 5 {
		t.Errorf("access count = %d, want 5 (preserved)", merged.AccessCount)
	}

	if old, _ := s.Get("/old/path.go"); old != nil {
		t.Error("old path still present after rename")
	}

	// Associations ride along with the rename
	assocs, _ := s.AssociatedByPath("/new/path.go")
	found := false
	for _, a := range assocs {
		if a.Location.ID == neighbor.ID {
			found = true
		}
	}
	if !found {
		t.Error("association lost in rename")
	}
}

func TestMergeCombinesWhenBothExist(t *testing.T) {
	s := testService(t)

	for i := 0; i < 10; i++ {
		s.RecordAccess("/old.go", AccessOptions{})
	}
	for i := 0; i < 3; i++ {
		s.RecordAccess("/new.go", AccessOptions{})
	}
	third, _ := s.RecordAccess("/third.go", AccessOptions{})

	// Give the old half a strong edge to a third location
	s.DB.ReinforceLocationAssociation(mustGet(t, s, "/old.go").ID, third.ID, 0.7)

	oldFam := mustGet(t, s, "/old.go").Familiarity

	merged, err := s.Merge("/old.go", "/new.go")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged == nil {
		t.Fatal("expected merged location")
	}

	if merged.AccessCount != 13 {
		t.Errorf("access count = %d, want 13 (summed)", merged.AccessCount)
	}
	if math.Abs(merged.Familiarity-oldFam) > 1e-9 {
		t.Errorf("familiarity = %v, want max %v", merged.Familiarity, oldFam)
	}

	if old, _ := s.Get("/old.go"); old != nil {
		t.Error("old location survived merge")
	}

	// Contexts moved over: 10 + 3
	contexts, _ := s.DB.LocationContexts(merged.ID, 50)
	if len(contexts) != 13 {
		t.Errorf("contexts = %d, want 13 (concatenated)", len(contexts))
	}

	// The edge to the third location survived with summed strength
	assocs, _ := s.AssociatedByPath("/new.go")
	var strength float64
	for _, a := range assocs {
		if a.Location.ID == third.ID {
			strength = a.Strength
		}
	}
	if strength < 0.7 {
		t.Errorf("merged edge strength = %v, want ≥ 0.7", strength)
	}
}

func TestMergeNeitherExists(t *testing.T) {
	s := testService(t)

	merged, err := s.Merge("/ghost-a.go", "/ghost-b.go")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged != nil {
		t.Errorf("expected nil for unknown pair, got %+v", merged)
	}
}

func TestMergeOnlyNewExists(t *testing.T) {
	s := testService(t)

	s.RecordAccess("/exists.go", AccessOptions{})

	merged, err := s.Merge("/ghost.go", "/exists.go")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged == nil || merged.Path != "/exists.go" {
		t.Errorf("merged = %+v, want the existing location", merged)
	}
}

func mustGet(t *testing.T, s *Service, path string) *store.Location {
	t.Helper()
	loc, err := s.Get(path)
	if err != nil || loc == nil {
		t.Fatalf("Get(%s): %v %v", path, loc, err)
	}
	return loc
}
