package engine

import (
	"context"
	"testing"

	"github.com/lucidmem/lucid/internal/store"
)

// fixedEmbedder returns the same unit vector for every input.
type fixedEmbedder struct {
	model string
	vec   []float64
}

func (f *fixedEmbedder) Embed(context.Context, string) ([]float64, error) {
	return f.vec, nil
}
func (f *fixedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}
func (f *fixedEmbedder) Model() string   { return f.model }
func (f *fixedEmbedder) Dimensions() int { return len(f.vec) }

func TestEmbeddingMigration(t *testing.T) {
	e := testEngine(t)

	for i := 0; i < 10; i++ {
		m := &store.Memory{Content: "legacy memory", Kind: "context"}
		if err := e.DB.CreateMemory(m); err != nil {
			t.Fatalf("CreateMemory: %v", err)
		}
		if err := e.DB.SaveEmbedding(m.ID, []float64{1, 0}, "old"); err != nil {
			t.Fatalf("SaveEmbedding: %v", err)
		}
	}

	status, err := e.Status("new")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.NotMatching != 10 {
		t.Errorf("not matching = %d, want 10", status.NotMatching)
	}
	if status.Pending != 0 {
		t.Errorf("pending before purge = %d, want 0", status.Pending)
	}

	deleted, err := e.Purge("new")
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if deleted != 10 {
		t.Errorf("deleted = %d, want 10", deleted)
	}

	status, _ = e.Status("new")
	if status.NotMatching != 0 {
		t.Errorf("not matching after purge = %d, want 0", status.NotMatching)
	}
	if status.Pending != 10 {
		t.Errorf("pending after purge = %d, want 10", status.Pending)
	}

	// Lazy regeneration in batches under the new model
	e.SetEmbedder(&fixedEmbedder{model: "new", vec: []float64{0, 1}})
	total := 0
	for {
		n, err := e.RegenerateMissing(context.Background(), 4)
		if err != nil {
			t.Fatalf("RegenerateMissing: %v", err)
		}
		if n == 0 {
			break
		}
		total += n
	}
	if total != 10 {
		t.Errorf("regenerated = %d, want 10", total)
	}

	status, _ = e.Status("new")
	if status.NotMatching != 0 || status.Pending != 0 {
		t.Errorf("after regen: not matching = %d, pending = %d, want 0/0",
			status.NotMatching, status.Pending)
	}
}

func TestRegenerateMissingNoEmbedder(t *testing.T) {
	e := testEngine(t)
	e.DB.CreateMemory(&store.Memory{Content: "pending", Kind: "context"})

	n, err := e.RegenerateMissing(context.Background(), 10)
	if err != nil {
		t.Fatalf("RegenerateMissing: %v", err)
	}
	if n != 0 {
		t.Errorf("regenerated = %d, want 0 without embedder", n)
	}
}

func TestRegenerateMissingSurvivesBatchFailure(t *testing.T) {
	e := testEngine(t)
	e.DB.CreateMemory(&store.Memory{Content: "pending", Kind: "context"})
	e.SetEmbedder(&failingEmbedder{})

	// Both the batch call and the per-item fallback fail; the sweep logs and
	// reports zero progress without erroring out.
	n, err := e.RegenerateMissing(context.Background(), 10)
	if err != nil {
		t.Fatalf("RegenerateMissing: %v", err)
	}
	if n != 0 {
		t.Errorf("regenerated = %d, want 0", n)
	}
}

func TestVisualMigrationIndependent(t *testing.T) {
	e := testEngine(t)

	m := &store.Memory{Content: "textual", Kind: "context"}
	e.DB.CreateMemory(m)
	e.DB.SaveEmbedding(m.ID, []float64{1, 0}, "old")

	v := &store.VisualMemory{Caption: "a frame"}
	e.DB.CreateVisualMemory(v)
	e.DB.SaveVisualEmbedding(v.ID, []float64{0, 1}, "clip-old")

	if _, err := e.PurgeVisual("clip-new"); err != nil {
		t.Fatalf("PurgeVisual: %v", err)
	}

	textStatus, _ := e.Status("old")
	if textStatus.Pending != 0 || textStatus.NotMatching != 0 {
		t.Errorf("text space disturbed by visual purge: %+v", textStatus)
	}
	visStatus, _ := e.VisualStatus("clip-new")
	if visStatus.Pending != 1 {
		t.Errorf("visual pending = %d, want 1", visStatus.Pending)
	}
}
