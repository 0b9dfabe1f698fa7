package store

import (
	"testing"
)

func TestSaveAndGetEmbedding(t *testing.T) {
	db := testDB(t)

	m := &Memory{Content: "embedded memory", Kind: "context"}
	db.CreateMemory(m)

	vec := []float64{0.6, 0.8, 0}
	if err := db.SaveEmbedding(m.ID, vec, "bge-base-en-v1.5"); err != nil {
		t.Fatalf("SaveEmbedding: %v", err)
	}

	got, err := db.GetEmbedding(m.ID)
	if err != nil {
		t.Fatalf("GetEmbedding: %v", err)
	}
	if got == nil {
		t.Fatal("expected embedding, got nil")
	}
	if got.Model != "bge-base-en-v1.5" {
		t.Errorf("model = %q", got.Model)
	}
	if got.Dimensions != 3 {
		t.Errorf("dimensions = %d, want 3", got.Dimensions)
	}
	for i, v := range vec {
		if got.Vector[i] != v {
			t.Errorf("vector[%d] = %f, want %f", i, got.Vector[i], v)
		}
	}
}

func TestReplaceEmbeddingChangesDimensions(t *testing.T) {
	db := testDB(t)

	m := &Memory{Content: "m", Kind: "context"}
	db.CreateMemory(m)

	db.SaveEmbedding(m.ID, []float64{1, 0, 0}, "old")
	if err := db.SaveEmbedding(m.ID, []float64{0.5, 0.5, 0.5, 0.5}, "new"); err != nil {
		t.Fatalf("replace embedding: %v", err)
	}

	got, _ := db.GetEmbedding(m.ID)
	if got.Dimensions != 4 {
		t.Errorf("dimensions = %d, want 4 after replacement", got.Dimensions)
	}
	if got.Model != "new" {
		t.Errorf("model = %q, want new", got.Model)
	}
}

func TestMigrationRoundTrip(t *testing.T) {
	db := testDB(t)

	// Store 10 memories with model "old"
	for i := 0; i < 10; i++ {
		m := &Memory{Content: "memory", Kind: "context"}
		db.CreateMemory(m)
		if err := db.SaveEmbedding(m.ID, []float64{1, 0}, "old"); err != nil {
			t.Fatalf("SaveEmbedding: %v", err)
		}
	}

	count, err := db.CountEmbeddingsNotMatching("new")
	if err != nil {
		t.Fatalf("CountEmbeddingsNotMatching: %v", err)
	}
	if count != 10 {
		t.Errorf("count not matching = %d, want 10", count)
	}

	deleted, err := db.DeleteEmbeddingsNotMatching("new")
	if err != nil {
		t.Fatalf("DeleteEmbeddingsNotMatching: %v", err)
	}
	if deleted != count {
		t.Errorf("deleted = %d, want %d", deleted, count)
	}

	pending, err := db.PendingEmbeddingCount()
	if err != nil {
		t.Fatalf("PendingEmbeddingCount: %v", err)
	}
	if pending != 10 {
		t.Errorf("pending = %d, want 10", pending)
	}

	remaining, _ := db.CountEmbeddingsNotMatching("new")
	if remaining != 0 {
		t.Errorf("count after purge = %d, want 0", remaining)
	}

	// Regenerate with the new model
	missing, err := db.MemoriesWithoutEmbeddings(100)
	if err != nil {
		t.Fatalf("MemoriesWithoutEmbeddings: %v", err)
	}
	if len(missing) != 10 {
		t.Fatalf("missing = %d, want 10", len(missing))
	}
	for _, m := range missing {
		db.SaveEmbedding(m.ID, []float64{0, 1}, "new")
	}

	pending, _ = db.PendingEmbeddingCount()
	if pending != 0 {
		t.Errorf("pending after regen = %d, want 0", pending)
	}
	count, _ = db.CountEmbeddingsNotMatching("new")
	if count != 0 {
		t.Errorf("not matching after regen = %d, want 0", count)
	}
}

func TestMemoriesWithoutEmbeddingsLimit(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 5; i++ {
		db.CreateMemory(&Memory{Content: "pending", Kind: "context"})
	}

	batch, err := db.MemoriesWithoutEmbeddings(3)
	if err != nil {
		t.Fatalf("MemoriesWithoutEmbeddings: %v", err)
	}
	if len(batch) != 3 {
		t.Errorf("batch = %d, want 3", len(batch))
	}
}

func TestVisualSpaceIndependent(t *testing.T) {
	db := testDB(t)

	m := &Memory{Content: "textual", Kind: "context"}
	db.CreateMemory(m)
	db.SaveEmbedding(m.ID, []float64{1, 0}, "text-old")

	v := &VisualMemory{Caption: "a frame"}
	if err := db.CreateVisualMemory(v); err != nil {
		t.Fatalf("CreateVisualMemory: %v", err)
	}
	if err := db.SaveVisualEmbedding(v.ID, []float64{0, 1}, "clip-old"); err != nil {
		t.Fatalf("SaveVisualEmbedding: %v", err)
	}

	// Migrating the visual space must not touch the textual one.
	deleted, err := db.DeleteVisualEmbeddingsNotMatching("clip-new")
	if err != nil {
		t.Fatalf("DeleteVisualEmbeddingsNotMatching: %v", err)
	}
	if deleted != 1 {
		t.Errorf("visual deleted = %d, want 1", deleted)
	}

	if emb, _ := db.GetEmbedding(m.ID); emb == nil {
		t.Error("textual embedding lost during visual migration")
	}
	pending, _ := db.PendingVisualEmbeddingCount()
	if pending != 1 {
		t.Errorf("visual pending = %d, want 1", pending)
	}
	textPending, _ := db.PendingEmbeddingCount()
	if textPending != 0 {
		t.Errorf("text pending = %d, want 0", textPending)
	}
}

func TestVectorCodecRoundTrip(t *testing.T) {
	vec := []float64{0.123456789, -1, 0, 1e-12}
	got := decodeVector(encodeVector(vec))
	if len(got) != len(vec) {
		t.Fatalf("length = %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("vec[%d] = %v, want %v", i, got[i], vec[i])
		}
	}
}
