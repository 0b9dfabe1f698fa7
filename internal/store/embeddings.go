package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// EmbeddingRecord holds a stored vector and its producer model tag.
type EmbeddingRecord struct {
	MemoryID   string
	Vector     []float64
	Model      string
	Dimensions int
	CreatedAt  int64
}

// space names the pair of tables forming one embedding space. The textual and
// visual spaces share contracts but never interfere.
type space struct {
	vectors string // embeddings table
	owners  string // owning entity table
}

var (
	textSpace   = space{vectors: "embeddings", owners: "memories"}
	visualSpace = space{vectors: "visual_embeddings", owners: "visual_memories"}
)

// encodeVector converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeVector(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeVector converts a binary BLOB back to []float64.
func decodeVector(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

func (db *DB) saveEmbedding(sp space, ownerID string, vec []float64, model string) error {
	now := time.Now().UnixMilli()
	blob := encodeVector(vec)

	// Insert-or-replace: a newer vector may change dimensionality.
	_, err := db.Exec(`
		INSERT INTO `+sp.vectors+` (memory_id, vector, model, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET vector = ?, model = ?, dimensions = ?, created_at = ?
	`, ownerID, blob, model, len(vec), now,
		blob, model, len(vec), now)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

func (db *DB) getEmbedding(sp space, ownerID string) (*EmbeddingRecord, error) {
	var e EmbeddingRecord
	var blob []byte

	err := db.QueryRow(`
		SELECT memory_id, vector, model, dimensions, created_at
		FROM `+sp.vectors+` WHERE memory_id = ?
	`, ownerID).Scan(&e.MemoryID, &blob, &e.Model, &e.Dimensions, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding: %w", err)
	}
	e.Vector = decodeVector(blob)
	return &e, nil
}

func (db *DB) countNotMatching(sp space, model string) (int, error) {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM "+sp.vectors+" WHERE model != ?", model,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings not matching: %w", err)
	}
	return count, nil
}

func (db *DB) deleteNotMatching(sp space, model string) (int, error) {
	result, err := db.Exec("DELETE FROM "+sp.vectors+" WHERE model != ?", model)
	if err != nil {
		return 0, fmt.Errorf("delete embeddings not matching: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func (db *DB) pendingCount(sp space) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM ` + sp.owners + ` o
		WHERE NOT EXISTS (SELECT 1 FROM ` + sp.vectors + ` e WHERE e.memory_id = o.id)
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pending embedding count: %w", err)
	}
	return count, nil
}

// SaveEmbedding stores or replaces the vector for a memory.
func (db *DB) SaveEmbedding(memoryID string, vec []float64, model string) error {
	return db.saveEmbedding(textSpace, memoryID, vec, model)
}

// GetEmbedding returns the embedding for a memory, or nil if not found.
func (db *DB) GetEmbedding(memoryID string) (*EmbeddingRecord, error) {
	return db.getEmbedding(textSpace, memoryID)
}

// DeleteEmbedding removes the embedding for a memory.
func (db *DB) DeleteEmbedding(memoryID string) error {
	_, err := db.Exec("DELETE FROM embeddings WHERE memory_id = ?", memoryID)
	if err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	return nil
}

// EmbeddingsFor returns vectors for a set of memories in one query.
// Memories without an embedding are simply absent from the map.
func (db *DB) EmbeddingsFor(memoryIDs []string) (map[string][]float64, error) {
	vectors := make(map[string][]float64, len(memoryIDs))
	if len(memoryIDs) == 0 {
		return vectors, nil
	}

	ph := strings.Repeat("?,", len(memoryIDs))
	ph = ph[:len(ph)-1]
	args := make([]any, len(memoryIDs))
	for i, id := range memoryIDs {
		args[i] = id
	}

	rows, err := db.Query(
		"SELECT memory_id, vector FROM embeddings WHERE memory_id IN ("+ph+")", args...,
	)
	if err != nil {
		return nil, fmt.Errorf("embeddings for: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		vectors[id] = decodeVector(blob)
	}
	return vectors, rows.Err()
}

// CountEmbeddingsNotMatching counts stored vectors produced by a different
// model than the one given.
func (db *DB) CountEmbeddingsNotMatching(model string) (int, error) {
	return db.countNotMatching(textSpace, model)
}

// DeleteEmbeddingsNotMatching deletes vectors produced by a different model,
// returning how many were removed. Their owners become pending.
func (db *DB) DeleteEmbeddingsNotMatching(model string) (int, error) {
	return db.deleteNotMatching(textSpace, model)
}

// PendingEmbeddingCount counts memories with no embedding row.
func (db *DB) PendingEmbeddingCount() (int, error) {
	return db.pendingCount(textSpace)
}

// MemoriesWithoutEmbeddings returns up to limit memories that have no
// embedding, for background regeneration.
func (db *DB) MemoriesWithoutEmbeddings(limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT `+memoryColumns+` FROM memories m
		WHERE NOT EXISTS (SELECT 1 FROM embeddings e WHERE e.memory_id = m.id)
		ORDER BY m.id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("memories without embeddings: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// VisualMemory is a frame or image derived item owning a visual embedding.
type VisualMemory struct {
	ID         string
	Caption    string
	SourcePath string
	CreatedAt  int64
}

// CreateVisualMemory inserts a visual memory.
func (db *DB) CreateVisualMemory(v *VisualMemory) error {
	if v.ID == "" {
		v.ID = NewID()
	}
	if v.CreatedAt == 0 {
		v.CreatedAt = time.Now().UnixMilli()
	}
	_, err := db.Exec(`
		INSERT INTO visual_memories (id, caption, source_path, created_at)
		VALUES (?, ?, ?, ?)
	`, v.ID, v.Caption, v.SourcePath, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("create visual memory: %w", err)
	}
	return nil
}

// SaveVisualEmbedding stores or replaces the vector for a visual memory.
func (db *DB) SaveVisualEmbedding(id string, vec []float64, model string) error {
	return db.saveEmbedding(visualSpace, id, vec, model)
}

// GetVisualEmbedding returns the embedding for a visual memory, or nil.
func (db *DB) GetVisualEmbedding(id string) (*EmbeddingRecord, error) {
	return db.getEmbedding(visualSpace, id)
}

// CountVisualEmbeddingsNotMatching counts visual vectors from other models.
func (db *DB) CountVisualEmbeddingsNotMatching(model string) (int, error) {
	return db.countNotMatching(visualSpace, model)
}

// DeleteVisualEmbeddingsNotMatching deletes visual vectors from other models.
func (db *DB) DeleteVisualEmbeddingsNotMatching(model string) (int, error) {
	return db.deleteNotMatching(visualSpace, model)
}

// PendingVisualEmbeddingCount counts visual memories with no embedding row.
func (db *DB) PendingVisualEmbeddingCount() (int, error) {
	return db.pendingCount(visualSpace)
}

// VisualMemoriesWithoutEmbeddings returns up to limit visual memories that
// have no embedding.
func (db *DB) VisualMemoriesWithoutEmbeddings(limit int) ([]VisualMemory, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT id, caption, source_path, created_at FROM visual_memories v
		WHERE NOT EXISTS (SELECT 1 FROM visual_embeddings e WHERE e.memory_id = v.id)
		ORDER BY v.id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("visual memories without embeddings: %w", err)
	}
	defer rows.Close()

	var out []VisualMemory
	for rows.Next() {
		var v VisualMemory
		if err := rows.Scan(&v.ID, &v.Caption, &v.SourcePath, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan visual memory: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
