package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Memory kinds accepted by the store. Mirrors the CHECK constraint on the
// memories table.
var ValidKinds = map[string]bool{
	"learning":     true,
	"decision":     true,
	"context":      true,
	"bug":          true,
	"solution":     true,
	"conversation": true,
}

// Memory is a textual item the engine may later surface.
type Memory struct {
	ID              string
	Content         string
	Gist            string
	Kind            string
	EmotionalWeight float64
	Tags            []string
	ProjectID       string
	AccessCount     int
	CreatedAt       int64
}

// NewID returns a fresh ULID string for entity identity.
func NewID() string {
	return ulid.Make().String()
}

const maxGistLen = 150

// deriveGist produces a short summary from content: the first sentence,
// truncated at a word boundary to maxGistLen characters.
func deriveGist(content string) string {
	s := strings.TrimSpace(content)
	if i := strings.IndexAny(s, ".\n"); i > 0 && i < maxGistLen {
		return strings.TrimSpace(s[:i+1])
	}
	if len(s) <= maxGistLen {
		return s
	}
	cut := s[:maxGistLen]
	if i := strings.LastIndexByte(cut, ' '); i > maxGistLen/2 {
		cut = cut[:i]
	}
	return cut
}

// CreateMemory inserts a new memory and its creation access record in one
// transaction. Storing a memory counts as its first access.
func (db *DB) CreateMemory(m *Memory) error {
	if m.Kind == "" {
		m.Kind = "context"
	}
	if !ValidKinds[m.Kind] {
		return fmt.Errorf("create memory: invalid kind %q", m.Kind)
	}
	if m.ID == "" {
		m.ID = NewID()
	}
	if m.Gist == "" {
		m.Gist = deriveGist(m.Content)
	}
	if m.EmotionalWeight == 0 {
		m.EmotionalWeight = 0.5
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	now := time.Now().UnixMilli()
	if m.CreatedAt == 0 {
		m.CreatedAt = now
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin create memory: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO memories (id, content, gist, kind, emotional_weight, tags, project_id, access_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), 1, ?)
	`, m.ID, m.Content, m.Gist, m.Kind, m.EmotionalWeight, string(tags), m.ProjectID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create memory: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO access_records (memory_id, accessed_at) VALUES (?, ?)
	`, m.ID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create memory access: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create memory: %w", err)
	}
	m.AccessCount = 1
	return nil
}

const memoryColumns = "id, content, gist, kind, emotional_weight, tags, project_id, access_count, created_at"

// GetMemory returns a memory by id, or nil if not found.
func (db *DB) GetMemory(id string) (*Memory, error) {
	row := db.QueryRow("SELECT "+memoryColumns+" FROM memories WHERE id = ?", id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

// DeleteMemory removes a memory. Access records, the embedding, and all
// associations touching it go with it (foreign key cascades).
// Returns false if the id was unknown.
func (db *DB) DeleteMemory(id string) (bool, error) {
	result, err := db.Exec("DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ListMemories returns memories filtered by kind and/or project.
// Empty filters match everything.
func (db *DB) ListMemories(kind, projectID string) ([]Memory, error) {
	query := "SELECT " + memoryColumns + " FROM memories WHERE 1=1"
	var args []any
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if projectID != "" {
		query += " AND project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY id"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// MemoryStats summarizes the memory store.
type MemoryStats struct {
	Total        int
	ByKind       map[string]int
	Embedded     int
	Pending      int
	Associations int
}

// Stats returns store-wide memory counts.
func (db *DB) Stats() (*MemoryStats, error) {
	s := &MemoryStats{ByKind: make(map[string]int)}

	if err := db.QueryRow("SELECT COUNT(*) FROM memories").Scan(&s.Total); err != nil {
		return nil, fmt.Errorf("stats total: %w", err)
	}

	rows, err := db.Query("SELECT kind, COUNT(*) FROM memories GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("stats by kind: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan kind stat: %w", err)
		}
		s.ByKind[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&s.Embedded); err != nil {
		return nil, fmt.Errorf("stats embedded: %w", err)
	}
	s.Pending = s.Total - s.Embedded
	if err := db.QueryRow("SELECT COUNT(*) FROM associations").Scan(&s.Associations); err != nil {
		return nil, fmt.Errorf("stats associations: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	var m Memory
	var tags string
	var projectID sql.NullString
	err := row.Scan(&m.ID, &m.Content, &m.Gist, &m.Kind, &m.EmotionalWeight,
		&tags, &projectID, &m.AccessCount, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.ProjectID = projectID.String
	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
		m.Tags = nil
	}
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var memories []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}
