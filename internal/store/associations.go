package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Association is a weighted, directed edge between two memories. Retrieval
// treats edges symmetrically; writes upsert by ordered (source, target) pair.
type Association struct {
	SourceID       string
	TargetID       string
	Strength       float64
	Kind           string
	LastReinforced int64
}

// Other returns the endpoint opposite the given memory id.
func (a Association) Other(memoryID string) string {
	if a.SourceID == memoryID {
		return a.TargetID
	}
	return a.SourceID
}

// UpsertAssociation creates or overwrites the edge (source → target).
// Repeated calls overwrite strength. Strength is clamped to [0, 1].
func (db *DB) UpsertAssociation(sourceID, targetID string, strength float64, kind string) error {
	if sourceID == targetID {
		return fmt.Errorf("associate: self edge %s", sourceID)
	}
	if strength < 0 {
		strength = 0
	} else if strength > 1 {
		strength = 1
	}
	if kind == "" {
		kind = "semantic"
	}
	now := time.Now().UnixMilli()

	_, err := db.Exec(`
		INSERT INTO associations (source_id, target_id, strength, kind, last_reinforced)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id) DO UPDATE SET strength = ?, kind = ?, last_reinforced = ?
	`, sourceID, targetID, strength, kind, now,
		strength, kind, now)
	if err != nil {
		return fmt.Errorf("upsert association: %w", err)
	}
	return nil
}

// AssociationsFor returns every edge touching a memory, in either direction.
func (db *DB) AssociationsFor(memoryID string) ([]Association, error) {
	rows, err := db.Query(`
		SELECT source_id, target_id, strength, kind, last_reinforced
		FROM associations WHERE source_id = ? OR target_id = ?
	`, memoryID, memoryID)
	if err != nil {
		return nil, fmt.Errorf("associations for: %w", err)
	}
	defer rows.Close()
	return scanAssociations(rows)
}

// AssociationsForAll returns edges touching any of the given memories in one
// query, keyed by each incident memory id. An edge between two candidates
// appears under both keys.
func (db *DB) AssociationsForAll(memoryIDs []string) (map[string][]Association, error) {
	edges := make(map[string][]Association, len(memoryIDs))
	if len(memoryIDs) == 0 {
		return edges, nil
	}

	ph := strings.Repeat("?,", len(memoryIDs))
	ph = ph[:len(ph)-1]
	args := make([]any, 0, len(memoryIDs)*2)
	for _, id := range memoryIDs {
		args = append(args, id)
	}
	for _, id := range memoryIDs {
		args = append(args, id)
	}

	rows, err := db.Query(`
		SELECT source_id, target_id, strength, kind, last_reinforced
		FROM associations WHERE source_id IN (`+ph+`) OR target_id IN (`+ph+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("associations for all: %w", err)
	}
	defer rows.Close()

	assocs, err := scanAssociations(rows)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(memoryIDs))
	for _, id := range memoryIDs {
		wanted[id] = true
	}
	for _, a := range assocs {
		if wanted[a.SourceID] {
			edges[a.SourceID] = append(edges[a.SourceID], a)
		}
		if wanted[a.TargetID] {
			edges[a.TargetID] = append(edges[a.TargetID], a)
		}
	}
	return edges, nil
}

func scanAssociations(rows *sql.Rows) ([]Association, error) {
	var assocs []Association
	for rows.Next() {
		var a Association
		if err := rows.Scan(&a.SourceID, &a.TargetID, &a.Strength, &a.Kind, &a.LastReinforced); err != nil {
			return nil, fmt.Errorf("scan association: %w", err)
		}
		assocs = append(assocs, a)
	}
	return assocs, rows.Err()
}
