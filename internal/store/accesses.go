package store

import (
	"fmt"
	"strings"
)

// RecordAccess appends an access record for a memory at the given time (ms)
// and bumps its access counter.
func (db *DB) RecordAccess(memoryID string, at int64) error {
	return db.RecordAccesses([]string{memoryID}, at)
}

// RecordAccesses appends access records for several memories in one
// transaction. All records share the same timestamp — retrieval reinforcement
// uses a single now captured at call entry.
func (db *DB) RecordAccesses(memoryIDs []string, at int64) error {
	if len(memoryIDs) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin record accesses: %w", err)
	}
	defer tx.Rollback()

	for _, id := range memoryIDs {
		if _, err := tx.Exec(
			"INSERT INTO access_records (memory_id, accessed_at) VALUES (?, ?)", id, at,
		); err != nil {
			return fmt.Errorf("record access %s: %w", id, err)
		}
		if _, err := tx.Exec(
			"UPDATE memories SET access_count = access_count + 1 WHERE id = ?", id,
		); err != nil {
			return fmt.Errorf("bump access count %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record accesses: %w", err)
	}
	return nil
}

// AccessTimes returns a memory's access timestamps in ascending order.
func (db *DB) AccessTimes(memoryID string) ([]int64, error) {
	rows, err := db.Query(
		"SELECT accessed_at FROM access_records WHERE memory_id = ? ORDER BY accessed_at", memoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("access times: %w", err)
	}
	defer rows.Close()

	var times []int64
	for rows.Next() {
		var t int64
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan access time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// AccessTimesFor returns access histories for a set of memories in one query,
// keyed by memory id, each ascending by time.
func (db *DB) AccessTimesFor(memoryIDs []string) (map[string][]int64, error) {
	histories := make(map[string][]int64, len(memoryIDs))
	if len(memoryIDs) == 0 {
		return histories, nil
	}

	ph := strings.Repeat("?,", len(memoryIDs))
	ph = ph[:len(ph)-1]
	args := make([]any, len(memoryIDs))
	for i, id := range memoryIDs {
		args[i] = id
	}

	rows, err := db.Query(
		"SELECT memory_id, accessed_at FROM access_records WHERE memory_id IN ("+ph+") ORDER BY accessed_at",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("access times for: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var t int64
		if err := rows.Scan(&id, &t); err != nil {
			return nil, fmt.Errorf("scan access time: %w", err)
		}
		histories[id] = append(histories[id], t)
	}
	return histories, rows.Err()
}
