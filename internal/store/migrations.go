package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "projects and memories",
		SQL: `
CREATE TABLE projects (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    path       TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL
);

CREATE TABLE memories (
    id               TEXT PRIMARY KEY,
    content          TEXT NOT NULL,
    gist             TEXT NOT NULL,
    kind             TEXT NOT NULL CHECK (kind IN ('learning', 'decision', 'context', 'bug', 'solution', 'conversation')),
    emotional_weight REAL NOT NULL DEFAULT 0.5,
    tags             TEXT NOT NULL DEFAULT '[]',
    project_id       TEXT,
    access_count     INTEGER NOT NULL DEFAULT 0,
    created_at       INTEGER NOT NULL,

    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE SET NULL
);

CREATE INDEX idx_memories_project ON memories(project_id);
CREATE INDEX idx_memories_kind    ON memories(kind);
`,
	},
	{
		Version:     2,
		Description: "access records: per-memory access time series",
		SQL: `
CREATE TABLE access_records (
    id          INTEGER PRIMARY KEY,
    memory_id   TEXT NOT NULL,
    accessed_at INTEGER NOT NULL,

    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX idx_access_memory_time ON access_records(memory_id, accessed_at);
`,
	},
	{
		Version:     3,
		Description: "embeddings: one vector per memory, tagged by producer model",
		SQL: `
CREATE TABLE embeddings (
    memory_id  TEXT PRIMARY KEY,
    vector     BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL,

    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX idx_embeddings_model ON embeddings(model);
`,
	},
	{
		Version:     4,
		Description: "associations: weighted directed edges between memories",
		SQL: `
CREATE TABLE associations (
    source_id       TEXT NOT NULL,
    target_id       TEXT NOT NULL,
    strength        REAL NOT NULL,
    kind            TEXT NOT NULL DEFAULT 'semantic',
    last_reinforced INTEGER NOT NULL,

    PRIMARY KEY (source_id, target_id),
    FOREIGN KEY (source_id) REFERENCES memories(id) ON DELETE CASCADE,
    FOREIGN KEY (target_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX idx_assoc_source ON associations(source_id);
CREATE INDEX idx_assoc_target ON associations(target_id);
`,
	},
	{
		Version:     5,
		Description: "locations: file paths with learned familiarity",
		SQL: `
CREATE TABLE locations (
    id                  INTEGER PRIMARY KEY,
    path                TEXT NOT NULL,
    project_id          TEXT,
    description         TEXT NOT NULL DEFAULT '',
    access_count        INTEGER NOT NULL DEFAULT 0,
    direct_access_count INTEGER NOT NULL DEFAULT 0,
    search_saved_count  INTEGER NOT NULL DEFAULT 0,
    familiarity         REAL NOT NULL DEFAULT 0,
    peak_familiarity    REAL NOT NULL DEFAULT 0,
    pinned              INTEGER NOT NULL DEFAULT 0,
    last_accessed       INTEGER NOT NULL,
    last_decayed        INTEGER,
    created_at          INTEGER NOT NULL,

    UNIQUE (path, project_id),
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE SET NULL
);

CREATE INDEX idx_locations_path ON locations(path);

CREATE TABLE location_contexts (
    id          INTEGER PRIMARY KEY,
    location_id INTEGER NOT NULL,
    context     TEXT NOT NULL DEFAULT '',
    activity    TEXT NOT NULL DEFAULT 'unknown' CHECK (activity IN ('reading', 'writing', 'debugging', 'refactoring', 'reviewing', 'unknown')),
    direct      INTEGER NOT NULL DEFAULT 1,
    task        TEXT NOT NULL DEFAULT '',
    accessed_at INTEGER NOT NULL,

    FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE CASCADE
);

CREATE INDEX idx_loc_ctx_location ON location_contexts(location_id, accessed_at);
CREATE INDEX idx_loc_ctx_activity ON location_contexts(activity);

CREATE TABLE location_associations (
    source_id       INTEGER NOT NULL,
    target_id       INTEGER NOT NULL,
    strength        REAL NOT NULL,
    co_access_count INTEGER NOT NULL DEFAULT 1,
    last_reinforced INTEGER NOT NULL,

    PRIMARY KEY (source_id, target_id),
    FOREIGN KEY (source_id) REFERENCES locations(id) ON DELETE CASCADE,
    FOREIGN KEY (target_id) REFERENCES locations(id) ON DELETE CASCADE
);

CREATE INDEX idx_loc_assoc_source ON location_associations(source_id);
CREATE INDEX idx_loc_assoc_target ON location_associations(target_id);
`,
	},
	{
		Version:     6,
		Description: "visual memories: independent embedding space for frames",
		SQL: `
CREATE TABLE visual_memories (
    id          TEXT PRIMARY KEY,
    caption     TEXT NOT NULL,
    source_path TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);

CREATE TABLE visual_embeddings (
    memory_id  TEXT PRIMARY KEY,
    vector     BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL,

    FOREIGN KEY (memory_id) REFERENCES visual_memories(id) ON DELETE CASCADE
);

CREATE INDEX idx_visual_embeddings_model ON visual_embeddings(model);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
