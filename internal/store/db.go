package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to the lucid SQLite database.
//
// One DB value is shared by the retrieval engine, the location service, and
// the background sweeps. Retrieval reads run against WAL snapshots while
// reinforcement and decay writes commit in short transactions; SQLite's
// single writer is the only lock in the system.
type DB struct {
	*sql.DB
	Path string
}

// DefaultDBPath returns the default database path: ~/.lucid/lucid.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".lucid", "lucid.db"), nil
}

// Open opens (or creates) the database at path and brings the schema up to
// date.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(path, true)
}

// OpenMemory opens an in-memory database for tests. Journal tuning is
// meaningless without a file, so only the behavioral pragmas apply.
func OpenMemory() (*DB, error) {
	return open(":memory:", false)
}

func open(path string, durable bool) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db := &DB{DB: sqlDB, Path: path}
	if err := db.init(durable); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// init applies the pragmas the engine depends on, verifies the ones that
// back schema invariants, and runs migrations.
func (db *DB) init(durable bool) error {
	if durable {
		for _, p := range []string{
			"PRAGMA journal_mode=WAL",    // retrieval reads must not wait on sweep writes
			"PRAGMA synchronous=NORMAL",  // full fsync per access record is wasted on WAL
			"PRAGMA mmap_size=268435456", // embedding BLOB scans touch most of the file
		} {
			if _, err := db.Exec(p); err != nil {
				return fmt.Errorf("pragma %q: %w", p, err)
			}
		}
	}

	// Concurrent retrieval calls race on reinforcement writes; wait out the
	// writer instead of surfacing SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("pragma busy_timeout: %w", err)
	}

	// Deleting a memory must take its embedding, access records, and
	// associations with it (same for locations and their contexts/edges).
	// Those cascades are ON DELETE clauses, so enforcement has to be on —
	// verify rather than trust, since SQLite defaults it off per connection.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("pragma foreign_keys: %w", err)
	}
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		return fmt.Errorf("check foreign_keys: %w", err)
	}
	if fk != 1 {
		return fmt.Errorf("foreign key enforcement unavailable; cascade invariants would not hold")
	}

	if err := db.migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
