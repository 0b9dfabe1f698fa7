package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"
)

// Project groups memories and locations by an absolute path.
type Project struct {
	ID        string
	Name      string
	Path      string
	CreatedAt int64
}

// EnsureProject returns the project for a path, creating it if needed.
// Paths are unique; the name defaults to the path's base.
func (db *DB) EnsureProject(path string) (*Project, error) {
	existing, err := db.GetProjectByPath(path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	p := &Project{
		ID:        NewID(),
		Name:      filepath.Base(path),
		Path:      path,
		CreatedAt: time.Now().UnixMilli(),
	}
	_, err = db.Exec(`
		INSERT INTO projects (id, name, path, created_at) VALUES (?, ?, ?, ?)
	`, p.ID, p.Name, p.Path, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// GetProjectByPath returns the project at a path, or nil if not found.
func (db *DB) GetProjectByPath(path string) (*Project, error) {
	var p Project
	err := db.QueryRow(`
		SELECT id, name, path, created_at FROM projects WHERE path = ?
	`, path).Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by path: %w", err)
	}
	return &p, nil
}

// DeleteProject removes a project. Memories and locations scoped to it are
// kept with their project reference cleared — deleting a project must not
// destroy the data it grouped.
func (db *DB) DeleteProject(id string) error {
	_, err := db.Exec("DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}
