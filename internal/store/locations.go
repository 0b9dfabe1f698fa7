package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Location is a known file path with learned familiarity.
type Location struct {
	ID                int64
	Path              string
	ProjectID         string
	Description       string
	AccessCount       int
	DirectAccessCount int
	SearchSavedCount  int
	Familiarity       float64
	PeakFamiliarity   float64
	Pinned            bool
	LastAccessed      int64
	LastDecayed       *int64
	CreatedAt         int64
}

// LocationContext is one access record bound to a location.
type LocationContext struct {
	ID         int64
	LocationID int64
	Context    string
	Activity   string
	Direct     bool
	Task       string
	AccessedAt int64
}

// LocationAssociation is a co-access edge between two locations. Edges are
// stored once per unordered pair, with the smaller id as source.
type LocationAssociation struct {
	SourceID       int64
	TargetID       int64
	Strength       float64
	CoAccessCount  int
	LastReinforced int64
}

// Other returns the endpoint opposite the given location id.
func (a LocationAssociation) Other(locationID int64) int64 {
	if a.SourceID == locationID {
		return a.TargetID
	}
	return a.SourceID
}

const locationColumns = `id, path, project_id, description, access_count, direct_access_count,
	search_saved_count, familiarity, peak_familiarity, pinned, last_accessed, last_decayed, created_at`

// InsertLocation inserts a new location row.
func (db *DB) InsertLocation(loc *Location) error {
	if loc.CreatedAt == 0 {
		loc.CreatedAt = time.Now().UnixMilli()
	}
	result, err := db.Exec(`
		INSERT INTO locations (path, project_id, description, access_count, direct_access_count,
			search_saved_count, familiarity, peak_familiarity, pinned, last_accessed, created_at)
		VALUES (?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, loc.Path, loc.ProjectID, loc.Description, loc.AccessCount, loc.DirectAccessCount,
		loc.SearchSavedCount, loc.Familiarity, loc.PeakFamiliarity, boolToInt(loc.Pinned),
		loc.LastAccessed, loc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	loc.ID, _ = result.LastInsertId()
	return nil
}

// UpdateLocationOnAccess persists counters and familiarity after an access.
// An access clears any pending decay state.
func (db *DB) UpdateLocationOnAccess(loc *Location) error {
	_, err := db.Exec(`
		UPDATE locations SET description = ?, access_count = ?, direct_access_count = ?,
			search_saved_count = ?, familiarity = ?, peak_familiarity = ?,
			last_accessed = ?, last_decayed = NULL
		WHERE id = ?
	`, loc.Description, loc.AccessCount, loc.DirectAccessCount, loc.SearchSavedCount,
		loc.Familiarity, loc.PeakFamiliarity, loc.LastAccessed, loc.ID)
	if err != nil {
		return fmt.Errorf("update location on access: %w", err)
	}
	return nil
}

// SetLocationFamiliarity writes a decayed familiarity value and stamps the
// decay time.
func (db *DB) SetLocationFamiliarity(id int64, familiarity float64, decayedAt int64) error {
	_, err := db.Exec(
		"UPDATE locations SET familiarity = ?, last_decayed = ? WHERE id = ?",
		familiarity, decayedAt, id,
	)
	if err != nil {
		return fmt.Errorf("set location familiarity: %w", err)
	}
	return nil
}

// SetLocationPinned flips the pinned flag for a path. Returns false if the
// path is unknown.
func (db *DB) SetLocationPinned(path string, pinned bool) (bool, error) {
	result, err := db.Exec("UPDATE locations SET pinned = ? WHERE path = ?", boolToInt(pinned), path)
	if err != nil {
		return false, fmt.Errorf("set location pinned: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// RenameLocation changes a location's path in place, keeping counters,
// contexts, and associations.
func (db *DB) RenameLocation(id int64, newPath string) error {
	_, err := db.Exec("UPDATE locations SET path = ? WHERE id = ?", newPath, id)
	if err != nil {
		return fmt.Errorf("rename location: %w", err)
	}
	return nil
}

// DeleteLocation removes a location and, via cascades, its contexts and
// associations.
func (db *DB) DeleteLocation(id int64) error {
	_, err := db.Exec("DELETE FROM locations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return nil
}

// GetLocationByPath returns the location at a path (optionally project
// scoped), or nil if not found.
func (db *DB) GetLocationByPath(path, projectID string) (*Location, error) {
	query := "SELECT " + locationColumns + " FROM locations WHERE path = ?"
	args := []any{path}
	if projectID != "" {
		query += " AND project_id = ?"
		args = append(args, projectID)
	} else {
		query += " AND project_id IS NULL"
	}

	loc, err := scanLocation(db.QueryRow(query, args...))
	if err == sql.ErrNoRows && projectID == "" {
		// Fall back to any-project match so CLI lookups work without scope.
		loc, err = scanLocation(db.QueryRow(
			"SELECT "+locationColumns+" FROM locations WHERE path = ? ORDER BY last_accessed DESC LIMIT 1", path,
		))
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location by path: %w", err)
	}
	return loc, nil
}

// GetLocationByID returns a location by id, or nil if not found.
func (db *DB) GetLocationByID(id int64) (*Location, error) {
	loc, err := scanLocation(db.QueryRow(
		"SELECT "+locationColumns+" FROM locations WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location by id: %w", err)
	}
	return loc, nil
}

// ListLocations returns all locations ordered by familiarity descending.
func (db *DB) ListLocations() ([]Location, error) {
	rows, err := db.Query(
		"SELECT " + locationColumns + " FROM locations ORDER BY familiarity DESC, path",
	)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

// FindLocations returns locations whose path matches a LIKE pattern.
func (db *DB) FindLocations(pattern string) ([]Location, error) {
	rows, err := db.Query(
		"SELECT "+locationColumns+" FROM locations WHERE path LIKE ? ORDER BY familiarity DESC, path",
		"%"+pattern+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("find locations: %w", err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

// RecentLocations returns the n most recently accessed locations.
func (db *DB) RecentLocations(n int) ([]Location, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := db.Query(
		"SELECT "+locationColumns+" FROM locations ORDER BY last_accessed DESC LIMIT ?", n,
	)
	if err != nil {
		return nil, fmt.Errorf("recent locations: %w", err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

// LocationsByActivity returns locations that have at least one access with
// the given activity type, most recently accessed first.
func (db *DB) LocationsByActivity(activity string) ([]Location, error) {
	rows, err := db.Query(`
		SELECT DISTINCT `+prefixedLocationColumns("l")+`
		FROM locations l
		JOIN location_contexts c ON c.location_id = l.id
		WHERE c.activity = ?
		ORDER BY l.last_accessed DESC
	`, activity)
	if err != nil {
		return nil, fmt.Errorf("locations by activity: %w", err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

// StaleLocations returns non-pinned locations whose last access is at or
// before the cutoff (ms).
func (db *DB) StaleLocations(cutoff int64) ([]Location, error) {
	rows, err := db.Query(
		"SELECT "+locationColumns+" FROM locations WHERE pinned = 0 AND last_accessed <= ? ORDER BY last_accessed",
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("stale locations: %w", err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

// AddLocationContext appends an access context row for a location.
func (db *DB) AddLocationContext(c *LocationContext) error {
	if c.Activity == "" {
		c.Activity = "unknown"
	}
	result, err := db.Exec(`
		INSERT INTO location_contexts (location_id, context, activity, direct, task, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.LocationID, c.Context, c.Activity, boolToInt(c.Direct), c.Task, c.AccessedAt)
	if err != nil {
		return fmt.Errorf("add location context: %w", err)
	}
	c.ID, _ = result.LastInsertId()
	return nil
}

// LocationContexts returns the most recent access contexts for a location.
func (db *DB) LocationContexts(locationID int64, limit int) ([]LocationContext, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, location_id, context, activity, direct, task, accessed_at
		FROM location_contexts WHERE location_id = ?
		ORDER BY accessed_at DESC LIMIT ?
	`, locationID, limit)
	if err != nil {
		return nil, fmt.Errorf("location contexts: %w", err)
	}
	defer rows.Close()

	var out []LocationContext
	for rows.Next() {
		var c LocationContext
		var direct int
		if err := rows.Scan(&c.ID, &c.LocationID, &c.Context, &c.Activity, &direct, &c.Task, &c.AccessedAt); err != nil {
			return nil, fmt.Errorf("scan location context: %w", err)
		}
		c.Direct = direct != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// MoveLocationContexts reassigns all of one location's contexts to another.
func (db *DB) MoveLocationContexts(fromID, toID int64) error {
	_, err := db.Exec("UPDATE location_contexts SET location_id = ? WHERE location_id = ?", toID, fromID)
	if err != nil {
		return fmt.Errorf("move location contexts: %w", err)
	}
	return nil
}

// CoAccessCandidates returns the most recent context row per other location
// accessed within the window or under the same task. Used to form co-access
// associations at record time.
func (db *DB) CoAccessCandidates(excludeLocationID int64, since int64, task string) ([]LocationContext, error) {
	rows, err := db.Query(`
		SELECT c.id, c.location_id, c.context, c.activity, c.direct, c.task, c.accessed_at
		FROM location_contexts c
		JOIN (
			SELECT location_id, MAX(accessed_at) AS latest
			FROM location_contexts
			WHERE location_id != ? AND (accessed_at >= ? OR (task != '' AND task = ?))
			GROUP BY location_id
		) m ON m.location_id = c.location_id AND m.latest = c.accessed_at
	`, excludeLocationID, since, task)
	if err != nil {
		return nil, fmt.Errorf("co-access candidates: %w", err)
	}
	defer rows.Close()

	var out []LocationContext
	for rows.Next() {
		var c LocationContext
		var direct int
		if err := rows.Scan(&c.ID, &c.LocationID, &c.Context, &c.Activity, &direct, &c.Task, &c.AccessedAt); err != nil {
			return nil, fmt.Errorf("scan co-access candidate: %w", err)
		}
		c.Direct = direct != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReinforceLocationAssociation adds delta to the pair's strength (creating
// the edge at delta), capped at 1.0. The pair is normalized so each unordered
// pair has one row.
func (db *DB) ReinforceLocationAssociation(a, b int64, delta float64) error {
	if a == b {
		return fmt.Errorf("location association: self edge %d", a)
	}
	if a > b {
		a, b = b, a
	}
	now := time.Now().UnixMilli()

	_, err := db.Exec(`
		INSERT INTO location_associations (source_id, target_id, strength, co_access_count, last_reinforced)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(source_id, target_id) DO UPDATE SET
			strength = MIN(1.0, strength + ?),
			co_access_count = co_access_count + 1,
			last_reinforced = ?
	`, a, b, minFloat(delta, 1.0), now, delta, now)
	if err != nil {
		return fmt.Errorf("reinforce location association: %w", err)
	}
	return nil
}

// LocationAssociationsFor returns edges touching a location, strongest first.
func (db *DB) LocationAssociationsFor(locationID int64) ([]LocationAssociation, error) {
	rows, err := db.Query(`
		SELECT source_id, target_id, strength, co_access_count, last_reinforced
		FROM location_associations WHERE source_id = ? OR target_id = ?
		ORDER BY strength DESC
	`, locationID, locationID)
	if err != nil {
		return nil, fmt.Errorf("location associations for: %w", err)
	}
	defer rows.Close()

	var out []LocationAssociation
	for rows.Next() {
		var a LocationAssociation
		if err := rows.Scan(&a.SourceID, &a.TargetID, &a.Strength, &a.CoAccessCount, &a.LastReinforced); err != nil {
			return nil, fmt.Errorf("scan location association: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LocationStats summarizes the location store.
type LocationStats struct {
	Total          int
	Pinned         int
	WellKnown      int // familiarity >= 0.7
	TotalAccesses  int
	AvgFamiliarity float64
}

// LocStats returns store-wide location counts.
func (db *DB) LocStats() (*LocationStats, error) {
	s := &LocationStats{}
	err := db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(pinned), 0),
			COALESCE(SUM(CASE WHEN familiarity >= 0.7 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(access_count), 0),
			COALESCE(AVG(familiarity), 0)
		FROM locations
	`).Scan(&s.Total, &s.Pinned, &s.WellKnown, &s.TotalAccesses, &s.AvgFamiliarity)
	if err != nil {
		return nil, fmt.Errorf("location stats: %w", err)
	}
	return s, nil
}

func prefixedLocationColumns(alias string) string {
	return alias + `.id, ` + alias + `.path, ` + alias + `.project_id, ` + alias + `.description, ` +
		alias + `.access_count, ` + alias + `.direct_access_count, ` + alias + `.search_saved_count, ` +
		alias + `.familiarity, ` + alias + `.peak_familiarity, ` + alias + `.pinned, ` +
		alias + `.last_accessed, ` + alias + `.last_decayed, ` + alias + `.created_at`
}

func scanLocation(row rowScanner) (*Location, error) {
	var loc Location
	var projectID sql.NullString
	var pinned int
	var lastDecayed sql.NullInt64
	err := row.Scan(&loc.ID, &loc.Path, &projectID, &loc.Description,
		&loc.AccessCount, &loc.DirectAccessCount, &loc.SearchSavedCount,
		&loc.Familiarity, &loc.PeakFamiliarity, &pinned,
		&loc.LastAccessed, &lastDecayed, &loc.CreatedAt)
	if err != nil {
		return nil, err
	}
	loc.ProjectID = projectID.String
	loc.Pinned = pinned != 0
	if lastDecayed.Valid {
		loc.LastDecayed = &lastDecayed.Int64
	}
	return &loc, nil
}

func scanLocations(rows *sql.Rows) ([]Location, error) {
	var locations []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, *loc)
	}
	return locations, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
