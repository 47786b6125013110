package usage

import (
	"database/sql"
	"fmt"
	"time"
)

// Store persists usage records and per-unit lifecycle state. It expects an
// already-open database shared with the metadata store, following
// internal/telemetry's convention of attaching its own tables rather than
// owning a separate connection.
type Store struct {
	db *sql.DB
}

// InitSchema creates the lifecycle tables if they don't exist.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		unit_id TEXT NOT NULL,
		accessed_at INTEGER NOT NULL,
		query_fingerprint TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_usage_records_unit ON usage_records(unit_id);

	CREATE TABLE IF NOT EXISTS unit_lifecycle (
		unit_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		context_level TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'ACTIVE',
		access_count INTEGER NOT NULL DEFAULT 0,
		last_accessed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_unit_lifecycle_state ON unit_lifecycle(project_id, state);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create lifecycle schema: %w", err)
	}
	return nil
}

// NewStore wraps an already-open, schema-initialized database.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &Store{db: db}, nil
}

// EnsureUnit registers a unit if it isn't already tracked, defaulting it to
// ACTIVE. Safe to call repeatedly; existing rows are untouched.
func (s *Store) EnsureUnit(unitID, projectID string, category Category, level ContextLevel, now time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO unit_lifecycle (unit_id, project_id, category, context_level, state, access_count, last_accessed, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(unit_id) DO NOTHING
	`, unitID, projectID, string(category), string(level), string(StateActive), now.UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("ensure unit %s: %w", unitID, err)
	}
	return nil
}

// ApplyUsage flushes a batch of usage records: it appends each to the
// access log and performs a single batched update per unit bumping
// access_count and last_accessed, per spec's "single batched payload
// update per unit" flush contract.
func (s *Store) ApplyUsage(records []UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	logStmt, err := tx.Prepare(`
		INSERT INTO usage_records (unit_id, accessed_at, query_fingerprint)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare usage log insert: %w", err)
	}
	defer logStmt.Close()

	type agg struct {
		count int64
		last  int64
	}
	perUnit := make(map[string]*agg)

	for _, r := range records {
		accessedAt := r.AccessedAt.UnixNano()
		if _, err := logStmt.Exec(r.UnitID, accessedAt, r.QueryFingerprint); err != nil {
			return fmt.Errorf("log access for %s: %w", r.UnitID, err)
		}

		a, ok := perUnit[r.UnitID]
		if !ok {
			a = &agg{}
			perUnit[r.UnitID] = a
		}
		a.count++
		if accessedAt > a.last {
			a.last = accessedAt
		}
	}

	updateStmt, err := tx.Prepare(`
		UPDATE unit_lifecycle
		SET access_count = access_count + ?,
			last_accessed = MAX(last_accessed, ?),
			state = ?
		WHERE unit_id = ?
	`)
	if err != nil {
		return fmt.Errorf("prepare unit update: %w", err)
	}
	defer updateStmt.Close()

	for unitID, a := range perUnit {
		if _, err := updateStmt.Exec(a.count, a.last, string(StateActive), unitID); err != nil {
			return fmt.Errorf("update unit %s: %w", unitID, err)
		}
	}

	return tx.Commit()
}

// GetUnit returns a unit's lifecycle record, or nil if it isn't tracked.
func (s *Store) GetUnit(unitID string) (*UnitLifecycle, error) {
	var u UnitLifecycle
	var state, category, level string
	var lastAccessed, createdAt int64

	err := s.db.QueryRow(`
		SELECT unit_id, project_id, category, context_level, state, access_count, last_accessed, created_at
		FROM unit_lifecycle WHERE unit_id = ?
	`, unitID).Scan(&u.UnitID, &u.ProjectID, &category, &level, &state, &u.AccessCount, &lastAccessed, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get unit %s: %w", unitID, err)
	}

	u.Category = Category(category)
	u.ContextLevel = ContextLevel(level)
	u.State = State(state)
	u.LastAccessed = time.Unix(0, lastAccessed)
	u.CreatedAt = time.Unix(0, createdAt)
	return &u, nil
}

// ListByProject returns every tracked unit for a project, for transition
// sweeps and tests.
func (s *Store) ListByProject(projectID string) ([]*UnitLifecycle, error) {
	rows, err := s.db.Query(`
		SELECT unit_id, project_id, category, context_level, state, access_count, last_accessed, created_at
		FROM unit_lifecycle WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list units for %s: %w", projectID, err)
	}
	defer rows.Close()

	var units []*UnitLifecycle
	for rows.Next() {
		var u UnitLifecycle
		var state, category, level string
		var lastAccessed, createdAt int64
		if err := rows.Scan(&u.UnitID, &u.ProjectID, &category, &level, &state, &u.AccessCount, &lastAccessed, &createdAt); err != nil {
			return nil, err
		}
		u.Category = Category(category)
		u.ContextLevel = ContextLevel(level)
		u.State = State(state)
		u.LastAccessed = time.Unix(0, lastAccessed)
		u.CreatedAt = time.Unix(0, createdAt)
		units = append(units, &u)
	}
	return units, rows.Err()
}

// SetState updates a unit's lifecycle state directly, used by transition
// sweeps.
func (s *Store) SetState(unitID string, state State) error {
	_, err := s.db.Exec(`UPDATE unit_lifecycle SET state = ? WHERE unit_id = ?`, string(state), unitID)
	if err != nil {
		return fmt.Errorf("set state for %s: %w", unitID, err)
	}
	return nil
}

// DeleteUnit removes a unit's lifecycle row, used when a session-state unit
// is purged.
func (s *Store) DeleteUnit(unitID string) error {
	_, err := s.db.Exec(`DELETE FROM unit_lifecycle WHERE unit_id = ?`, unitID)
	if err != nil {
		return fmt.Errorf("delete unit %s: %w", unitID, err)
	}
	return nil
}

// Close releases resources. The underlying db is not closed as it's shared.
func (s *Store) Close() error {
	return nil
}
