package core

import (
	"context"
	"database/sql"
	"sync"
	"time"

	apperrors "github.com/driftwood-dev/semcode/internal/errors"
)

const consentSchema = `
CREATE TABLE IF NOT EXISTS project_consent (
	project_id TEXT PRIMARY KEY,
	opted_in_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS active_project (
	singleton INTEGER PRIMARY KEY CHECK (singleton = 0),
	project_id TEXT NOT NULL
);
`

// ConsentStore tracks which projects a user has opted into cross-project
// retrieval for, plus which project is currently active. It's a small
// companion table alongside internal/usage's and internal/memory's own
// schemas on the same shared database, following the same
// caller-owns-the-*sql.DB convention.
type ConsentStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewConsentStore wraps an already-open database handle.
func NewConsentStore(db *sql.DB) *ConsentStore {
	return &ConsentStore{db: db}
}

// InitConsentSchema creates the consent tables if missing.
func InitConsentSchema(db *sql.DB) error {
	_, err := db.Exec(consentSchema)
	return err
}

// OptIn marks a project as eligible for cross-project search.
func (c *ConsentStore) OptIn(ctx context.Context, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO project_consent (project_id, opted_in_at) VALUES (?, ?)
		ON CONFLICT(project_id) DO NOTHING
	`, projectID, time.Now().UTC().UnixMilli())
	if err != nil {
		return apperrors.Storage("opt in project", err)
	}
	return nil
}

// OptOut revokes a project's cross-project search eligibility.
func (c *ConsentStore) OptOut(ctx context.Context, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.ExecContext(ctx, `DELETE FROM project_consent WHERE project_id = ?`, projectID)
	if err != nil {
		return apperrors.Storage("opt out project", err)
	}
	return nil
}

// IsOptedIn reports whether a project has opted into cross-project search.
func (c *ConsentStore) IsOptedIn(ctx context.Context, projectID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var id string
	err := c.db.QueryRowContext(ctx, `SELECT project_id FROM project_consent WHERE project_id = ?`, projectID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Storage("check project consent", err)
	}
	return true, nil
}

// ListOptedIn returns every project ID currently opted in.
func (c *ConsentStore) ListOptedIn(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows, err := c.db.QueryContext(ctx, `SELECT project_id FROM project_consent ORDER BY opted_in_at ASC`)
	if err != nil {
		return nil, apperrors.Storage("list opted-in projects", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Storage("scan opted-in project", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SetActive switches the active project pointer.
func (c *ConsentStore) SetActive(ctx context.Context, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO active_project (singleton, project_id) VALUES (0, ?)
		ON CONFLICT(singleton) DO UPDATE SET project_id = excluded.project_id
	`, projectID)
	if err != nil {
		return apperrors.Storage("set active project", err)
	}
	return nil
}

// Active returns the current active project, or "" if none has been set.
func (c *ConsentStore) Active(ctx context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var id string
	err := c.db.QueryRowContext(ctx, `SELECT project_id FROM active_project WHERE singleton = 0`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Storage("get active project", err)
	}
	return id, nil
}
