package callgraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Store persists the call graph for one or more projects in SQLite,
// following the same WAL/single-writer conventions as the metadata store.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

const callgraphSchema = `
CREATE TABLE IF NOT EXISTS functions (
	project_id TEXT NOT NULL,
	qualified_name TEXT NOT NULL,
	name TEXT NOT NULL,
	file_path TEXT,
	language TEXT,
	start_line INTEGER,
	end_line INTEGER,
	is_exported INTEGER NOT NULL DEFAULT 0,
	is_async INTEGER NOT NULL DEFAULT 0,
	parameters_json TEXT,
	return_type TEXT,
	PRIMARY KEY (project_id, qualified_name)
);

CREATE TABLE IF NOT EXISTS call_sites (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	caller_qualified_name TEXT NOT NULL,
	caller_file TEXT NOT NULL,
	caller_line INTEGER NOT NULL,
	callee_name TEXT NOT NULL,
	callee_qualified_name TEXT NOT NULL DEFAULT '',
	call_type TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_call_sites_caller ON call_sites(project_id, caller_qualified_name);
CREATE INDEX IF NOT EXISTS idx_call_sites_callee ON call_sites(project_id, callee_qualified_name);
CREATE INDEX IF NOT EXISTS idx_call_sites_file ON call_sites(project_id, caller_file);
`

// NewStore opens (or creates) a call-graph store at dbPath.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open call graph store: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(callgraphSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close checkpoints the WAL and closes the underlying connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// StoreFunction upserts a function node and, when provided, records direct
// edges to callsTo and from calledBy — a convenience for callers that already
// know a function's immediate neighbors without a separate call-site pass.
func (s *Store) StoreFunction(ctx context.Context, node *FunctionNode, callsTo, calledBy []string) error {
	paramsJSON, err := json.Marshal(node.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters for %s: %w", node.QualifiedName, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO functions(project_id, qualified_name, name, file_path, language, start_line, end_line,
			is_exported, is_async, parameters_json, return_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, qualified_name) DO UPDATE SET
			name=excluded.name, file_path=excluded.file_path, language=excluded.language,
			start_line=excluded.start_line, end_line=excluded.end_line, is_exported=excluded.is_exported,
			is_async=excluded.is_async, parameters_json=excluded.parameters_json, return_type=excluded.return_type
	`, node.ProjectID, node.QualifiedName, node.Name, node.FilePath, node.Language, node.StartLine, node.EndLine,
		node.IsExported, node.IsAsync, string(paramsJSON), node.ReturnType)
	if err != nil {
		return fmt.Errorf("failed to save function %s: %w", node.QualifiedName, err)
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO call_sites(project_id, caller_qualified_name, caller_file, caller_line,
			callee_name, callee_qualified_name, call_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for _, callee := range callsTo {
		if _, err := edgeStmt.ExecContext(ctx, node.ProjectID, node.QualifiedName, node.FilePath, node.StartLine,
			callee, callee, string(CallTypeDirect)); err != nil {
			return fmt.Errorf("failed to link %s -> %s: %w", node.QualifiedName, callee, err)
		}
	}
	for _, caller := range calledBy {
		if _, err := edgeStmt.ExecContext(ctx, node.ProjectID, caller, "", 0,
			node.Name, node.QualifiedName, string(CallTypeDirect)); err != nil {
			return fmt.Errorf("failed to link %s -> %s: %w", caller, node.QualifiedName, err)
		}
	}

	return tx.Commit()
}

// GetFunction returns a function node by qualified name, or nil if not found.
func (s *Store) GetFunction(ctx context.Context, projectID, qualifiedName string) (*FunctionNode, error) {
	var node FunctionNode
	var paramsJSON string
	node.ProjectID = projectID

	err := s.db.QueryRowContext(ctx, `
		SELECT qualified_name, name, file_path, language, start_line, end_line, is_exported, is_async,
			parameters_json, return_type
		FROM functions WHERE project_id = ? AND qualified_name = ?
	`, projectID, qualifiedName).Scan(&node.QualifiedName, &node.Name, &node.FilePath, &node.Language,
		&node.StartLine, &node.EndLine, &node.IsExported, &node.IsAsync, &paramsJSON, &node.ReturnType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get function %s: %w", qualifiedName, err)
	}

	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &node.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameters for %s: %w", qualifiedName, err)
		}
	}
	return &node, nil
}

// StoreCallSites appends call-site edges for a caller without disturbing any
// edges already recorded for other callers in the same file.
func (s *Store) StoreCallSites(ctx context.Context, projectID string, sites []*CallSite) error {
	if len(sites) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertCallSites(ctx, tx, projectID, sites); err != nil {
		return err
	}
	return tx.Commit()
}

func insertCallSites(ctx context.Context, tx *sql.Tx, projectID string, sites []*CallSite) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO call_sites(project_id, caller_qualified_name, caller_file, caller_line,
			callee_name, callee_qualified_name, call_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare call site insert: %w", err)
	}
	defer stmt.Close()

	for _, site := range sites {
		if _, err := stmt.ExecContext(ctx, projectID, site.CallerQualifiedName, site.CallerFile, site.CallerLine,
			site.CalleeName, site.CalleeQualifiedName, string(site.CallType)); err != nil {
			return fmt.Errorf("failed to save call site %s -> %s: %w", site.CallerQualifiedName, site.CalleeName, err)
		}
	}
	return nil
}

// ReplaceCallsForFile atomically replaces every call site whose caller_file
// equals filePath, per the "on re-index, all call sites for that file are
// replaced atomically" invariant.
func (s *Store) ReplaceCallsForFile(ctx context.Context, projectID, filePath string, sites []*CallSite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM call_sites WHERE project_id = ? AND caller_file = ?`, projectID, filePath); err != nil {
		return fmt.Errorf("failed to clear call sites for %s: %w", filePath, err)
	}

	if err := insertCallSites(ctx, tx, projectID, sites); err != nil {
		return err
	}

	return tx.Commit()
}

// edge is one resolved (project_id, caller, callee) adjacency pair, loaded
// in bulk and used to build BFS adjacency maps per traversal.
type edge struct {
	caller       string
	callerFile   string
	callerLine   int
	calleeName   string
	callee       string // resolved qualified name, empty if unresolved
	callType     string
}

func (s *Store) loadEdges(ctx context.Context, projectID string) ([]edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT caller_qualified_name, caller_file, caller_line, callee_name, callee_qualified_name, call_type
		FROM call_sites WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load call sites: %w", err)
	}
	defer rows.Close()

	var edges []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.caller, &e.callerFile, &e.callerLine, &e.calleeName, &e.callee, &e.callType); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func unmarshalParams(data string, out *[]string) error {
	return json.Unmarshal([]byte(data), out)
}
