package memory

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/driftwood-dev/semcode/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_units (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	category TEXT NOT NULL,
	context_level TEXT NOT NULL,
	scope TEXT NOT NULL,
	project TEXT NOT NULL DEFAULT '',
	tags TEXT,
	importance REAL NOT NULL DEFAULT 0,
	embedding BLOB,
	metadata TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_memory_units_project ON memory_units(project, deleted_at);
CREATE INDEX IF NOT EXISTS idx_memory_units_category ON memory_units(category, deleted_at);
`

// Store persists MemoryUnit records over a shared *sql.DB, the same sharing
// convention internal/usage and internal/telemetry use: the caller opens and
// owns the connection, Store just adds its schema and queries to it.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewStore wraps an already-open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InitSchema creates the memory_units table if missing. Safe to call
// repeatedly and alongside other packages' InitSchema on the same db.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

func (s *Store) validate(u *Unit) error {
	if len(u.Content) == 0 {
		return apperrors.New(apperrors.KindValidation, "memory unit content must not be empty", nil)
	}
	if len(u.Content) > maxContentBytes {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("memory unit content exceeds %d bytes", maxContentBytes), nil)
	}
	if !u.Category.valid() {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("invalid memory category %q", u.Category), nil)
	}
	if !u.ContextLevel.valid() {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("invalid memory context_level %q", u.ContextLevel), nil)
	}
	if !u.Scope.valid() {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("invalid memory scope %q", u.Scope), nil)
	}
	if u.Scope == ScopeProject && u.Project == "" {
		return apperrors.New(apperrors.KindValidation, "project-scoped memory unit requires a project", nil)
	}
	if u.Importance < 0 || u.Importance > 1 {
		return apperrors.New(apperrors.KindValidation, "memory importance must be within [0,1]", nil)
	}
	return nil
}

// Store inserts a new unit, assigning an ID if the caller left it blank.
func (s *Store) Store(ctx context.Context, u *Unit) (*Unit, error) {
	if err := s.validate(u); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	tags, err := json.Marshal(u.Tags)
	if err != nil {
		return nil, apperrors.Storage("marshal memory tags", err)
	}
	meta, err := json.Marshal(u.Metadata)
	if err != nil {
		return nil, apperrors.Storage("marshal memory metadata", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_units
			(id, content, category, context_level, scope, project, tags, importance, embedding, metadata, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`, u.ID, u.Content, string(u.Category), string(u.ContextLevel), string(u.Scope), u.Project,
		string(tags), u.Importance, embeddingToBytes(u.Embedding), string(meta),
		now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, apperrors.Storage("insert memory unit", err)
	}
	return u, nil
}

// Update applies a partial change to an existing unit: content changes
// invalidate the stored embedding, per the spec's re-embed-on-change
// invariant, leaving re-embedding itself to the caller (the embedding
// engine isn't this package's concern).
func (s *Store) Update(ctx context.Context, id string, patch func(*Unit)) (*Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.getLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	prevContent := u.Content
	patch(u)
	if u.Content != prevContent {
		u.Embedding = nil
	}
	if err := s.validate(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = time.Now().UTC()

	tags, err := json.Marshal(u.Tags)
	if err != nil {
		return nil, apperrors.Storage("marshal memory tags", err)
	}
	meta, err := json.Marshal(u.Metadata)
	if err != nil {
		return nil, apperrors.Storage("marshal memory metadata", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE memory_units
		SET content = ?, category = ?, context_level = ?, scope = ?, project = ?,
		    tags = ?, importance = ?, embedding = ?, metadata = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, u.Content, string(u.Category), string(u.ContextLevel), string(u.Scope), u.Project,
		string(tags), u.Importance, embeddingToBytes(u.Embedding), string(meta),
		u.UpdatedAt.UnixMilli(), id)
	if err != nil {
		return nil, apperrors.Storage("update memory unit", err)
	}
	return u, nil
}

// Get retrieves a single unit by ID.
func (s *Store) Get(ctx context.Context, id string) (*Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(ctx, id)
}

func (s *Store) getLocked(ctx context.Context, id string) (*Unit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, category, context_level, scope, project, tags, importance, embedding, metadata, created_at, updated_at
		FROM memory_units WHERE id = ? AND deleted_at IS NULL
	`, id)
	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.KindNotFound, fmt.Sprintf("memory unit %q not found", id), nil)
	}
	if err != nil {
		return nil, apperrors.Storage("get memory unit", err)
	}
	return u, nil
}

// List returns units matching the filter, newest first, paginated by a
// simple offset cursor the way store.SQLiteStore paginates files.
func (s *Store) List(ctx context.Context, f Filter) ([]*Unit, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := 0
	if f.Cursor != "" {
		decoded, err := base64.StdEncoding.DecodeString(f.Cursor)
		if err == nil {
			fmt.Sscanf(string(decoded), "offset:%d", &offset)
		}
	}

	var where []string
	var args []any
	where = append(where, "deleted_at IS NULL")
	if f.Project != "" {
		where = append(where, "project = ?")
		args = append(args, f.Project)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.ContextLevel != "" {
		where = append(where, "context_level = ?")
		args = append(args, string(f.ContextLevel))
	}
	if f.Scope != "" {
		where = append(where, "scope = ?")
		args = append(args, string(f.Scope))
	}
	if f.Tag != "" {
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+f.Tag+"\"%")
	}

	query := fmt.Sprintf(`
		SELECT id, content, category, context_level, scope, project, tags, importance, embedding, metadata, created_at, updated_at
		FROM memory_units WHERE %s ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, strings.Join(where, " AND "))
	args = append(args, limit+1, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", apperrors.Storage("list memory units", err)
	}
	defer rows.Close()

	var units []*Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, "", apperrors.Storage("scan memory unit", err)
		}
		units = append(units, u)
	}

	var nextCursor string
	if len(units) > limit {
		units = units[:limit]
		nextCursor = base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("offset:%d", offset+limit)))
	}
	return units, nextCursor, nil
}

// Delete soft-deletes a single unit by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE memory_units SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return apperrors.Storage("delete memory unit", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperrors.New(apperrors.KindNotFound, fmt.Sprintf("memory unit %q not found", id), nil)
	}
	return nil
}

// BulkDelete soft-deletes every unit matching the filter and returns the
// count affected. An empty filter is rejected to avoid an accidental
// whole-table wipe from a zero-value filter.
func (s *Store) BulkDelete(ctx context.Context, f Filter) (int, error) {
	if f.Project == "" && f.Category == "" && f.ContextLevel == "" && f.Scope == "" && f.Tag == "" {
		return 0, apperrors.New(apperrors.KindValidation, "bulk_delete requires at least one filter", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var where []string
	var args []any
	where = append(where, "deleted_at IS NULL")
	if f.Project != "" {
		where = append(where, "project = ?")
		args = append(args, f.Project)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.ContextLevel != "" {
		where = append(where, "context_level = ?")
		args = append(args, string(f.ContextLevel))
	}
	if f.Scope != "" {
		where = append(where, "scope = ?")
		args = append(args, string(f.Scope))
	}
	if f.Tag != "" {
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+f.Tag+"\"%")
	}

	args = append([]any{time.Now().UTC().UnixMilli()}, args...)
	query := fmt.Sprintf(`UPDATE memory_units SET deleted_at = ? WHERE %s`, strings.Join(where, " AND "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.Storage("bulk delete memory units", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(row scanner) (*Unit, error) {
	var u Unit
	var category, level, scope, tags, meta string
	var embedding []byte
	var createdMs, updatedMs int64

	if err := row.Scan(&u.ID, &u.Content, &category, &level, &scope, &u.Project, &tags,
		&u.Importance, &embedding, &meta, &createdMs, &updatedMs); err != nil {
		return nil, err
	}
	u.Category = Category(category)
	u.ContextLevel = ContextLevel(level)
	u.Scope = Scope(scope)
	u.Embedding = bytesToEmbedding(embedding)
	u.CreatedAt = time.UnixMilli(createdMs).UTC()
	u.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	if tags != "" {
		_ = json.Unmarshal([]byte(tags), &u.Tags)
	}
	if meta != "" {
		_ = json.Unmarshal([]byte(meta), &u.Metadata)
	}
	return &u, nil
}

// embeddingToBytes/bytesToEmbedding mirror internal/store's little-endian
// float32 packing so embeddings round-trip identically across both stores.
func embeddingToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, 0, len(floats)*4)
	tmp := make([]byte, 4)
	for _, f := range floats {
		binary.LittleEndian.PutUint32(tmp, math.Float32bits(f))
		buf = append(buf, tmp...)
	}
	return buf
}

func bytesToEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
