// Package memory persists MemoryUnit records: user- or agent-supplied
// knowledge items that share an embedding-backed storage shape with code
// chunks but carry their own category/context/scope vocabulary. It follows
// internal/store's SQLiteStore conventions (modernc.org/sqlite, WAL mode,
// JSON-encoded side maps, little-endian float32 packing for embeddings)
// rather than reusing that store directly, since MemoryUnit has no file_id
// or line-range lineage to anchor it to the chunks schema.
package memory

import "time"

// Category classifies what kind of knowledge a unit holds.
type Category string

const (
	CategoryPreference Category = "preference"
	CategoryFact       Category = "fact"
	CategoryEvent      Category = "event"
	CategoryWorkflow   Category = "workflow"
	CategoryContext    Category = "context"
	CategoryCode       Category = "code"
)

func (c Category) valid() bool {
	switch c {
	case CategoryPreference, CategoryFact, CategoryEvent, CategoryWorkflow, CategoryContext, CategoryCode:
		return true
	}
	return false
}

// ContextLevel is the scope at which a unit is recalled.
type ContextLevel string

const (
	ContextUser    ContextLevel = "user"
	ContextProject ContextLevel = "project"
	ContextSession ContextLevel = "session"
)

func (c ContextLevel) valid() bool {
	switch c {
	case ContextUser, ContextProject, ContextSession:
		return true
	}
	return false
}

// Scope controls whether a unit is visible across all projects or pinned
// to the one it was written under.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
)

func (c Scope) valid() bool {
	return c == ScopeGlobal || c == ScopeProject
}

// maxContentBytes is the per-unit content size ceiling.
const maxContentBytes = 50_000

// Unit is one MemoryUnit record.
type Unit struct {
	ID           string
	Content      string
	Category     Category
	ContextLevel ContextLevel
	Scope        Scope
	Project      string
	Tags         []string
	Importance   float64
	Embedding    []float32
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Filter narrows List/BulkDelete to a subset of units. Zero-value fields
// are not applied.
type Filter struct {
	Project      string
	Category     Category
	ContextLevel ContextLevel
	Scope        Scope
	Tag          string
	Cursor       string
	Limit        int
}
