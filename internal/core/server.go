// Package core implements a thin coordinator binding the Memory,
// Retrieval, Indexing, Structural, Project, and Status operation groups to
// the underlying engine packages, the way internal/mcp.Server binds search
// and indexing to the MCP tool surface. Server holds no business logic of
// its own beyond input validation and delegation; each method's job is to
// translate one named operation into the right call on the right package
// and fold the result into the closed error taxonomy.
package core

import (
	"context"
	"time"

	"github.com/driftwood-dev/semcode/internal/callgraph"
	apperrors "github.com/driftwood-dev/semcode/internal/errors"
	"github.com/driftwood-dev/semcode/internal/memory"
	"github.com/driftwood-dev/semcode/internal/retrievalgate"
	"github.com/driftwood-dev/semcode/internal/search"
	"github.com/driftwood-dev/semcode/internal/store"
	"github.com/driftwood-dev/semcode/internal/usage"
)

// Indexer is the narrow slice of internal/index.Coordinator that Server
// needs: index a single path and resync a whole project against disk.
// internal/index.Coordinator satisfies this directly (IndexPath delegates
// to HandleEvents with a single synthesized create/modify event; Reindex
// delegates to ReconcileOnStartup).
type Indexer interface {
	IndexPath(ctx context.Context, path string) error
	Reindex(ctx context.Context, projectID string) error
}

// Watcher is the narrow slice of internal/watcher's HybridWatcher /
// PollingWatcher that Server needs to turn watch(root, on/off) on and off.
type Watcher interface {
	Start(ctx context.Context, path string) error
	Stop() error
}

// HealthReporter exposes the aggregate counters Server's status/metrics/
// health_score operations read from, grounded on internal/telemetry's
// QueryMetricsSnapshot shape.
type HealthReporter interface {
	ZeroResultPercentage() float64
}

// Server is the core façade. Every field is a pre-built dependency; Server
// wires none of them up itself (that's cmd/'s job), it only calls them.
type Server struct {
	Memory    *memory.Store
	Consent   *ConsentStore
	Engine    search.SearchEngine
	Metadata  store.MetadataStore
	CallGraph *callgraph.Store
	Usage     *usage.Tracker
	UsageDB   *usage.Store
	Gate      *retrievalgate.Gate
	Indexer   Indexer

	watcher    Watcher
	watcherRun bool
}

// NewServer assembles a Server from already-constructed dependencies. A nil
// Gate is valid (retrieval gate is optional per spec); everything else is
// required for the operation group that uses it to function, but Server
// itself never dereferences a field it wasn't asked to use.
func NewServer(
	mem *memory.Store,
	consent *ConsentStore,
	searchEngine search.SearchEngine,
	metadata store.MetadataStore,
	cg *callgraph.Store,
	usageTracker *usage.Tracker,
	usageDB *usage.Store,
	gate *retrievalgate.Gate,
	indexer Indexer,
) *Server {
	return &Server{
		Memory:    mem,
		Consent:   consent,
		Engine:    searchEngine,
		Metadata:  metadata,
		CallGraph: cg,
		Usage:     usageTracker,
		UsageDB:   usageDB,
		Gate:      gate,
		Indexer:   indexer,
	}
}

// --- Memory ---

// StoreMemory creates a new MemoryUnit.
func (s *Server) StoreMemory(ctx context.Context, u *memory.Unit) (*memory.Unit, error) {
	if s.Memory == nil {
		return nil, apperrors.New(apperrors.KindStorage, "memory store not configured", nil)
	}
	return s.Memory.Store(ctx, u)
}

// UpdateMemory applies a partial change to an existing MemoryUnit.
func (s *Server) UpdateMemory(ctx context.Context, id string, patch func(*memory.Unit)) (*memory.Unit, error) {
	if s.Memory == nil {
		return nil, apperrors.New(apperrors.KindStorage, "memory store not configured", nil)
	}
	return s.Memory.Update(ctx, id, patch)
}

// GetMemory fetches a MemoryUnit by ID and records the access for lifecycle
// tracking, mirroring how a retrieved chunk's access is recorded.
func (s *Server) GetMemory(ctx context.Context, id string) (*memory.Unit, error) {
	if s.Memory == nil {
		return nil, apperrors.New(apperrors.KindStorage, "memory store not configured", nil)
	}
	u, err := s.Memory.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Usage != nil {
		s.Usage.RecordAccess([]string{id}, "memory.get", time.Now().UTC())
	}
	return u, nil
}

// ListMemory lists MemoryUnits matching a filter.
func (s *Server) ListMemory(ctx context.Context, f memory.Filter) ([]*memory.Unit, string, error) {
	if s.Memory == nil {
		return nil, "", apperrors.New(apperrors.KindStorage, "memory store not configured", nil)
	}
	return s.Memory.List(ctx, f)
}

// DeleteMemory removes a single MemoryUnit.
func (s *Server) DeleteMemory(ctx context.Context, id string) error {
	if s.Memory == nil {
		return apperrors.New(apperrors.KindStorage, "memory store not configured", nil)
	}
	return s.Memory.Delete(ctx, id)
}

// BulkDeleteMemory removes every MemoryUnit matching a filter.
func (s *Server) BulkDeleteMemory(ctx context.Context, f memory.Filter) (int, error) {
	if s.Memory == nil {
		return 0, apperrors.New(apperrors.KindStorage, "memory store not configured", nil)
	}
	return s.Memory.BulkDelete(ctx, f)
}

// --- Retrieval ---

// Retrieve lists chunks/units matching filters without a query, for the
// "browse" half of the retrieval API (filters only, no ranking).
func (s *Server) Retrieve(ctx context.Context, f memory.Filter) ([]*memory.Unit, string, error) {
	return s.ListMemory(ctx, f)
}

// SearchMode selects how Search balances lexical and semantic scoring.
type SearchMode string

const (
	SearchModeHybrid   SearchMode = "hybrid"
	SearchModeLexical  SearchMode = "lexical"
	SearchModeSemantic SearchMode = "semantic"
)

// Search runs a query through the optional retrieval gate and, if not
// gated out, the hybrid search engine. session may be the zero value when
// the caller has no session state to report.
func (s *Server) Search(ctx context.Context, query string, mode SearchMode, session retrievalgate.SessionState, opts search.SearchOptions) ([]*search.SearchResult, error) {
	if query == "" {
		return nil, apperrors.New(apperrors.KindValidation, "search query must not be empty", nil)
	}
	if s.Gate != nil && !s.Gate.ShouldRetrieve(query, session) {
		return nil, nil
	}
	if s.Engine == nil {
		return nil, apperrors.New(apperrors.KindStorage, "search engine not configured", nil)
	}
	results, err := s.Engine.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	if s.Usage != nil && len(results) > 0 {
		ids := make([]string, 0, len(results))
		for _, r := range results {
			if r.Chunk != nil {
				ids = append(ids, r.Chunk.ID)
			}
		}
		if len(ids) > 0 {
			s.Usage.RecordAccess(ids, query, time.Now().UTC())
		}
	}
	return results, nil
}

// FindSimilar searches using arbitrary content (not a user query) as the
// probe, e.g. "find code like this snippet". It bypasses the retrieval
// gate, since the caller already decided retrieval is worth it.
func (s *Server) FindSimilar(ctx context.Context, content string, opts search.SearchOptions) ([]*search.SearchResult, error) {
	if content == "" {
		return nil, apperrors.New(apperrors.KindValidation, "find_similar content must not be empty", nil)
	}
	if s.Engine == nil {
		return nil, apperrors.New(apperrors.KindStorage, "search engine not configured", nil)
	}
	return s.Engine.Search(ctx, content, opts)
}

// --- Indexing ---

// Index indexes a single file or directory path.
func (s *Server) Index(ctx context.Context, path string) error {
	if path == "" {
		return apperrors.New(apperrors.KindValidation, "index path must not be empty", nil)
	}
	if s.Indexer == nil {
		return apperrors.New(apperrors.KindStorage, "indexer not configured", nil)
	}
	return s.Indexer.IndexPath(ctx, path)
}

// Reindex resyncs an entire project against disk state.
func (s *Server) Reindex(ctx context.Context, projectID string) error {
	if projectID == "" {
		return apperrors.New(apperrors.KindValidation, "project id must not be empty", nil)
	}
	if s.Indexer == nil {
		return apperrors.New(apperrors.KindStorage, "indexer not configured", nil)
	}
	return s.Indexer.Reindex(ctx, projectID)
}

// Watch starts or stops the file watcher against root. w is required the
// first time enable is true; subsequent calls reuse the watcher Server was
// last given.
func (s *Server) Watch(ctx context.Context, root string, enable bool, w Watcher) error {
	if enable {
		if w == nil {
			w = s.watcher
		}
		if w == nil {
			return apperrors.New(apperrors.KindValidation, "watch(on) requires a watcher", nil)
		}
		if err := w.Start(ctx, root); err != nil {
			return apperrors.Storage("start watcher", err)
		}
		s.watcher = w
		s.watcherRun = true
		return nil
	}
	if !s.watcherRun || s.watcher == nil {
		return nil
	}
	err := s.watcher.Stop()
	s.watcherRun = false
	if err != nil {
		return apperrors.Storage("stop watcher", err)
	}
	return nil
}

// --- Structural ---

// Callers returns the functions that call qualifiedName.
func (s *Server) Callers(ctx context.Context, projectID, qualifiedName string, maxDepth int, includeIndirect bool) ([]*callgraph.FunctionNode, error) {
	if s.CallGraph == nil {
		return nil, apperrors.New(apperrors.KindStorage, "call graph not configured", nil)
	}
	return s.CallGraph.Callers(ctx, projectID, qualifiedName, maxDepth, includeIndirect)
}

// Callees returns the functions qualifiedName calls.
func (s *Server) Callees(ctx context.Context, projectID, qualifiedName string, maxDepth int, includeIndirect bool) ([]*callgraph.FunctionNode, error) {
	if s.CallGraph == nil {
		return nil, apperrors.New(apperrors.KindStorage, "call graph not configured", nil)
	}
	return s.CallGraph.Callees(ctx, projectID, qualifiedName, maxDepth, includeIndirect)
}

// CallChain returns paths from one function to another.
func (s *Server) CallChain(ctx context.Context, projectID, from, to string, maxDepth, maxPaths int) ([]callgraph.Path, error) {
	if s.CallGraph == nil {
		return nil, apperrors.New(apperrors.KindStorage, "call graph not configured", nil)
	}
	return s.CallGraph.CallChain(ctx, projectID, from, to, maxDepth, maxPaths)
}

// Dependencies returns what qualifiedName transitively depends on, i.e.
// its full indirect callee set.
func (s *Server) Dependencies(ctx context.Context, projectID, qualifiedName string, maxDepth int) ([]*callgraph.FunctionNode, error) {
	return s.Callees(ctx, projectID, qualifiedName, maxDepth, true)
}

// Dependents returns what transitively depends on qualifiedName, i.e. its
// full indirect caller set.
func (s *Server) Dependents(ctx context.Context, projectID, qualifiedName string, maxDepth int) ([]*callgraph.FunctionNode, error) {
	return s.Callers(ctx, projectID, qualifiedName, maxDepth, true)
}

// --- Project ---

// SwitchProject changes the active project.
func (s *Server) SwitchProject(ctx context.Context, projectID string) error {
	if s.Consent == nil {
		return apperrors.New(apperrors.KindStorage, "consent store not configured", nil)
	}
	if projectID == "" {
		return apperrors.New(apperrors.KindValidation, "project id must not be empty", nil)
	}
	return s.Consent.SetActive(ctx, projectID)
}

// ActiveProject returns the currently active project ID.
func (s *Server) ActiveProject(ctx context.Context) (string, error) {
	if s.Consent == nil {
		return "", apperrors.New(apperrors.KindStorage, "consent store not configured", nil)
	}
	return s.Consent.Active(ctx)
}

// OptIn enrolls a project into cross-project search.
func (s *Server) OptIn(ctx context.Context, projectID string) error {
	if s.Consent == nil {
		return apperrors.New(apperrors.KindStorage, "consent store not configured", nil)
	}
	return s.Consent.OptIn(ctx, projectID)
}

// OptOut withdraws a project from cross-project search.
func (s *Server) OptOut(ctx context.Context, projectID string) error {
	if s.Consent == nil {
		return apperrors.New(apperrors.KindStorage, "consent store not configured", nil)
	}
	return s.Consent.OptOut(ctx, projectID)
}

// ListOptedIn lists every project currently opted into cross-project search.
func (s *Server) ListOptedIn(ctx context.Context) ([]string, error) {
	if s.Consent == nil {
		return nil, apperrors.New(apperrors.KindStorage, "consent store not configured", nil)
	}
	return s.Consent.ListOptedIn(ctx)
}

// SearchAcrossOptedIn runs query against every opted-in project's search
// scope. The underlying SearchEngine is project-scoped by construction (one
// engine per open project), so this fans the query out and merges by score.
func (s *Server) SearchAcrossOptedIn(ctx context.Context, query string, enginesByProject map[string]search.SearchEngine, opts search.SearchOptions) ([]*search.SearchResult, error) {
	if query == "" {
		return nil, apperrors.New(apperrors.KindValidation, "search query must not be empty", nil)
	}
	projects, err := s.ListOptedIn(ctx)
	if err != nil {
		return nil, err
	}

	var merged []*search.SearchResult
	for _, p := range projects {
		engine, ok := enginesByProject[p]
		if !ok || engine == nil {
			continue
		}
		results, err := engine.Search(ctx, query, opts)
		if err != nil {
			continue
		}
		merged = append(merged, results...)
	}
	return merged, nil
}

// --- Status / health ---

// Status summarizes the server's current operating state.
type Status struct {
	ActiveProject string
	OptedInCount  int
	GateEnabled   bool
	GateGated     int64
	GateProbed    int64
}

// Status reports the server's current state.
func (s *Server) Status(ctx context.Context) (*Status, error) {
	st := &Status{}
	if s.Consent != nil {
		active, err := s.Consent.Active(ctx)
		if err == nil {
			st.ActiveProject = active
		}
		if ids, err := s.Consent.ListOptedIn(ctx); err == nil {
			st.OptedInCount = len(ids)
		}
	}
	if s.Gate != nil {
		st.GateEnabled = true
		st.GateGated = s.Gate.Gated()
		st.GateProbed = s.Gate.Probed()
	}
	return st, nil
}

// Metrics reports the engine statistics exposed by the search engine.
func (s *Server) Metrics(ctx context.Context) (*search.EngineStats, error) {
	if s.Engine == nil {
		return nil, apperrors.New(apperrors.KindStorage, "search engine not configured", nil)
	}
	return s.Engine.Stats(), nil
}

// HealthScore reduces the zero-result rate from a HealthReporter into a
// single [0,1] figure: 1 is healthy, 0 means every recent query came up
// empty.
func (s *Server) HealthScore(ctx context.Context, reporter HealthReporter) (float64, error) {
	if reporter == nil {
		return 0, apperrors.New(apperrors.KindValidation, "health reporter required", nil)
	}
	score := 1 - reporter.ZeroResultPercentage()/100
	switch {
	case score < 0:
		score = 0
	case score > 1:
		score = 1
	}
	return score, nil
}
