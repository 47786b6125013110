package core

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/driftwood-dev/semcode/internal/errors"
	"github.com/driftwood-dev/semcode/internal/memory"
	"github.com/driftwood-dev/semcode/internal/retrievalgate"
	"github.com/driftwood-dev/semcode/internal/search"
	"github.com/driftwood-dev/semcode/internal/store"
)

func setupCoreTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "core.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL")
	require.NoError(t, err)
	require.NoError(t, InitConsentSchema(db))
	require.NoError(t, memory.InitSchema(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeSearchEngine is a minimal search.SearchEngine stand-in.
type fakeSearchEngine struct {
	results []*search.SearchResult
	err     error
	calls   int
}

func (f *fakeSearchEngine) Search(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}
func (f *fakeSearchEngine) Index(ctx context.Context, chunks []*store.Chunk) error { return nil }
func (f *fakeSearchEngine) Delete(ctx context.Context, ids []string) error         { return nil }
func (f *fakeSearchEngine) Stats() *search.EngineStats                            { return &search.EngineStats{VectorCount: 3} }
func (f *fakeSearchEngine) Close() error                                          { return nil }

func TestServer_Search_ReturnsEngineResults(t *testing.T) {
	db := setupCoreTestDB(t)
	engine := &fakeSearchEngine{results: []*search.SearchResult{
		{Chunk: &store.Chunk{ID: "c1"}, Score: 0.9},
	}}
	s := NewServer(memory.NewStore(db), NewConsentStore(db), engine, nil, nil, nil, nil, nil, nil)

	results, err := s.Search(context.Background(), "hybrid fusion re-ranker query terms", SearchModeHybrid, retrievalgate.SessionState{TurnsSinceRetrieval: 2}, search.SearchOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, engine.calls)
}

func TestServer_Search_RejectsEmptyQuery(t *testing.T) {
	db := setupCoreTestDB(t)
	s := NewServer(memory.NewStore(db), NewConsentStore(db), &fakeSearchEngine{}, nil, nil, nil, nil, nil, nil)

	_, err := s.Search(context.Background(), "", SearchModeHybrid, retrievalgate.SessionState{}, search.SearchOptions{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestServer_MemoryCRUD_Roundtrip(t *testing.T) {
	db := setupCoreTestDB(t)
	s := NewServer(memory.NewStore(db), NewConsentStore(db), &fakeSearchEngine{}, nil, nil, nil, nil, nil, nil)
	ctx := context.Background()

	u, err := s.StoreMemory(ctx, &memory.Unit{
		Content: "ships on Fridays only with explicit sign-off", Category: memory.CategoryWorkflow,
		ContextLevel: memory.ContextProject, Scope: memory.ScopeProject, Project: "p1",
	})
	require.NoError(t, err)

	got, err := s.GetMemory(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Content, got.Content)

	_, err = s.UpdateMemory(ctx, u.ID, func(unit *memory.Unit) { unit.Importance = 0.9 })
	require.NoError(t, err)

	list, _, err := s.ListMemory(ctx, memory.Filter{Project: "p1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteMemory(ctx, u.ID))
	_, err = s.GetMemory(ctx, u.ID)
	require.Error(t, err)
}

func TestServer_ProjectConsent_Lifecycle(t *testing.T) {
	db := setupCoreTestDB(t)
	s := NewServer(memory.NewStore(db), NewConsentStore(db), &fakeSearchEngine{}, nil, nil, nil, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, s.SwitchProject(ctx, "proj-a"))
	active, err := s.ActiveProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, "proj-a", active)

	require.NoError(t, s.OptIn(ctx, "proj-a"))
	require.NoError(t, s.OptIn(ctx, "proj-b"))
	ids, err := s.ListOptedIn(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"proj-a", "proj-b"}, ids)

	require.NoError(t, s.OptOut(ctx, "proj-b"))
	ids, err = s.ListOptedIn(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"proj-a"}, ids)
}

func TestServer_SearchAcrossOptedIn_MergesPerProjectResults(t *testing.T) {
	db := setupCoreTestDB(t)
	s := NewServer(memory.NewStore(db), NewConsentStore(db), &fakeSearchEngine{}, nil, nil, nil, nil, nil, nil)
	ctx := context.Background()
	require.NoError(t, s.OptIn(ctx, "proj-a"))
	require.NoError(t, s.OptIn(ctx, "proj-b"))

	engineA := &fakeSearchEngine{results: []*search.SearchResult{{Chunk: &store.Chunk{ID: "a1"}}}}
	engineB := &fakeSearchEngine{results: []*search.SearchResult{{Chunk: &store.Chunk{ID: "b1"}}}}

	results, err := s.SearchAcrossOptedIn(ctx, "shared query", map[string]search.SearchEngine{
		"proj-a": engineA, "proj-b": engineB,
	}, search.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestServer_HealthScore_ClampsToUnitRange(t *testing.T) {
	s := &Server{}
	score, err := s.HealthScore(context.Background(), reporterAt(40))
	require.NoError(t, err)
	assert.InDelta(t, 0.6, score, 1e-9)

	_, err = s.HealthScore(context.Background(), nil)
	require.Error(t, err)
}

type reporterAt float64

func (r reporterAt) ZeroResultPercentage() float64 { return float64(r) }
