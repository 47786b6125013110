package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "hybrid", cfg.Search.DefaultMode)
	assert.Equal(t, "weighted", cfg.Search.DefaultFusion)
	assert.Equal(t, 0.5, cfg.Search.Alpha)
	assert.Equal(t, 1.2, cfg.Search.BM25.K1)
	assert.Equal(t, 0.75, cfg.Search.BM25.B)
	assert.Equal(t, 0.60, cfg.Search.RerankWeights.Similarity)
	assert.Equal(t, 0.20, cfg.Search.RerankWeights.Recency)
	assert.Equal(t, 0.20, cfg.Search.RerankWeights.Usage)

	assert.Equal(t, "static-hash-v1", cfg.Embeddings.ModelID)
	assert.Equal(t, 256, cfg.Embeddings.Dimension)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)

	assert.Equal(t, 7, cfg.Lifecycle.ActiveDays)
	assert.Equal(t, 30, cfg.Lifecycle.RecentDays)
	assert.Equal(t, 180, cfg.Lifecycle.ArchivedDays)
	assert.Equal(t, 48, cfg.Lifecycle.SessionTTLHours)

	assert.False(t, cfg.RetrievalGate.Enabled)
	assert.False(t, cfg.ReadOnly)

	require.NoError(t, cfg.Validate())
}

func TestIndexingResolveParallelWorkers(t *testing.T) {
	cfg := IndexingConfig{ParallelWorkers: "auto"}
	assert.Greater(t, cfg.ResolveParallelWorkers(), 0)

	cfg = IndexingConfig{ParallelWorkers: "4"}
	assert.Equal(t, 4, cfg.ResolveParallelWorkers())

	cfg = IndexingConfig{ParallelWorkers: "bogus"}
	assert.Greater(t, cfg.ResolveParallelWorkers(), 0)
}

func TestLoadFromProjectFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-user-config"))

	yamlContent := `
search:
  default_mode: keyword
  alpha: 0.75
embeddings:
  model_id: test-model
read_only: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".semcode.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "keyword", cfg.Search.DefaultMode)
	assert.Equal(t, 0.75, cfg.Search.Alpha)
	assert.Equal(t, "test-model", cfg.Embeddings.ModelID)
	assert.True(t, cfg.ReadOnly)
	// Unset fields keep their defaults
	assert.Equal(t, "weighted", cfg.Search.DefaultFusion)
}

func TestLoadWithoutProjectFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-user-config"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "hybrid", cfg.Search.DefaultMode)
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-user-config"))

	yamlContent := "search:\n  alpha: 0.3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".semcode.yaml"), []byte(yamlContent), 0o644))
	t.Setenv("CLAUDE_RAG_SEARCH_ALPHA", "0.9")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Search.Alpha)
}

func TestEnvOverrideBooleans(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-user-config"))
	t.Setenv("CLAUDE_RAG_READ_ONLY", "true")
	t.Setenv("CLAUDE_RAG_RETRIEVAL_GATE_ENABLED", "1")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.ReadOnly)
	assert.True(t, cfg.RetrievalGate.Enabled)
}

func TestValidateRejectsOutOfRangeAlpha(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.Alpha = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadFusionMode(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.DefaultFusion = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonIncreasingLifecycleThresholds(t *testing.T) {
	cfg := NewConfig()
	cfg.Lifecycle.RecentDays = cfg.Lifecycle.ActiveDays
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsPoolMaxBelowMin(t *testing.T) {
	cfg := NewConfig()
	cfg.Storage.Pool.Min = 10
	cfg.Storage.Pool.Max = 2
	assert.Error(t, cfg.Validate())
}

func TestWriteAndReloadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := NewConfig()
	cfg.Search.Alpha = 0.42
	require.NoError(t, cfg.WriteYAML(path))

	reloaded := NewConfig()
	require.NoError(t, reloaded.loadYAML(path))
	assert.Equal(t, 0.42, reloaded.Search.Alpha)
}

func TestFindProjectRootFindsGitDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	root, err := FindProjectRoot(sub)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestFindProjectRootFallsBackToStart(t *testing.T) {
	dir := t.TempDir()
	root, err := FindProjectRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}
