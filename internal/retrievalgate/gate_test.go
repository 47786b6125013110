package retrievalgate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftwood-dev/semcode/internal/config"
)

func TestGate_Disabled_AlwaysRetrieves(t *testing.T) {
	g := New(config.RetrievalGateConfig{Enabled: false})

	assert.True(t, g.ShouldRetrieve("x", SessionState{}))
	assert.True(t, g.ShouldRetrieve("", SessionState{}))
	assert.Equal(t, int64(0), g.Gated())
}

func TestGate_EmptyQuery_Gated(t *testing.T) {
	g := New(config.RetrievalGateConfig{Enabled: true, Threshold: 0.3})

	assert.False(t, g.ShouldRetrieve("   ", SessionState{}))
	assert.Equal(t, int64(1), g.Gated())
}

func TestGate_ExplicitMarker_BypassesThreshold(t *testing.T) {
	g := New(config.RetrievalGateConfig{Enabled: true, Threshold: 0.9})

	assert.True(t, g.ShouldRetrieve(`"exact phrase"`, SessionState{}))
	assert.True(t, g.ShouldRetrieve("ERR_TIMEOUT", SessionState{}))
	assert.True(t, g.ShouldRetrieve("internal/search/engine.go", SessionState{}))
	assert.Equal(t, int64(0), g.Gated())
}

func TestGate_LowContentWordRatio_Gated(t *testing.T) {
	g := New(config.RetrievalGateConfig{Enabled: true, Threshold: 0.5})

	// Mostly stopwords, short, and a just-retrieved session: low score.
	assert.False(t, g.ShouldRetrieve("is it", SessionState{TurnsSinceRetrieval: 0}))
	assert.Equal(t, int64(1), g.Gated())
}

func TestGate_RichQuery_Retrieves(t *testing.T) {
	g := New(config.RetrievalGateConfig{Enabled: true, Threshold: 0.3})

	assert.True(t, g.ShouldRetrieve("explain how the hybrid search fusion re-ranker combines semantic and lexical scores", SessionState{TurnsSinceRetrieval: 3}))
	assert.Equal(t, int64(0), g.Gated())
}

func TestGate_ProbedCountsEveryCall(t *testing.T) {
	g := New(config.RetrievalGateConfig{Enabled: true, Threshold: 0.3})

	g.ShouldRetrieve("a", SessionState{})
	g.ShouldRetrieve("b", SessionState{})
	assert.Equal(t, int64(2), g.Probed())
}
