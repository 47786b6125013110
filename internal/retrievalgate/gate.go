// Package retrievalgate implements a pure heuristic pre-search filter: no
// LLM call, just bounded pattern checks over the query string, grounded on
// internal/search's regex-based PatternClassifier fallback path.
package retrievalgate

import (
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/driftwood-dev/semcode/internal/config"
)

// Explicit-marker patterns, each matched against the whole query: quoted
// phrases, error codes, file paths, and (single-token only) technical
// identifiers. Mirrors internal/search's PatternClassifier lexical checks.
var (
	quotedPattern    = regexp.MustCompile(`^["'].*["']$`)
	errorCodePattern = regexp.MustCompile(`(?i)^(ERR_\w+|E\d{4,5}|[A-Z]{2,}\d{3,}|\w+Exception)$`)
	filePathPattern  = regexp.MustCompile(`(?i)^[\w\-./\\]+\.(go|ts|tsx|js|jsx|py|md|json|yaml|yml|toml)$`)
	snakeCasePattern = regexp.MustCompile(`^[a-z]+(_[a-z0-9]+)+$`)
	pascalOrCamel    = regexp.MustCompile(`^([A-Z][a-z0-9]*){2,}$|^[a-z]+([A-Z][a-z0-9]*)+$`)
)

// hasExplicitMarker reports whether the whole query is a single lexical
// token the gate should never suppress: a quoted phrase, an error code, a
// file path, or a camelCase/PascalCase/snake_case identifier.
func hasExplicitMarker(query string) bool {
	if quotedPattern.MatchString(query) || errorCodePattern.MatchString(query) || filePathPattern.MatchString(query) {
		return true
	}
	if !strings.Contains(query, " ") {
		return snakeCasePattern.MatchString(query) || pascalOrCamel.MatchString(query)
	}
	return false
}

// stopWords are filler words excluded when computing content-word ratio.
// This is a generic English list (distinct from internal/store's
// code-keyword stop list, which filters a different vocabulary).
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "to": true, "of": true, "and": true,
	"or": true, "in": true, "on": true, "at": true, "for": true, "with": true,
	"this": true, "that": true, "it": true, "do": true, "does": true, "did": true,
	"can": true, "could": true, "would": true, "should": true, "i": true, "you": true,
}

// SessionState carries the minimal session context the gate needs: how
// recently the session already pulled retrieval results, used to avoid
// re-retrieving for a tight follow-up exchange.
type SessionState struct {
	// TurnsSinceRetrieval is how many conversational turns have passed
	// since the last retrieval. 0 means retrieval just happened.
	TurnsSinceRetrieval int
}

// Gate decides whether a query is worth paying for embedding + lexical
// search, and counts how many queries it short-circuited.
type Gate struct {
	cfg    config.RetrievalGateConfig
	gated  int64
	probed int64
}

// New creates a gate from configuration. When cfg.Enabled is false the
// gate always returns true (spec's "always retrieve" default).
func New(cfg config.RetrievalGateConfig) *Gate {
	return &Gate{cfg: cfg}
}

// ShouldRetrieve applies the bounded heuristics and returns false only when
// the gate is enabled and the query scores below the configured threshold
// with no explicit marker present.
func (g *Gate) ShouldRetrieve(query string, session SessionState) bool {
	atomic.AddInt64(&g.probed, 1)

	if !g.cfg.Enabled {
		return true
	}

	query = strings.TrimSpace(query)
	if query == "" {
		atomic.AddInt64(&g.gated, 1)
		return false
	}

	if hasExplicitMarker(query) {
		return true
	}

	score := utilityScore(query, session)
	threshold := g.cfg.Threshold
	if threshold <= 0 {
		threshold = 0.2
	}

	if score < threshold {
		atomic.AddInt64(&g.gated, 1)
		return false
	}
	return true
}

// utilityScore combines query length and content-word ratio into a single
// [0,1] score. Longer queries with a higher proportion of non-stopword
// tokens score higher; a recent retrieval in the same session nudges the
// score down, since a tight follow-up is less likely to need a fresh pull.
func utilityScore(query string, session SessionState) float64 {
	words := strings.Fields(query)
	if len(words) == 0 {
		return 0
	}

	contentWords := 0
	for _, w := range words {
		clean := strings.ToLower(strings.Trim(w, ".,!?;:\"'"))
		if clean == "" {
			continue
		}
		if !stopWords[clean] {
			contentWords++
		}
	}
	ratio := float64(contentWords) / float64(len(words))

	lengthBonus := float64(len(words)) / 10.0
	if lengthBonus > 1 {
		lengthBonus = 1
	}

	score := 0.7*ratio + 0.3*lengthBonus

	if session.TurnsSinceRetrieval == 0 {
		score -= 0.1
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Gated returns how many queries this gate has short-circuited.
func (g *Gate) Gated() int64 {
	return atomic.LoadInt64(&g.gated)
}

// Probed returns how many queries this gate has evaluated, gated or not.
func (g *Gate) Probed() int64 {
	return atomic.LoadInt64(&g.probed)
}
