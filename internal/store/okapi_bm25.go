package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// OkapiBM25Index is a dependency-free, in-memory inverted index that
// computes Okapi BM25 (and its BM25+ variant, via Config.Delta) directly,
// rather than delegating to Bleve's or SQLite FTS5's built-in scorers.
// BM25Config's K1/B/Delta parameters drive ranking exactly as documented;
// the Bleve and SQLite backends use their own engines' formulas instead.
// It has no external dependencies, making it the default backend for tests
// and for small repos that don't need an on-disk index.
type OkapiBM25Index struct {
	mu sync.RWMutex

	path      string
	config    BM25Config
	stopWords map[string]struct{}

	postings map[string]map[string]int // term -> docID -> term frequency
	docLen   map[string]int            // docID -> token count
	docOrder []string                  // insertion order, for stable AllIDs
	totalLen int

	closed bool
}

// NewOkapiBM25Index creates an in-memory Okapi BM25/BM25+ index.
func NewOkapiBM25Index(config BM25Config) *OkapiBM25Index {
	defaults := DefaultBM25Config()
	if config.K1 == 0 {
		config.K1 = defaults.K1
	}
	if config.MinTokenLength == 0 {
		config.MinTokenLength = defaults.MinTokenLength
	}
	return &OkapiBM25Index{
		config:    config,
		stopWords: BuildStopWordMap(config.StopWords),
		postings:  make(map[string]map[string]int),
		docLen:    make(map[string]int),
	}
}

func (idx *OkapiBM25Index) tokenize(content string) []string {
	return FilterStopWords(TokenizeCode(content), idx.stopWords)
}

// Index adds or replaces documents in the index.
func (idx *OkapiBM25Index) Index(ctx context.Context, docs []*Document) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("index is closed")
	}

	for _, doc := range docs {
		idx.removeLocked(doc.ID)

		tokens := idx.tokenize(doc.Content)
		freqs := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freqs[t]++
		}
		for term, freq := range freqs {
			if idx.postings[term] == nil {
				idx.postings[term] = make(map[string]int)
			}
			idx.postings[term][doc.ID] = freq
		}

		idx.docOrder = append(idx.docOrder, doc.ID)
		idx.docLen[doc.ID] = len(tokens)
		idx.totalLen += len(tokens)
	}

	return nil
}

// removeLocked drops docID's postings and length accounting. Caller holds mu.
func (idx *OkapiBM25Index) removeLocked(docID string) {
	length, exists := idx.docLen[docID]
	if !exists {
		return
	}

	for term, docs := range idx.postings {
		if _, ok := docs[docID]; ok {
			delete(docs, docID)
			if len(docs) == 0 {
				delete(idx.postings, term)
			}
		}
	}

	delete(idx.docLen, docID)
	idx.totalLen -= length

	for i, id := range idx.docOrder {
		if id == docID {
			idx.docOrder = append(idx.docOrder[:i], idx.docOrder[i+1:]...)
			break
		}
	}
}

// Search scores documents with the Okapi BM25+ ranking function:
//
//	score(D,Q) = sum_{t in Q} IDF(t) * ( tf(t,D)*(k1+1) / (tf(t,D) + k1*(1-b+b*|D|/avgdl)) + delta )
//
// A term only contributes to documents that contain it; delta never turns an
// absent term into a positive contribution.
func (idx *OkapiBM25Index) Search(ctx context.Context, query string, limit int) ([]*BM25Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, fmt.Errorf("index is closed")
	}

	queryTokens := idx.tokenize(query)
	if len(queryTokens) == 0 || len(idx.docLen) == 0 {
		return []*BM25Result{}, nil
	}

	n := float64(len(idx.docLen))
	avgdl := float64(idx.totalLen) / n

	type accumulator struct {
		score float64
		terms map[string]struct{}
	}
	scores := make(map[string]*accumulator)

	seenTerms := make(map[string]struct{}, len(queryTokens))
	for _, term := range queryTokens {
		if _, dup := seenTerms[term]; dup {
			continue
		}
		seenTerms[term] = struct{}{}

		docs, ok := idx.postings[term]
		if !ok {
			continue
		}

		docFreq := float64(len(docs))
		idf := math.Log((n-docFreq+0.5)/(docFreq+0.5) + 1)

		for docID, tf := range docs {
			dl := float64(idx.docLen[docID])
			denom := float64(tf) + idx.config.K1*(1-idx.config.B+idx.config.B*dl/avgdl)
			termScore := idf * (float64(tf)*(idx.config.K1+1)/denom + idx.config.Delta)

			a, exists := scores[docID]
			if !exists {
				a = &accumulator{terms: make(map[string]struct{})}
				scores[docID] = a
			}
			a.score += termScore
			a.terms[term] = struct{}{}
		}
	}

	results := make([]*BM25Result, 0, len(scores))
	for docID, a := range scores {
		terms := make([]string, 0, len(a.terms))
		for t := range a.terms {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		results = append(results, &BM25Result{DocID: docID, Score: a.score, MatchedTerms: terms})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Delete removes documents from the index.
func (idx *OkapiBM25Index) Delete(ctx context.Context, docIDs []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("index is closed")
	}

	for _, id := range docIDs {
		idx.removeLocked(id)
	}

	return nil
}

// AllIDs returns all document IDs in the index.
func (idx *OkapiBM25Index) AllIDs() ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]string, len(idx.docOrder))
	copy(ids, idx.docOrder)
	return ids, nil
}

// Stats returns index statistics.
func (idx *OkapiBM25Index) Stats() *IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var avg float64
	if len(idx.docLen) > 0 {
		avg = float64(idx.totalLen) / float64(len(idx.docLen))
	}

	return &IndexStats{
		DocumentCount: len(idx.docLen),
		TermCount:     len(idx.postings),
		AvgDocLength:  avg,
	}
}

// okapiPersisted is the on-disk representation of an OkapiBM25Index.
type okapiPersisted struct {
	Postings map[string]map[string]int
	DocLen   map[string]int
	DocOrder []string
	TotalLen int
	Config   BM25Config
}

// Save persists the index to disk via an atomic temp-file-then-rename, using
// the path the index was opened with (the path argument is accepted for
// BM25Index interface symmetry with the SQLite/Bleve backends, which are
// already bound to their file at construction, and is otherwise ignored).
// An index with no bound path is a no-op, matching the in-memory-only
// testing mode.
func (idx *OkapiBM25Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.path == "" {
		return nil
	}

	if dir := filepath.Dir(idx.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	tmpPath := idx.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}

	data := okapiPersisted{
		Postings: idx.postings,
		DocLen:   idx.docLen,
		DocOrder: idx.docOrder,
		TotalLen: idx.totalLen,
		Config:   idx.config,
	}

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode index: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp index file: %w", err)
	}

	return os.Rename(tmpPath, idx.path)
}

// Load restores the index from disk and binds the index to path for future
// Save calls. A missing file leaves an empty index.
func (idx *OkapiBM25Index) Load(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.path = path
	if path == "" {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	var data okapiPersisted
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}

	idx.postings = data.Postings
	idx.docLen = data.DocLen
	idx.docOrder = data.DocOrder
	idx.totalLen = data.TotalLen
	idx.config = data.Config
	idx.stopWords = BuildStopWordMap(data.Config.StopWords)

	return nil
}

// Close marks the index closed. A closed index rejects further mutation or search.
func (idx *OkapiBM25Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

var _ BM25Index = (*OkapiBM25Index)(nil)
