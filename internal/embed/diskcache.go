package embed

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// PersistentCache is a size-bounded, disk-backed embedding cache keyed by
// SHA-256(model_id || "\0" || normalized_text), matching the spec's cache
// key construction exactly (CachedEmbedder's in-memory LRU keys the same
// way but never survives a process restart).
type PersistentCache struct {
	db       *sql.DB
	lock     *FileLock
	maxBytes int64
}

// NewPersistentCache opens (creating if necessary) a sqlite-backed cache
// at path. maxBytes bounds approximate on-disk size; once exceeded, the
// least-recently-used rows are evicted on the next Put.
func NewPersistentCache(path string, maxBytes int64) (*PersistentCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS embedding_cache (
	key TEXT PRIMARY KEY,
	vector BLOB NOT NULL,
	accessed_at INTEGER NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize embedding cache schema: %w", err)
	}

	if maxBytes <= 0 {
		maxBytes = 256 * 1024 * 1024
	}

	return &PersistentCache{
		db:       db,
		lock:     NewFileLock(filepath.Dir(path)),
		maxBytes: maxBytes,
	}, nil
}

// CacheKey builds the spec-defined cache key: SHA-256 of
// model_id || "\0" || normalized_text.
func CacheKey(modelID, normalizedText string) string {
	sum := sha256.Sum256([]byte(modelID + "\x00" + normalizedText))
	return hex.EncodeToString(sum[:])
}

// Get returns a cached vector, if present, and bumps its access time.
func (c *PersistentCache) Get(key string) ([]float32, bool) {
	var blob []byte
	err := c.db.QueryRow(`SELECT vector FROM embedding_cache WHERE key = ?`, key).Scan(&blob)
	if err != nil {
		return nil, false
	}
	_, _ = c.db.Exec(`UPDATE embedding_cache SET accessed_at = unixepoch() WHERE key = ?`, key)
	return decodeVector(blob), true
}

// Put writes a vector under key, evicting least-recently-used entries
// first if the cache is over its byte budget.
func (c *PersistentCache) Put(key string, vector []float32) error {
	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock embedding cache: %w", err)
	}
	defer func() { _ = c.lock.Unlock() }()

	blob := encodeVector(vector)
	_, err := c.db.Exec(
		`INSERT INTO embedding_cache (key, vector, accessed_at) VALUES (?, ?, unixepoch())
		 ON CONFLICT(key) DO UPDATE SET vector = excluded.vector, accessed_at = excluded.accessed_at`,
		key, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to write embedding cache entry: %w", err)
	}

	return c.evictIfOversize(int64(len(blob)))
}

func (c *PersistentCache) evictIfOversize(lastEntryBytes int64) error {
	var rowCount int64
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM embedding_cache`).Scan(&rowCount); err != nil {
		return nil
	}
	approxBytes := rowCount * lastEntryBytes
	if approxBytes <= c.maxBytes || rowCount == 0 {
		return nil
	}

	evictCount := rowCount / 10
	if evictCount < 1 {
		evictCount = 1
	}
	_, err := c.db.Exec(
		`DELETE FROM embedding_cache WHERE key IN (
			SELECT key FROM embedding_cache ORDER BY accessed_at ASC LIMIT ?
		)`, evictCount,
	)
	return err
}

// Close releases the underlying database handle.
func (c *PersistentCache) Close() error {
	return c.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// DiskCachedEmbedder wraps an Embedder with a persistent, cross-process
// cache, complementing CachedEmbedder's in-memory LRU: a cold process
// still benefits from embeddings computed by a previous run.
type DiskCachedEmbedder struct {
	inner Embedder
	cache *PersistentCache
}

// NewDiskCachedEmbedder wraps inner with a persistent cache at path.
func NewDiskCachedEmbedder(inner Embedder, path string, maxBytes int64) (*DiskCachedEmbedder, error) {
	cache, err := NewPersistentCache(path, maxBytes)
	if err != nil {
		return nil, err
	}
	return &DiskCachedEmbedder{inner: inner, cache: cache}, nil
}

func (d *DiskCachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(d.inner.ModelName(), text)
	if vec, ok := d.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := d.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	_ = d.cache.Put(key, vec)
	return vec, nil
}

func (d *DiskCachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := CacheKey(d.inner.ModelName(), text)
		if vec, ok := d.cache.Get(key); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	computed, err := d.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		results[idx] = computed[j]
		_ = d.cache.Put(CacheKey(d.inner.ModelName(), texts[idx]), computed[j])
	}
	return results, nil
}

func (d *DiskCachedEmbedder) Dimensions() int           { return d.inner.Dimensions() }
func (d *DiskCachedEmbedder) ModelName() string         { return d.inner.ModelName() }
func (d *DiskCachedEmbedder) Available(ctx context.Context) bool { return d.inner.Available(ctx) }
func (d *DiskCachedEmbedder) SetBatchIndex(idx int)      { d.inner.SetBatchIndex(idx) }
func (d *DiskCachedEmbedder) SetFinalBatch(isFinal bool) { d.inner.SetFinalBatch(isFinal) }

func (d *DiskCachedEmbedder) Close() error {
	_ = d.cache.Close()
	return d.inner.Close()
}

var _ Embedder = (*DiskCachedEmbedder)(nil)
