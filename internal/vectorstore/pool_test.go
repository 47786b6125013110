package vectorstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwood-dev/semcode/internal/store"
)

// fakeVectorStore is an in-memory stand-in so pool tests don't depend on the
// real HNSW backend.
type fakeVectorStore struct {
	mu        sync.Mutex
	vectors   map[string][]float32
	closed    bool
	failClose bool
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{vectors: make(map[string][]float32)}
}

func (f *fakeVectorStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range ids {
		f.vectors[id] = vectors[i]
	}
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	return nil, nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.vectors, id)
	}
	return nil
}

func (f *fakeVectorStore) AllIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.vectors))
	for id := range f.vectors {
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeVectorStore) Contains(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.vectors[id]
	return ok
}

func (f *fakeVectorStore) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vectors)
}

func (f *fakeVectorStore) Save(path string) error { return nil }
func (f *fakeVectorStore) Load(path string) error { return nil }

func (f *fakeVectorStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestPool(t *testing.T, cfg PoolConfig) (*Pool, *int32) {
	t.Helper()
	var created int32
	factory := func() (store.VectorStore, error) {
		atomic.AddInt32(&created, 1)
		return newFakeVectorStore(), nil
	}
	p, err := NewPool(cfg, factory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, &created
}

func TestPool_AcquireRelease_Roundtrip(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Min = 1
	cfg.Max = 2
	p, _ := newTestPool(t, cfg)

	ctx := context.Background()
	c, err := p.Acquire(ctx, time.Second)
	require.NoError(t, err)
	assert.NotNil(t, c)

	p.Release(c)
	assert.Equal(t, 1, p.Idle())
}

func TestPool_Acquire_CreatesUpToMax(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Min = 0
	cfg.Max = 2
	p, created := newTestPool(t, cfg)

	ctx := context.Background()
	c1, err := p.Acquire(ctx, time.Second)
	require.NoError(t, err)
	c2, err := p.Acquire(ctx, time.Second)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(created))
	assert.Equal(t, 2, p.Size())

	p.Release(c1)
	p.Release(c2)
}

func TestPool_Acquire_ExhaustedTimesOut(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Min = 1
	cfg.Max = 1
	p, _ := newTestPool(t, cfg)

	ctx := context.Background()
	c, err := p.Acquire(ctx, time.Second)
	require.NoError(t, err)

	_, err = p.Acquire(ctx, 50*time.Millisecond)
	require.Error(t, err)

	p.Release(c)
}

func TestPool_Release_RecyclesExpiredByOpCount(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Min = 1
	cfg.Max = 1
	cfg.MaxClientOps = 1
	p, created := newTestPool(t, cfg)

	ctx := context.Background()
	c, err := p.Acquire(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, c.Add(ctx, []string{"a"}, [][]float32{{1, 2}}))
	p.Release(c)

	assert.Equal(t, int32(2), atomic.LoadInt32(created), "expired client should be replaced with a fresh one")
	assert.Equal(t, 1, p.Idle())
}

func TestPool_Release_RecyclesExpiredByAge(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Min = 1
	cfg.Max = 1
	cfg.MaxClientAge = time.Millisecond
	p, created := newTestPool(t, cfg)

	ctx := context.Background()
	c, err := p.Acquire(ctx, time.Second)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	p.Release(c)

	assert.Equal(t, int32(2), atomic.LoadInt32(created))
}

func TestPool_WithClient_RecordsCircuitOutcome(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Min = 1
	cfg.Max = 1
	p, _ := newTestPool(t, cfg)

	ctx := context.Background()
	err := p.WithClient(ctx, time.Second, func(c *Client) error {
		return c.Add(ctx, []string{"x"}, [][]float32{{1}})
	})
	require.NoError(t, err)
	assert.Equal(t, "closed", p.breaker.State().String())
}

func TestPool_WithRetry_RetriesIdempotentFailures(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Min = 1
	cfg.Max = 1
	p, _ := newTestPool(t, cfg)

	var attempts int32
	err := p.WithRetry(context.Background(), time.Second, true, func(c *Client) error {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return assert.AnError
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestPool_WithRetry_NonIdempotentRunsOnce(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Min = 1
	cfg.Max = 1
	p, _ := newTestPool(t, cfg)

	var attempts int32
	err := p.WithRetry(context.Background(), time.Second, false, func(c *Client) error {
		atomic.AddInt32(&attempts, 1)
		return assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestPool_Close_ClosesIdleClients(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Min = 1
	cfg.Max = 1
	p, _ := newTestPool(t, cfg)

	ctx := context.Background()
	c, err := p.Acquire(ctx, time.Second)
	require.NoError(t, err)
	p.Release(c)

	require.NoError(t, p.Close())

	fake, ok := c.VectorStore.(*fakeVectorStore)
	require.True(t, ok)
	assert.True(t, fake.closed)
}

func TestPool_DeepCheck_RoundTrips(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.Min = 1
	cfg.Max = 1
	p, _ := newTestPool(t, cfg)

	err := p.DeepCheck(context.Background(), 4)
	require.NoError(t, err)
}
