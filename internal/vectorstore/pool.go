// Package vectorstore provides a bounded connection pool in front of
// store.VectorStore clients, giving an in-process HNSW graph the same
// acquire/release/health-check contract a networked vector database would
// need, so the pool logic is exercised and testable independent of backend.
package vectorstore

import (
	"context"
	"sync"
	"time"

	"github.com/driftwood-dev/semcode/internal/errors"
	"github.com/driftwood-dev/semcode/internal/store"
)

// Factory creates a new underlying VectorStore client. For an in-process
// HNSW graph this typically returns the same shared instance; for a
// networked backend it would open a new connection.
type Factory func() (store.VectorStore, error)

// PoolConfig bounds the pool and its recycling/health-check policy.
type PoolConfig struct {
	// Min is the number of clients created eagerly at pool construction.
	Min int
	// Max is the highest number of clients the pool will ever hold.
	Max int
	// AcquireTimeout is the default wait for Acquire when the caller
	// passes a non-positive timeout.
	AcquireTimeout time.Duration
	// MaxClientAge recycles a client once it has been alive this long.
	MaxClientAge time.Duration
	// MaxClientOps recycles a client after this many operations.
	MaxClientOps int64
	// FastCheckInterval is how often the liveness check runs in the
	// background health loop.
	FastCheckInterval time.Duration
	// MediumCheckInterval is how often the schema probe runs.
	MediumCheckInterval time.Duration
}

// DefaultPoolConfig matches spec.md §4.4's defaults: a pool of 5, clients
// recycled after an hour or 10,000 operations.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Min:                 1,
		Max:                 5,
		AcquireTimeout:      5 * time.Second,
		MaxClientAge:        time.Hour,
		MaxClientOps:        10000,
		FastCheckInterval:   5 * time.Second,
		MediumCheckInterval: time.Minute,
	}
}

// Client wraps a pooled VectorStore with recycling bookkeeping.
type Client struct {
	store.VectorStore

	createdAt time.Time
	mu        sync.Mutex
	ops       int64
}

func newClient(vs store.VectorStore) *Client {
	return &Client{VectorStore: vs, createdAt: time.Now()}
}

func (c *Client) recordOp() {
	c.mu.Lock()
	c.ops++
	c.mu.Unlock()
}

func (c *Client) expired(cfg PoolConfig) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg.MaxClientAge > 0 && time.Since(c.createdAt) > cfg.MaxClientAge {
		return true
	}
	if cfg.MaxClientOps > 0 && c.ops >= cfg.MaxClientOps {
		return true
	}
	return false
}

// Add wraps store.VectorStore.Add to count it as an operation for recycling.
func (c *Client) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	c.recordOp()
	return c.VectorStore.Add(ctx, ids, vectors)
}

// Search wraps store.VectorStore.Search to count it as an operation.
func (c *Client) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	c.recordOp()
	return c.VectorStore.Search(ctx, query, k)
}

// Delete wraps store.VectorStore.Delete to count it as an operation.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	c.recordOp()
	return c.VectorStore.Delete(ctx, ids)
}

// Pool is a bounded pool of VectorStore clients with acquire/release,
// periodic health checks, and circuit-breaker-guarded retry for transient
// failures.
type Pool struct {
	cfg     PoolConfig
	factory Factory
	breaker *errors.CircuitBreaker
	retry   errors.RetryConfig

	mu      sync.Mutex
	idle    []*Client
	created int
	closed  bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewPool creates a pool and eagerly fills it with cfg.Min clients.
func NewPool(cfg PoolConfig, factory Factory) (*Pool, error) {
	if cfg.Max <= 0 {
		cfg = DefaultPoolConfig()
	}
	if cfg.Min > cfg.Max {
		cfg.Min = cfg.Max
	}

	p := &Pool{
		cfg:     cfg,
		factory: factory,
		breaker: errors.NewCircuitBreaker("vectorstore-pool"),
		retry:   errors.DefaultRetryConfig(),
		stop:    make(chan struct{}),
	}

	for i := 0; i < cfg.Min; i++ {
		c, err := p.newClientLocked()
		if err != nil {
			return nil, errors.New(errors.KindStorage, "failed to initialize connection pool", err)
		}
		p.idle = append(p.idle, c)
	}

	p.wg.Add(1)
	go p.healthLoop()

	return p, nil
}

// newClientLocked creates a client and accounts for it against Max. Callers
// must hold p.mu, except during NewPool before any goroutine can race it.
func (p *Pool) newClientLocked() (*Client, error) {
	vs, err := p.factory()
	if err != nil {
		return nil, err
	}
	p.created++
	return newClient(vs), nil
}

// Acquire returns an idle client, waiting up to timeout for one to free up
// or for room to create a new one. A non-positive timeout uses the pool's
// configured default.
func (p *Pool) Acquire(ctx context.Context, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = p.cfg.AcquireTimeout
	}

	if c, ok := p.tryAcquire(); ok {
		return c, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, errors.New(errors.KindPoolExhausted,
				"no vector store client available within acquire timeout", nil)
		case <-poll.C:
			if c, ok := p.tryAcquire(); ok {
				return c, nil
			}
		}
	}
}

func (p *Pool) tryAcquire() (*Client, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, false
	}

	for len(p.idle) > 0 {
		c := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if c.expired(p.cfg) {
			_ = c.VectorStore.Close()
			p.created--
			continue
		}
		return c, true
	}

	if p.created < p.cfg.Max {
		c, err := p.newClientLocked()
		if err != nil {
			return nil, false
		}
		return c, true
	}

	return nil, false
}

// Release returns a client to the pool, recycling it first if it has aged
// out or exceeded its operation budget.
func (p *Pool) Release(c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = c.VectorStore.Close()
		return
	}

	if c.expired(p.cfg) {
		_ = c.VectorStore.Close()
		p.created--
		nc, err := p.newClientLocked()
		if err == nil {
			p.idle = append(p.idle, nc)
		}
		return
	}

	p.idle = append(p.idle, c)
}

// WithClient acquires a client, runs fn with retry+circuit-breaker
// protection, and releases the client regardless of outcome.
func (p *Pool) WithClient(ctx context.Context, timeout time.Duration, fn func(*Client) error) error {
	if !p.breaker.Allow() {
		return errors.ErrCircuitOpen
	}

	c, err := p.Acquire(ctx, timeout)
	if err != nil {
		p.breaker.RecordFailure()
		return err
	}
	defer p.Release(c)

	if err := fn(c); err != nil {
		p.breaker.RecordFailure()
		return err
	}
	p.breaker.RecordSuccess()
	return nil
}

// WithRetry behaves like WithClient but additionally retries any failed
// attempt, per p.retry, with jittered exponential backoff; errors are not
// classified as transient or permanent first. Only set idempotent for
// operations safe to re-run against the same arguments, such as upsert by
// id or delete by id; a non-idempotent operation (e.g. one that appends)
// is attempted once.
func (p *Pool) WithRetry(ctx context.Context, timeout time.Duration, idempotent bool, fn func(*Client) error) error {
	if !idempotent {
		return p.WithClient(ctx, timeout, fn)
	}

	return errors.Retry(ctx, p.retry, func() error {
		return p.WithClient(ctx, timeout, fn)
	})
}

// Close stops the health loop and closes every client, idle or not.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	close(p.stop)
	p.wg.Wait()

	var firstErr error
	for _, c := range idle {
		if err := c.VectorStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Size returns the number of clients currently created (idle + in use).
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// Idle returns the number of clients currently idle in the pool.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}
