package usage

import (
	"sync"
	"time"
)

// TrackerConfig configures the in-memory access buffer.
type TrackerConfig struct {
	// FlushInterval is how often the buffer is flushed on a timer
	// (default 30s, 0 disables the timer; size-based flush still applies).
	FlushInterval time.Duration
	// FlushSize flushes immediately once the buffer reaches this many
	// entries (default 200).
	FlushSize int
}

// DefaultTrackerConfig matches spec §4.9's "flushed every T seconds or when
// buffer >= B entries".
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		FlushInterval: 30 * time.Second,
		FlushSize:     200,
	}
}

// Tracker buffers access events in memory and flushes them to a Store in a
// single batched update per unit, mirroring internal/telemetry.QueryMetrics'
// ticker-driven flush loop.
type Tracker struct {
	mu     sync.Mutex
	buffer []UsageRecord

	store  *Store
	config TrackerConfig

	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewTracker creates a tracker that flushes to store. If store is nil,
// RecordAccess still buffers but Flush is a no-op.
func NewTracker(store *Store) *Tracker {
	return NewTrackerWithConfig(store, DefaultTrackerConfig())
}

// NewTrackerWithConfig creates a tracker with a custom flush policy.
func NewTrackerWithConfig(store *Store, cfg TrackerConfig) *Tracker {
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 200
	}

	t := &Tracker{
		store:  store,
		config: cfg,
		stopCh: make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		t.flushTicker = time.NewTicker(cfg.FlushInterval)
		go t.flushLoop()
	}

	return t
}

func (t *Tracker) flushLoop() {
	for {
		select {
		case <-t.flushTicker.C:
			_ = t.Flush()
		case <-t.stopCh:
			return
		}
	}
}

// RecordAccess appends one access event per unit id to the in-memory
// buffer, flushing immediately if the buffer has reached FlushSize.
func (t *Tracker) RecordAccess(unitIDs []string, queryFingerprint string, now time.Time) {
	if len(unitIDs) == 0 {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	for _, id := range unitIDs {
		t.buffer = append(t.buffer, UsageRecord{UnitID: id, AccessedAt: now, QueryFingerprint: queryFingerprint})
	}
	shouldFlush := len(t.buffer) >= t.config.FlushSize
	t.mu.Unlock()

	if shouldFlush {
		_ = t.Flush()
	}
}

// Pending returns the number of buffered, unflushed records. Exposed for
// tests and diagnostics.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffer)
}

// Flush writes the buffered records to the store and clears the buffer.
// Safe to call even if no store is configured.
func (t *Tracker) Flush() error {
	t.mu.Lock()
	records := t.buffer
	t.buffer = nil
	t.mu.Unlock()

	if t.store == nil || len(records) == 0 {
		return nil
	}
	return t.store.ApplyUsage(records)
}

// Close stops the flush timer and performs a final flush.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if t.flushTicker != nil {
		t.flushTicker.Stop()
		close(t.stopCh)
	}

	return t.Flush()
}
