package vectorstore

import (
	"context"
	"time"

	"github.com/driftwood-dev/semcode/internal/errors"
)

// healthLoop runs the pool's fast and medium health tiers on their
// configured cadence until Close. The deep tier is on-demand only, exposed
// via DeepCheck.
func (p *Pool) healthLoop() {
	defer p.wg.Done()

	fast := time.NewTicker(nonZero(p.cfg.FastCheckInterval, 5*time.Second))
	defer fast.Stop()
	medium := time.NewTicker(nonZero(p.cfg.MediumCheckInterval, time.Minute))
	defer medium.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-fast.C:
			p.fastCheck()
		case <-medium.C:
			p.mediumCheck()
		}
	}
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// fastCheck is a liveness sweep over idle clients: it closes and evicts
// any client expired by age or operation count. It does not call into the
// store itself.
func (p *Pool) fastCheck() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	live := p.idle[:0:0]
	for _, c := range p.idle {
		if c.expired(p.cfg) {
			_ = c.VectorStore.Close()
			p.created--
			continue
		}
		live = append(live, c)
	}
	p.idle = live
}

// mediumCheck probes schema consistency by confirming Count() doesn't error
// for each idle client. A client whose backend is gone is dropped rather
// than returned to service.
func (p *Pool) mediumCheck() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	live := p.idle[:0:0]
	for _, c := range p.idle {
		func() {
			defer func() {
				if r := recover(); r != nil {
					_ = c.VectorStore.Close()
					p.created--
				}
			}()
			c.VectorStore.Count()
			live = append(live, c)
		}()
	}
	p.idle = live
}

// DeepCheck performs an on-demand canary round-trip: it upserts a probe
// vector and deletes it again, exercising the full write path. Call this
// from an operator command or a readiness endpoint, not on a timer.
func (p *Pool) DeepCheck(ctx context.Context, dimensions int) error {
	probeID := "__pool_health_probe__"
	probeVec := make([]float32, dimensions)
	probeVec[0] = 1

	return p.WithClient(ctx, p.cfg.AcquireTimeout, func(c *Client) error {
		if err := c.VectorStore.Add(ctx, []string{probeID}, [][]float32{probeVec}); err != nil {
			return errors.New(errors.KindStorage, "deep health check failed on add", err)
		}
		if err := c.VectorStore.Delete(ctx, []string{probeID}); err != nil {
			return errors.New(errors.KindStorage, "deep health check failed on delete", err)
		}
		return nil
	})
}
