package chain

import (
	"context"
	"sync"
	"time"
)

// intervalGate enforces a minimum spacing between requests across all
// concurrent callers. It is a plain delay gate, not a token bucket: providers
// cap requests per second and spacing is enough to stay under the cap.
type intervalGate struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func newIntervalGate(interval time.Duration) *intervalGate {
	return &intervalGate{interval: interval}
}

// wait blocks until this caller's slot arrives or ctx is cancelled.
func (g *intervalGate) wait(ctx context.Context) error {
	if g.interval <= 0 {
		return nil
	}

	g.mu.Lock()
	now := time.Now()
	slot := g.next
	if slot.Before(now) {
		slot = now
	}
	g.next = slot.Add(g.interval)
	g.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
