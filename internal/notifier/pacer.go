package notifier

import (
	"context"
	"sync"
	"time"
)

// pacer enforces a minimum delay between consecutive sends on the
// shared outbound channel. All deliveries in a cycle go through one
// pacer instance.
type pacer struct {
	mu       sync.Mutex
	lastSend time.Time
	minDelay time.Duration
}

func newPacer(minDelay time.Duration) *pacer {
	return &pacer{minDelay: minDelay}
}

// wait blocks until enough time has passed since the previous send.
// Returns an error if the context is cancelled while waiting.
func (p *pacer) wait(ctx context.Context) error {
	if p.minDelay <= 0 {
		return nil
	}

	p.mu.Lock()
	now := time.Now()
	if p.lastSend.IsZero() || now.Sub(p.lastSend) >= p.minDelay {
		p.lastSend = now
		p.mu.Unlock()
		return nil
	}

	remaining := p.minDelay - now.Sub(p.lastSend)
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(remaining):
	}

	p.mu.Lock()
	p.lastSend = time.Now()
	p.mu.Unlock()
	return nil
}
