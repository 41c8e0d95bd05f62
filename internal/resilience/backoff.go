package resilience

import (
	"context"
	"time"
)

// Backoff computes bounded exponential retry delays: base doubles on every
// attempt and never exceeds cap. Attempt numbering starts at 0.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the sleep before retry attempt n (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if b.Cap > 0 && d >= b.Cap {
			return b.Cap
		}
	}
	if b.Cap > 0 && d > b.Cap {
		return b.Cap
	}
	return d
}

// Sleep blocks for the delay of attempt n or until ctx is done.
// Returns ctx.Err() if the context ended first.
func (b Backoff) Sleep(ctx context.Context, attempt int) error {
	d := b.Delay(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
