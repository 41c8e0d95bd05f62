// Package cache defines the port interface for result caching.
package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// Cache is the port interface for key-value caching with time-bounded
// validity. Implementations must never return an expired entry from Get,
// and must be safe for concurrent use by many simultaneous runs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Sizer is implemented by caches that can report their live entry count.
type Sizer interface {
	Len() int
}

// Stats is a snapshot of rolling cache counters.
type Stats struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRatePercent float64 `json:"hit_rate_percent"`
	Size           int     `json:"size"`
}

// Recorder accumulates process-wide hit/miss counters for operational
// monitoring. Per-run counters are tracked separately by the agent loop.
type Recorder struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// Hit records a cache hit.
func (r *Recorder) Hit() { r.hits.Add(1) }

// Miss records a cache miss.
func (r *Recorder) Miss() { r.misses.Add(1) }

// Snapshot returns the current counters. size is supplied by the caller
// since the recorder does not own the cache.
func (r *Recorder) Snapshot(size int) Stats {
	hits := r.hits.Load()
	misses := r.misses.Load()
	s := Stats{Hits: hits, Misses: misses, Size: size}
	if total := hits + misses; total > 0 {
		s.HitRatePercent = float64(hits) / float64(total) * 100
	}
	return s
}
