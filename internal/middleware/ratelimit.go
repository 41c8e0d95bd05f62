package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxTracked bounds the number of per-IP buckets so a client rotating source
// addresses cannot grow the map without limit. New addresses past the bound
// are rejected until cleanup frees slots.
const maxTracked = 65536

// RateLimiter enforces a per-client-IP token bucket: burst tokens up front,
// refilled continuously at the sustained rate.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*bucket
	rate    float64 // tokens refilled per second
	burst   float64 // bucket capacity
}

// bucket tracks one client. last is both the refill anchor and the staleness
// marker for cleanup; it advances on every request.
type bucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a limiter allowing rate requests per second
// sustained, with bursts up to burst.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*bucket),
		rate:    rate,
		burst:   float64(burst),
	}
}

// Handler rejects requests over the limit with 429 and a Retry-After hint.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, wait, ok := rl.take(clientIP(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(int(rl.burst)))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !ok {
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take consumes one token for ip. When the bucket is empty it reports how
// long until the next token accrues.
func (rl *RateLimiter) take(ip string) (remaining int, wait time.Duration, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, tracked := rl.clients[ip]
	if !tracked {
		if len(rl.clients) >= maxTracked {
			return 0, time.Duration(float64(time.Second) / rl.rate), false
		}
		b = &bucket{tokens: rl.burst, last: now}
		rl.clients[ip] = b
	} else {
		b.tokens = math.Min(rl.burst, b.tokens+now.Sub(b.last).Seconds()*rl.rate)
		b.last = now
	}

	if b.tokens < 1 {
		return 0, time.Duration((1 - b.tokens) / rl.rate * float64(time.Second)), false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

// StartCleanup evicts buckets idle longer than maxIdle, checking every
// interval. The returned func stops the background goroutine.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for ip, b := range rl.clients {
		if b.last.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// Len reports the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// clientIP is taken from RemoteAddr only. Forwarding headers are ignored: a
// limiter keyed on X-Forwarded-For is keyed on attacker-controlled input.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
