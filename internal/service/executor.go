// Package service implements the agent use-cases: tool execution and the
// agent run loop.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finch-ai/finch/internal/adapter/otel"
	"github.com/finch-ai/finch/internal/config"
	"github.com/finch-ai/finch/internal/domain"
	"github.com/finch-ai/finch/internal/domain/tool"
	"github.com/finch-ai/finch/internal/port/cache"
	"github.com/finch-ai/finch/internal/resilience"
)

// Executor invokes tools from the registry with argument validation, result
// caching, per-tool timeouts, and bounded retries. Tool-level failures are
// typed into the Result and never surface as Go errors: the oracle decides
// what a failed call means for the run.
type Executor struct {
	reg            *tool.Registry
	cache          cache.Cache // nil disables caching entirely
	recorder       *cache.Recorder
	metrics        *otel.Metrics
	log            *slog.Logger
	defaultTimeout time.Duration
	defaultTTL     time.Duration
	maxRetries     int
	backoff        resilience.Backoff
}

// NewExecutor creates a tool executor. c may be nil to disable caching;
// recorder and metrics may be nil.
func NewExecutor(reg *tool.Registry, c cache.Cache, recorder *cache.Recorder,
	metrics *otel.Metrics, cfg config.Agent, defaultTTL time.Duration, log *slog.Logger,
) *Executor {
	return &Executor{
		reg:            reg,
		cache:          c,
		recorder:       recorder,
		metrics:        metrics,
		log:            log,
		defaultTimeout: cfg.ToolTimeout,
		defaultTTL:     defaultTTL,
		maxRetries:     cfg.MaxRetries,
		backoff: resilience.Backoff{
			Base: cfg.BackoffBase,
			Cap:  cfg.ToolTimeout,
		},
	}
}

// Execute runs one tool call to completion. runStats, when non-nil, receives
// per-run cache hit/miss counts; the process-wide recorder is updated
// regardless. The returned Result always has Tool and CallID populated.
func (e *Executor) Execute(ctx context.Context, call tool.Call, useCache bool, runStats *cache.Recorder) *tool.Result {
	start := time.Now()
	res := &tool.Result{
		CallID:    call.ID,
		Tool:      call.Name,
		StartedAt: start,
	}

	if e.metrics != nil {
		e.metrics.ToolCalls.Add(ctx, 1)
	}

	spec, err := e.reg.Lookup(call.Name)
	if err != nil {
		res.Failure = &tool.Failure{Kind: tool.FailUnknownTool, Message: err.Error()}
		res.Duration = time.Since(start)
		return res
	}

	args, err := spec.Schema.Validate(call.Args)
	if err != nil {
		res.Failure = &tool.Failure{Kind: tool.FailInvalidArguments, Message: err.Error()}
		res.Duration = time.Since(start)
		return res
	}

	cacheable := useCache && spec.Cacheable && e.cache != nil
	key := ""
	if cacheable {
		key = tool.Fingerprint(spec.Name, args)
		if value, ok := e.cacheGet(ctx, key); ok {
			e.recordHit(ctx, runStats)
			res.Value = value
			res.FromCache = true
			res.Duration = time.Since(start)
			return res
		}
		e.recordMiss(ctx, runStats)
	}

	value, invErr := e.invokeWithRetry(ctx, spec, args, res)
	res.Duration = time.Since(start)
	if invErr != nil {
		res.Failure = classify(invErr)
		e.log.Warn("tool call failed",
			"tool", spec.Name, "kind", res.Failure.Kind,
			"attempts", res.Attempts, "error", invErr)
		return res
	}

	res.Value = value
	// A result arriving after the run deadline is not written back: the
	// context may already be unusable for the cache backend.
	if cacheable && ctx.Err() == nil {
		e.cachePut(ctx, key, value, spec)
	}
	return res
}

// ExecuteBatch runs all calls concurrently and returns results in issue
// order. Individual failures stay inside their Result.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []tool.Call, useCache bool, runStats *cache.Recorder) []*tool.Result {
	results := make([]*tool.Result, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.Execute(gctx, call, useCache, runStats)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return results
}

// invokeWithRetry runs the handler under the per-tool timeout, retrying
// failed idempotent calls with exponential backoff. Non-idempotent tools are
// invoked at most once. Cancellation of the parent context stops retrying.
func (e *Executor) invokeWithRetry(ctx context.Context, spec *tool.Spec, args tool.Args, res *tool.Result) (any, error) {
	maxAttempts := 1
	if spec.Idempotent {
		maxAttempts = e.maxRetries + 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.backoff.Sleep(ctx, attempt-1); err != nil {
				break
			}
			e.log.Debug("retrying tool", "tool", spec.Name, "attempt", attempt)
		}

		res.Attempts++
		value, err := e.invoke(ctx, spec, args)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// invoke runs the handler in a goroutine so a handler that ignores its
// context cannot hold the run past the tool timeout.
func (e *Executor) invoke(ctx context.Context, spec *tool.Spec, args tool.Args) (any, error) {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := spec.Handler(cctx, args)
		ch <- outcome{v, err}
	}()

	select {
	case <-cctx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s after %s", domain.ErrToolTimeout, spec.Name, timeout)
	case out := <-ch:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s after %s", domain.ErrToolTimeout, spec.Name, timeout)
		}
		return out.value, out.err
	}
}

func (e *Executor) cacheGet(ctx context.Context, key string) (any, bool) {
	data, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.log.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		e.log.Warn("cache entry corrupt, dropping", "key", key, "error", err)
		_ = e.cache.Delete(ctx, key)
		return nil, false
	}
	return value, true
}

func (e *Executor) cachePut(ctx context.Context, key string, value any, spec *tool.Spec) {
	data, err := json.Marshal(value)
	if err != nil {
		e.log.Warn("cache marshal failed", "tool", spec.Name, "error", err)
		return
	}
	ttl := spec.CacheTTL
	if ttl <= 0 {
		ttl = e.defaultTTL
	}
	if err := e.cache.Set(ctx, key, data, ttl); err != nil {
		e.log.Warn("cache set failed", "key", key, "error", err)
	}
}

func (e *Executor) recordHit(ctx context.Context, runStats *cache.Recorder) {
	if e.recorder != nil {
		e.recorder.Hit()
	}
	if runStats != nil {
		runStats.Hit()
	}
	if e.metrics != nil {
		e.metrics.CacheHits.Add(ctx, 1)
	}
}

func (e *Executor) recordMiss(ctx context.Context, runStats *cache.Recorder) {
	if e.recorder != nil {
		e.recorder.Miss()
	}
	if runStats != nil {
		runStats.Miss()
	}
	if e.metrics != nil {
		e.metrics.CacheMisses.Add(ctx, 1)
	}
}

// classify maps an invocation error to a typed tool failure.
func classify(err error) *tool.Failure {
	switch {
	case errors.Is(err, domain.ErrToolTimeout):
		return &tool.Failure{Kind: tool.FailTimeout, Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidArguments):
		return &tool.Failure{Kind: tool.FailInvalidArguments, Message: err.Error()}
	default:
		return &tool.Failure{Kind: tool.FailHandler, Message: err.Error()}
	}
}
