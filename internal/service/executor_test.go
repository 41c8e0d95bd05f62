package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/finch-ai/finch/internal/adapter/memcache"
	"github.com/finch-ai/finch/internal/config"
	"github.com/finch-ai/finch/internal/domain/tool"
	"github.com/finch-ai/finch/internal/port/cache"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAgentConfig() config.Agent {
	return config.Agent{
		MaxIterations: 10,
		ToolTimeout:   100 * time.Millisecond,
		MaxRetries:    3,
		BackoffBase:   time.Millisecond,
	}
}

func newTestExecutor(t *testing.T, reg *tool.Registry, c cache.Cache) *Executor {
	t.Helper()
	return NewExecutor(reg, c, &cache.Recorder{}, nil, testAgentConfig(), time.Minute, discardLogger())
}

func registerEcho(t *testing.T, reg *tool.Registry) {
	t.Helper()
	err := reg.Register(&tool.Spec{
		Name:   "echo",
		Schema: tool.Schema{Fields: []tool.Field{{Name: "text", Type: tool.TypeString, Required: true}}},
		Handler: func(_ context.Context, args tool.Args) (any, error) {
			return args["text"], nil
		},
		Idempotent: true,
		Cacheable:  true,
		Cost:       tool.CostFree,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestExecuteSuccess(t *testing.T) {
	reg := tool.NewRegistry()
	registerEcho(t, reg)
	ex := newTestExecutor(t, reg, nil)

	res := ex.Execute(context.Background(), tool.Call{ID: "c1", Name: "echo", Args: tool.Args{"text": "hi"}}, true, nil)
	if !res.OK() {
		t.Fatalf("unexpected failure: %+v", res.Failure)
	}
	if res.Value != "hi" {
		t.Errorf("expected hi, got %v", res.Value)
	}
	if res.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", res.Attempts)
	}
	if res.CallID != "c1" || res.Tool != "echo" {
		t.Errorf("call identity not carried: %+v", res)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	ex := newTestExecutor(t, tool.NewRegistry(), nil)

	res := ex.Execute(context.Background(), tool.Call{Name: "nope"}, true, nil)
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Failure.Kind != tool.FailUnknownTool {
		t.Errorf("expected unknown_tool, got %s", res.Failure.Kind)
	}
}

func TestExecuteInvalidArguments(t *testing.T) {
	reg := tool.NewRegistry()
	registerEcho(t, reg)
	ex := newTestExecutor(t, reg, nil)

	tests := []struct {
		name string
		args tool.Args
	}{
		{"missing required", tool.Args{}},
		{"unknown key", tool.Args{"text": "hi", "bogus": 1}},
		{"wrong type", tool.Args{"text": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ex.Execute(context.Background(), tool.Call{Name: "echo", Args: tt.args}, true, nil)
			if res.OK() {
				t.Fatal("expected failure")
			}
			if res.Failure.Kind != tool.FailInvalidArguments {
				t.Errorf("expected invalid_arguments, got %s", res.Failure.Kind)
			}
		})
	}
}

func TestExecuteTimeoutCutsSlowHandler(t *testing.T) {
	reg := tool.NewRegistry()
	err := reg.Register(&tool.Spec{
		Name:    "slow",
		Timeout: 50 * time.Millisecond,
		Handler: func(_ context.Context, _ tool.Args) (any, error) {
			time.Sleep(500 * time.Millisecond) // ignores its context
			return "late", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	ex := newTestExecutor(t, reg, nil)

	start := time.Now()
	res := ex.Execute(context.Background(), tool.Call{Name: "slow"}, false, nil)
	elapsed := time.Since(start)

	if res.OK() {
		t.Fatal("expected timeout failure")
	}
	if res.Failure.Kind != tool.FailTimeout {
		t.Errorf("expected timeout, got %s", res.Failure.Kind)
	}
	if elapsed > 300*time.Millisecond {
		t.Errorf("timeout not enforced: call took %v", elapsed)
	}
}

func TestExecuteRetriesIdempotent(t *testing.T) {
	var calls atomic.Int64
	reg := tool.NewRegistry()
	err := reg.Register(&tool.Spec{
		Name:       "flaky",
		Idempotent: true,
		Handler: func(_ context.Context, _ tool.Args) (any, error) {
			if calls.Add(1) < 3 {
				return nil, errors.New("transient")
			}
			return "ok", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	ex := newTestExecutor(t, reg, nil)

	res := ex.Execute(context.Background(), tool.Call{Name: "flaky"}, false, nil)
	if !res.OK() {
		t.Fatalf("expected success after retries, got %+v", res.Failure)
	}
	if res.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", res.Attempts)
	}
}

func TestExecuteNonIdempotentSingleAttempt(t *testing.T) {
	var calls atomic.Int64
	reg := tool.NewRegistry()
	err := reg.Register(&tool.Spec{
		Name: "once",
		Handler: func(_ context.Context, _ tool.Args) (any, error) {
			calls.Add(1)
			return nil, errors.New("boom")
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	ex := newTestExecutor(t, reg, nil)

	res := ex.Execute(context.Background(), tool.Call{Name: "once"}, false, nil)
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Failure.Kind != tool.FailHandler {
		t.Errorf("expected handler_error, got %s", res.Failure.Kind)
	}
	if calls.Load() != 1 {
		t.Errorf("non-idempotent tool invoked %d times", calls.Load())
	}
	if res.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", res.Attempts)
	}
}

func TestExecuteCacheHitSkipsHandler(t *testing.T) {
	var calls atomic.Int64
	reg := tool.NewRegistry()
	err := reg.Register(&tool.Spec{
		Name:      "counting",
		Schema:    tool.Schema{Fields: []tool.Field{{Name: "ticker", Type: tool.TypeString, Required: true}}},
		Cacheable: true,
		Handler: func(_ context.Context, args tool.Args) (any, error) {
			calls.Add(1)
			return map[string]any{"ticker": args["ticker"], "n": calls.Load()}, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	ex := newTestExecutor(t, reg, memcache.New())

	runStats := &cache.Recorder{}
	call := tool.Call{Name: "counting", Args: tool.Args{"ticker": "AAPL"}}

	first := ex.Execute(context.Background(), call, true, runStats)
	if !first.OK() || first.FromCache {
		t.Fatalf("first call: %+v", first)
	}

	second := ex.Execute(context.Background(), call, true, runStats)
	if !second.OK() {
		t.Fatalf("second call: %+v", second.Failure)
	}
	if !second.FromCache {
		t.Fatal("expected cache hit")
	}
	if calls.Load() != 1 {
		t.Errorf("handler invoked %d times, want 1", calls.Load())
	}

	stats := runStats.Snapshot(0)
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %+v", stats)
	}
}

func TestExecuteCacheDisabledPerRun(t *testing.T) {
	var calls atomic.Int64
	reg := tool.NewRegistry()
	err := reg.Register(&tool.Spec{
		Name:      "counting",
		Cacheable: true,
		Handler: func(_ context.Context, _ tool.Args) (any, error) {
			return calls.Add(1), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	ex := newTestExecutor(t, reg, memcache.New())

	_ = ex.Execute(context.Background(), tool.Call{Name: "counting"}, false, nil)
	res := ex.Execute(context.Background(), tool.Call{Name: "counting"}, false, nil)
	if res.FromCache {
		t.Fatal("cache should be bypassed when disabled for the run")
	}
	if calls.Load() != 2 {
		t.Errorf("handler invoked %d times, want 2", calls.Load())
	}
}

func TestExecuteEquivalentArgsShareCacheEntry(t *testing.T) {
	var calls atomic.Int64
	reg := tool.NewRegistry()
	err := reg.Register(&tool.Spec{
		Name: "lookup",
		Schema: tool.Schema{Fields: []tool.Field{
			{Name: "a", Type: tool.TypeString, Required: true},
			{Name: "b", Type: tool.TypeInt, Required: true},
		}},
		Cacheable: true,
		Handler: func(_ context.Context, _ tool.Args) (any, error) {
			return calls.Add(1), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	ex := newTestExecutor(t, reg, memcache.New())

	// Same semantics, different numeric representation (JSON float vs int).
	first := ex.Execute(context.Background(), tool.Call{Name: "lookup", Args: tool.Args{"a": "x", "b": 7}}, true, nil)
	second := ex.Execute(context.Background(), tool.Call{Name: "lookup", Args: tool.Args{"b": float64(7), "a": "x"}}, true, nil)

	if !first.OK() || !second.OK() {
		t.Fatal("expected both calls to succeed")
	}
	if !second.FromCache {
		t.Fatal("normalized equivalent args should hit the same entry")
	}
}

func TestExecuteBatchPreservesOrder(t *testing.T) {
	reg := tool.NewRegistry()
	registerEcho(t, reg)
	ex := newTestExecutor(t, reg, nil)

	calls := []tool.Call{
		{ID: "c1", Name: "echo", Args: tool.Args{"text": "one"}},
		{ID: "c2", Name: "echo", Args: tool.Args{"text": "two"}},
		{ID: "c3", Name: "missing"},
	}

	results := ex.ExecuteBatch(context.Background(), calls, true, nil)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Value != "one" || results[1].Value != "two" {
		t.Errorf("results out of order: %v, %v", results[0].Value, results[1].Value)
	}
	if results[2].OK() || results[2].Failure.Kind != tool.FailUnknownTool {
		t.Errorf("expected unknown_tool for third call, got %+v", results[2])
	}
}

func TestExecuteFailureNotCached(t *testing.T) {
	var calls atomic.Int64
	reg := tool.NewRegistry()
	err := reg.Register(&tool.Spec{
		Name:      "failing",
		Cacheable: true,
		Handler: func(_ context.Context, _ tool.Args) (any, error) {
			calls.Add(1)
			return nil, errors.New("boom")
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	ex := newTestExecutor(t, reg, memcache.New())

	_ = ex.Execute(context.Background(), tool.Call{Name: "failing"}, true, nil)
	res := ex.Execute(context.Background(), tool.Call{Name: "failing"}, true, nil)
	if res.FromCache {
		t.Fatal("failures must never be served from cache")
	}
	if calls.Load() != 2 {
		t.Errorf("handler invoked %d times, want 2", calls.Load())
	}
}
