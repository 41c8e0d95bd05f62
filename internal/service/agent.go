package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finch-ai/finch/internal/adapter/otel"
	"github.com/finch-ai/finch/internal/adapter/ws"
	"github.com/finch-ai/finch/internal/config"
	"github.com/finch-ai/finch/internal/domain/agent"
	"github.com/finch-ai/finch/internal/domain/tool"
	"github.com/finch-ai/finch/internal/port/cache"
	"github.com/finch-ai/finch/internal/port/oracle"
	"github.com/finch-ai/finch/internal/port/runstore"
)

// Agent drives one query from start to a terminal result: consult the
// oracle, execute the tool calls it issues, feed the outcomes back, and
// repeat until the oracle finalizes or the iteration ceiling is hit.
type Agent struct {
	oracle     oracle.Oracle
	exec       *Executor
	reg        *tool.Registry
	queryCache cache.Cache // whole-query answer cache; nil disables
	recorder   *cache.Recorder
	store      runstore.Store
	hub        *ws.Hub
	metrics    *otel.Metrics
	log        *slog.Logger

	maxIterations int
	queryTTL      time.Duration
	cacheDefault  bool

	newID func() string
}

// AgentParams collects the dependencies of an Agent. Store, Hub, Metrics,
// QueryCache, and Recorder are optional.
type AgentParams struct {
	Oracle     oracle.Oracle
	Executor   *Executor
	Registry   *tool.Registry
	QueryCache cache.Cache
	Recorder   *cache.Recorder
	Store      runstore.Store
	Hub        *ws.Hub
	Metrics    *otel.Metrics
	Log        *slog.Logger

	Config       config.Agent
	QueryTTL     time.Duration
	CacheEnabled bool
}

// NewAgent creates the agent loop service.
func NewAgent(p AgentParams) *Agent {
	return &Agent{
		oracle:        p.Oracle,
		exec:          p.Executor,
		reg:           p.Registry,
		queryCache:    p.QueryCache,
		recorder:      p.Recorder,
		store:         p.Store,
		hub:           p.Hub,
		metrics:       p.Metrics,
		log:           p.Log,
		maxIterations: p.Config.MaxIterations,
		queryTTL:      p.QueryTTL,
		cacheDefault:  p.CacheEnabled,
		newID:         uuid.NewString,
	}
}

// Run executes one query to a terminal RunResult. Run-level failures
// (oracle exhaustion, cancellation) are reported in the result, not as a
// returned error; the error return is reserved for invalid input.
func (a *Agent) Run(ctx context.Context, query agent.Query) (*agent.RunResult, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, fmt.Errorf("query text must not be empty")
	}

	runID := a.newID()
	start := time.Now()
	ctx, span := otel.StartRunSpan(ctx, runID)
	defer span.End()

	if a.metrics != nil {
		a.metrics.RunsStarted.Add(ctx, 1)
	}
	a.broadcastStatus(ctx, runID, "started", "")
	a.log.Info("run started", "run_id", runID, "query_len", len(query.Text))

	useCache := query.Options.CacheEnabled(a.cacheDefault)
	runStats := &cache.Recorder{}

	// Whole-query short circuit: a semantically identical query answered
	// within the TTL skips the loop entirely.
	qkey := tool.QueryFingerprint(query.Text)
	if useCache && a.queryCache != nil {
		if cached, ok := a.queryGet(ctx, qkey); ok {
			a.countQueryHit(ctx, runStats)
			cached.FromCache = true
			stats := runStats.Snapshot(0)
			cached.CacheStats = agent.CacheStats{Hits: stats.Hits, Misses: stats.Misses}
			cached.CacheStats.HitRatePercent = cached.CacheStats.Rate()
			a.log.Info("run served from query cache", "run_id", runID, "cached_run", cached.ID)
			a.broadcastStatus(ctx, runID, string(cached.Status), cached.Answer)
			return cached, nil
		}
		a.countQueryMiss(ctx, runStats)
	}

	maxIter := a.maxIterations
	if query.Options.MaxIterations > 0 {
		maxIter = query.Options.MaxIterations
	}

	defs := oracle.Definitions(a.reg)
	var trace []agent.TraceStep
	var toolsUsed []string
	step := 0

	for iteration := 1; iteration <= maxIter; iteration++ {
		if ctx.Err() != nil {
			return a.finish(ctx, runResultIn(runID, query, start, trace, toolsUsed, iteration-1, runStats).
				cancelled(ctx.Err()), useCache, qkey), nil
		}

		octx, ospan := otel.StartOracleSpan(ctx, runID, iteration)
		decision, err := a.oracle.Decide(octx, oracle.Request{
			Query: query.Text,
			Tools: defs,
			Trace: trace,
		})
		ospan.End()
		if err != nil {
			if ctx.Err() != nil {
				return a.finish(ctx, runResultIn(runID, query, start, trace, toolsUsed, iteration-1, runStats).
					cancelled(ctx.Err()), useCache, qkey), nil
			}
			a.log.Error("oracle failed", "run_id", runID, "iteration", iteration, "error", err)
			return a.finish(ctx, runResultIn(runID, query, start, trace, toolsUsed, iteration-1, runStats).
				oracleFailed(err), useCache, qkey), nil
		}

		if decision.Final() {
			step++
			final := agent.TraceStep{
				Step:      step,
				Iteration: iteration,
				Kind:      agent.StepFinalAnswer,
				Answer:    decision.Answer,
				Elapsed:   time.Since(start),
			}
			trace = append(trace, final)
			a.broadcastStep(ctx, runID, final)
			return a.finish(ctx, runResultIn(runID, query, start, trace, toolsUsed, iteration, runStats).
				done(decision.Answer), useCache, qkey), nil
		}

		calls := a.applyFilters(decision.ToolCalls, query.Options.Filters)
		results := a.exec.ExecuteBatch(ctx, calls, useCache, runStats)
		for i, call := range calls {
			step++
			ts := agent.TraceStep{
				Step:      step,
				Iteration: iteration,
				Kind:      agent.StepToolCall,
				Tool:      call.Name,
				Args:      call.Args,
				Result:    results[i],
				Elapsed:   results[i].Duration,
			}
			trace = append(trace, ts)
			toolsUsed = appendUnique(toolsUsed, call.Name)
			a.broadcastStep(ctx, runID, ts)
		}
	}

	// Ceiling reached without a final answer: synthesize a best-effort one
	// from whatever the tools produced.
	answer := bestEffortAnswer(trace)
	step++
	be := agent.TraceStep{
		Step:      step,
		Iteration: maxIter,
		Kind:      agent.StepBestEffort,
		Answer:    answer,
		Elapsed:   time.Since(start),
	}
	trace = append(trace, be)
	a.broadcastStep(ctx, runID, be)
	a.log.Warn("iteration ceiling reached", "run_id", runID, "max_iterations", maxIter)

	return a.finish(ctx, runResultIn(runID, query, start, trace, toolsUsed, maxIter, runStats).
		done(answer), useCache, qkey), nil
}

// runBuilder accumulates the pieces of a RunResult before terminal assembly.
type runBuilder struct {
	result   *agent.RunResult
	runStats *cache.Recorder
	start    time.Time
}

func runResultIn(runID string, query agent.Query, start time.Time,
	trace []agent.TraceStep, toolsUsed []string, iterations int, runStats *cache.Recorder,
) *runBuilder {
	if trace == nil {
		trace = []agent.TraceStep{}
	}
	if toolsUsed == nil {
		toolsUsed = []string{}
	}
	return &runBuilder{
		result: &agent.RunResult{
			ID:         runID,
			Query:      query.Text,
			ToolsUsed:  toolsUsed,
			Iterations: iterations,
			Trace:      trace,
			StartedAt:  start,
		},
		runStats: runStats,
		start:    start,
	}
}

func (b *runBuilder) done(answer string) *agent.RunResult {
	b.result.Status = agent.StatusDone
	b.result.Answer = answer
	return b.seal()
}

func (b *runBuilder) oracleFailed(err error) *agent.RunResult {
	b.result.Status = agent.StatusFailed
	b.result.FailReason = agent.ReasonOracleFailure
	b.result.Error = err.Error()
	return b.seal()
}

func (b *runBuilder) cancelled(err error) *agent.RunResult {
	b.result.Status = agent.StatusFailed
	b.result.FailReason = agent.ReasonCancelled
	b.result.Error = err.Error()
	return b.seal()
}

func (b *runBuilder) seal() *agent.RunResult {
	stats := b.runStats.Snapshot(0)
	b.result.CacheStats = agent.CacheStats{Hits: stats.Hits, Misses: stats.Misses}
	b.result.CacheStats.HitRatePercent = b.result.CacheStats.Rate()
	b.result.CompletedAt = time.Now()
	b.result.ExecutionTimeMS = b.result.CompletedAt.Sub(b.start).Milliseconds()
	return b.result
}

// finish records the terminal result: metrics, persistence, query-cache
// write, and the terminal broadcast. Persistence problems are logged, never
// surfaced: the answer is already in hand.
func (a *Agent) finish(ctx context.Context, result *agent.RunResult, useCache bool, qkey string) *agent.RunResult {
	if a.metrics != nil {
		switch result.Status {
		case agent.StatusDone:
			a.metrics.RunsCompleted.Add(ctx, 1)
		case agent.StatusFailed:
			a.metrics.RunsFailed.Add(ctx, 1)
		}
		a.metrics.RunDuration.Record(ctx, float64(result.ExecutionTimeMS)/1000)
	}

	if result.Status == agent.StatusDone && useCache && a.queryCache != nil && ctx.Err() == nil {
		a.querySet(ctx, qkey, result)
	}

	if a.store != nil {
		if err := a.store.SaveRun(context.WithoutCancel(ctx), result); err != nil {
			a.log.Error("persist run failed", "run_id", result.ID, "error", err)
		}
	}

	a.broadcastStatus(ctx, result.ID, string(result.Status), result.Answer)
	a.log.Info("run finished",
		"run_id", result.ID, "status", result.Status,
		"iterations", result.Iterations, "tools", result.ToolsUsed,
		"elapsed_ms", result.ExecutionTimeMS)
	return result
}

func (a *Agent) queryGet(ctx context.Context, key string) (*agent.RunResult, bool) {
	data, ok, err := a.queryCache.Get(ctx, key)
	if err != nil {
		a.log.Warn("query cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var result agent.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		a.log.Warn("query cache entry corrupt, dropping", "key", key, "error", err)
		_ = a.queryCache.Delete(ctx, key)
		return nil, false
	}
	return &result, true
}

func (a *Agent) querySet(ctx context.Context, key string, result *agent.RunResult) {
	data, err := json.Marshal(result)
	if err != nil {
		a.log.Warn("query cache marshal failed", "run_id", result.ID, "error", err)
		return
	}
	if err := a.queryCache.Set(ctx, key, data, a.queryTTL); err != nil {
		a.log.Warn("query cache set failed", "key", key, "error", err)
	}
}

func (a *Agent) countQueryHit(ctx context.Context, runStats *cache.Recorder) {
	runStats.Hit()
	if a.recorder != nil {
		a.recorder.Hit()
	}
	if a.metrics != nil {
		a.metrics.CacheHits.Add(ctx, 1)
	}
}

func (a *Agent) countQueryMiss(ctx context.Context, runStats *cache.Recorder) {
	runStats.Miss()
	if a.recorder != nil {
		a.recorder.Miss()
	}
	if a.metrics != nil {
		a.metrics.CacheMisses.Add(ctx, 1)
	}
}

// applyFilters copies caller-supplied filters into calls whose schema
// declares the field, without overriding anything the oracle set.
func (a *Agent) applyFilters(calls []tool.Call, filters map[string]string) []tool.Call {
	if len(filters) == 0 {
		return calls
	}
	out := make([]tool.Call, len(calls))
	for i, call := range calls {
		out[i] = call
		spec, err := a.reg.Lookup(call.Name)
		if err != nil {
			continue
		}
		merged := make(tool.Args, len(call.Args)+len(filters))
		for k, v := range call.Args {
			merged[k] = v
		}
		for _, f := range spec.Schema.Fields {
			if v, ok := filters[f.Name]; ok {
				if _, set := merged[f.Name]; !set {
					merged[f.Name] = v
				}
			}
		}
		out[i].Args = merged
	}
	return out
}

func (a *Agent) broadcastStatus(ctx context.Context, runID, status, answer string) {
	if a.hub == nil {
		return
	}
	a.hub.BroadcastEvent(ctx, ws.EventRunStatus, ws.RunStatusEvent{
		RunID:  runID,
		Status: status,
		Answer: answer,
	})
}

func (a *Agent) broadcastStep(ctx context.Context, runID string, ts agent.TraceStep) {
	if a.hub == nil {
		return
	}
	ev := ws.RunStepEvent{
		RunID:     runID,
		Step:      ts.Step,
		Iteration: ts.Iteration,
		Kind:      string(ts.Kind),
		Tool:      ts.Tool,
	}
	if ts.Result != nil {
		ev.FromCache = ts.Result.FromCache
	}
	a.hub.BroadcastEvent(ctx, ws.EventRunStep, ev)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// bestEffortAnswer summarizes successful tool results when the ceiling is
// hit before the oracle finalizes.
func bestEffortAnswer(trace []agent.TraceStep) string {
	var lines []string
	for _, ts := range trace {
		if ts.Kind != agent.StepToolCall || ts.Result == nil || !ts.Result.OK() {
			continue
		}
		value, err := json.Marshal(ts.Result.Value)
		if err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", ts.Tool, value))
	}
	if len(lines) == 0 {
		return "The iteration limit was reached before an answer could be produced."
	}
	return "The iteration limit was reached before a final answer was produced. Information gathered so far:\n" +
		strings.Join(lines, "\n")
}
