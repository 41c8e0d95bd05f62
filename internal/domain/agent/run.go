// Package agent defines the run domain entities: queries, execution traces,
// and terminal run results.
package agent

import (
	"time"

	"github.com/finch-ai/finch/internal/domain/tool"
)

// Status represents the terminal state of a run.
type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// FailReason explains why a run ended in StatusFailed.
type FailReason string

const (
	ReasonOracleFailure FailReason = "oracle_failure"
	ReasonCancelled     FailReason = "cancelled"
)

// Query is the immutable input to one agent run.
type Query struct {
	Text    string  `json:"text"`
	Options Options `json:"options,omitzero"`
}

// Options are caller-supplied per-run overrides. Zero values mean "use the
// configured default".
type Options struct {
	MaxIterations int `json:"max_iterations,omitempty"`
	// UseCache toggles both cache tiers for this run. Nil means enabled
	// (subject to global config).
	UseCache *bool `json:"use_cache,omitempty"`
	// Filters are passed through opaquely to tools that accept them.
	Filters map[string]string `json:"filters,omitempty"`
}

// CacheEnabled reports the effective per-run cache toggle given the global
// default.
func (o Options) CacheEnabled(globalDefault bool) bool {
	if o.UseCache != nil {
		return *o.UseCache
	}
	return globalDefault
}

// StepKind classifies a trace step.
type StepKind string

const (
	StepToolCall    StepKind = "tool_call"
	StepFinalAnswer StepKind = "final_answer"
	// StepBestEffort marks a terminal answer synthesized because the
	// iteration ceiling was reached before the oracle finalized.
	StepBestEffort StepKind = "best_effort"
)

// TraceStep is one entry in the execution trace: the decision made and,
// for tool calls, the resulting outcome.
type TraceStep struct {
	Step      int           `json:"step"`
	Iteration int           `json:"iteration"`
	Kind      StepKind      `json:"kind"`
	Tool      string        `json:"tool,omitempty"`
	Args      tool.Args     `json:"args,omitempty"`
	Result    *tool.Result  `json:"result,omitempty"`
	Answer    string        `json:"answer,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// CacheStats are per-run cache counters across both tiers.
type CacheStats struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRatePercent float64 `json:"hit_rate_percent"`
}

// Rate computes the hit rate for the accumulated counters.
func (s *CacheStats) Rate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// RunResult is the terminal output of one agent run. It is assembled once,
// when the run reaches a terminal state, and never mutated afterwards.
type RunResult struct {
	ID              string      `json:"id"`
	Query           string      `json:"query"`
	Answer          string      `json:"answer"`
	Status          Status      `json:"status"`
	FailReason      FailReason  `json:"fail_reason,omitempty"`
	Error           string      `json:"error,omitempty"`
	ToolsUsed       []string    `json:"tools_used"`
	Iterations      int         `json:"iterations"`
	Trace           []TraceStep `json:"trace"`
	CacheStats      CacheStats  `json:"cache_stats"`
	FromCache       bool        `json:"from_cache"`
	ExecutionTimeMS int64       `json:"execution_time_ms"`
	StartedAt       time.Time   `json:"started_at"`
	CompletedAt     time.Time   `json:"completed_at"`
}
