// Package tool defines the tool domain: specs, calls, results, argument
// schemas, and the registry of invocable capabilities.
package tool

import (
	"context"
	"time"
)

// CostClass is a coarse latency/cost label used for trace reporting.
type CostClass string

const (
	CostFree     CostClass = "free"     // in-process, no external calls
	CostCheap    CostClass = "cheap"    // single fast external call
	CostModerate CostClass = "moderate" // multiple external calls or heavy compute
)

// Args holds the concrete argument values for one tool invocation.
type Args map[string]any

// Handler executes a tool with validated arguments and returns a structured
// value or an error. Handlers must honor ctx cancellation.
type Handler func(ctx context.Context, args Args) (any, error)

// Spec describes a registered capability. Specs are registered once during
// process initialization and are immutable afterwards.
type Spec struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
	Timeout     time.Duration
	// Idempotent marks the tool safe to retry automatically. Non-idempotent
	// tools are invoked at most once per call.
	Idempotent bool
	// Cacheable enables result caching keyed by the call fingerprint.
	Cacheable bool
	CacheTTL  time.Duration
	Cost      CostClass
}

// Call is a single decision output: a tool name plus concrete arguments.
type Call struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Args Args   `json:"args"`
}

// FailureKind classifies a tool-level failure.
type FailureKind string

const (
	FailUnknownTool      FailureKind = "unknown_tool"
	FailInvalidArguments FailureKind = "invalid_arguments"
	FailTimeout          FailureKind = "timeout"
	FailHandler          FailureKind = "handler_error"
)

// Failure is a typed tool-level failure carried inside a Result. It is
// reported into the trace and surfaced back to the oracle, never raised as
// a run-level error.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Result is the outcome of one tool invocation.
type Result struct {
	CallID    string        `json:"call_id,omitempty"`
	Tool      string        `json:"tool"`
	Value     any           `json:"value,omitempty"`
	Failure   *Failure      `json:"failure,omitempty"`
	FromCache bool          `json:"from_cache"`
	Attempts  int           `json:"attempts"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// OK reports whether the invocation produced a usable value.
func (r *Result) OK() bool {
	return r.Failure == nil
}
