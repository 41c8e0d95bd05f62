// Package oracle defines the decision oracle port: the reasoning engine the
// agent loop consults to choose the next action or finalize an answer.
package oracle

import (
	"context"

	"github.com/finch-ai/finch/internal/domain/agent"
	"github.com/finch-ai/finch/internal/domain/tool"
)

// ToolDefinition is the oracle-facing description of a registered tool.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Schema      tool.Schema `json:"schema"`
}

// Request carries everything the oracle needs for one consultation. The
// oracle is stateless across calls: all prior context is passed explicitly.
type Request struct {
	Query string
	Tools []ToolDefinition
	Trace []agent.TraceStep
}

// Decision is the oracle's answer: either a final answer string or one or
// more tool calls to execute before consulting again.
type Decision struct {
	// ToolCalls is non-empty when the oracle wants more information.
	ToolCalls []tool.Call
	// Answer is the final answer when ToolCalls is empty.
	Answer string
}

// Final reports whether the decision terminates the run.
func (d *Decision) Final() bool {
	return len(d.ToolCalls) == 0
}

// Oracle is the decision oracle port. A failed Decide (after the adapter's
// own bounded retry budget) is fatal to the current run.
type Oracle interface {
	Decide(ctx context.Context, req Request) (*Decision, error)
}

// Definitions builds oracle-facing tool definitions from a registry.
func Definitions(reg *tool.Registry) []ToolDefinition {
	specs := reg.List()
	defs := make([]ToolDefinition, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			Schema:      s.Schema,
		})
	}
	return defs
}
