// Package tools provides the built-in tool specs registered at startup.
package tools

import (
	"context"

	"github.com/finch-ai/finch/internal/domain/tool"
)

// Echo returns the echo tool: it reflects its input back. Used for smoke
// tests and as the cheapest possible oracle-visible action.
func Echo() *tool.Spec {
	return &tool.Spec{
		Name:        "echo",
		Description: "Echo the given text back unchanged.",
		Schema: tool.Schema{Fields: []tool.Field{
			{Name: "text", Type: tool.TypeString, Required: true, Description: "Text to echo"},
		}},
		Handler: func(_ context.Context, args tool.Args) (any, error) {
			return args["text"], nil
		},
		Idempotent: true,
		Cost:       tool.CostFree,
	}
}
