package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "finch"

// StartRunSpan starts a span for one agent run.
func StartRunSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
		),
	)
}

// StartToolCallSpan starts a span for a tool call within a run.
func StartToolCallSpan(ctx context.Context, callID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.id", callID),
			attribute.String("toolcall.tool", tool),
		),
	)
}

// StartOracleSpan starts a span for one oracle consultation.
func StartOracleSpan(ctx context.Context, runID string, iteration int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "oracle.decide",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.iteration", iteration),
		),
	)
}
