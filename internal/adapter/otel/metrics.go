package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "finch"

// Metrics holds all finch metric instruments.
type Metrics struct {
	RunsStarted   metric.Int64Counter
	RunsCompleted metric.Int64Counter
	RunsFailed    metric.Int64Counter
	ToolCalls     metric.Int64Counter
	CacheHits     metric.Int64Counter
	CacheMisses   metric.Int64Counter
	RunDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("finch.runs.started",
		metric.WithDescription("Number of agent runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("finch.runs.completed",
		metric.WithDescription("Number of agent runs completed"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("finch.runs.failed",
		metric.WithDescription("Number of agent runs failed"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("finch.toolcalls",
		metric.WithDescription("Number of tool calls executed"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("finch.cache.hits",
		metric.WithDescription("Result cache hits across both tiers"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("finch.cache.misses",
		metric.WithDescription("Result cache misses across both tiers"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("finch.run.duration_seconds",
		metric.WithDescription("Agent run duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
