// Package runstore defines the port interface for persisting completed runs.
package runstore

import (
	"context"

	"github.com/finch-ai/finch/internal/domain/agent"
)

// Store is the port interface for run history persistence. Runs are written
// once, after reaching a terminal state, and never updated.
type Store interface {
	SaveRun(ctx context.Context, result *agent.RunResult) error
	GetRun(ctx context.Context, id string) (*agent.RunResult, error)
	ListRecent(ctx context.Context, limit int) ([]agent.RunResult, error)
}
