package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finch-ai/finch/internal/domain"
	"github.com/finch-ai/finch/internal/domain/agent"
)

// RunStore persists terminal run results. Runs are insert-only.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a RunStore backed by the given pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// SaveRun inserts a completed run. The trace is stored as JSONB.
func (s *RunStore) SaveRun(ctx context.Context, result *agent.RunResult) error {
	trace, err := json.Marshal(orEmpty(result.Trace))
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, query, answer, status, fail_reason, error, tools_used,
		                   iterations, trace, cache_hits, cache_misses, from_cache,
		                   execution_time_ms, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		result.ID, result.Query, result.Answer, result.Status, result.FailReason,
		result.Error, pgTextArray(result.ToolsUsed), result.Iterations, trace,
		result.CacheStats.Hits, result.CacheStats.Misses, result.FromCache,
		result.ExecutionTimeMS, result.StartedAt, result.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", result.ID, err)
	}
	return nil
}

// GetRun fetches one run by ID.
func (s *RunStore) GetRun(ctx context.Context, id string) (*agent.RunResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, query, answer, status, fail_reason, error, tools_used,
		        iterations, trace, cache_hits, cache_misses, from_cache,
		        execution_time_ms, started_at, completed_at
		 FROM runs WHERE id = $1`, id)

	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get run %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ListRecent returns up to limit runs, newest first.
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]agent.RunResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, query, answer, status, fail_reason, error, tools_used,
		        iterations, trace, cache_hits, cache_misses, from_cache,
		        execution_time_ms, started_at, completed_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var result []agent.RunResult
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*agent.RunResult, error) {
	var r agent.RunResult
	var trace []byte
	err := row.Scan(&r.ID, &r.Query, &r.Answer, &r.Status, &r.FailReason, &r.Error,
		&r.ToolsUsed, &r.Iterations, &trace, &r.CacheStats.Hits, &r.CacheStats.Misses,
		&r.FromCache, &r.ExecutionTimeMS, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(trace, &r.Trace); err != nil {
		return nil, fmt.Errorf("unmarshal trace: %w", err)
	}
	r.CacheStats.HitRatePercent = r.CacheStats.Rate()
	return &r, nil
}

// pgTextArray converts a string slice to a pgx-compatible text array.
// nil slices become empty arrays to avoid SQL NULL.
func pgTextArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// orEmpty ensures JSON serialization produces [] instead of null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
