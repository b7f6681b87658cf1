package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/types"
)

const runColumns = `id, agent_id, status, started_at, completed_at,
	candidates_found, candidates_vetted, candidates_ai_scored, posts_created, error_message`

func scanRun(row rowScanner) (*types.Run, error) {
	var r types.Run
	err := row.Scan(&r.ID, &r.AgentID, &r.Status, &r.StartedAt, &r.CompletedAt,
		&r.Counts.CandidatesFound, &r.Counts.CandidatesVetted, &r.Counts.CandidatesAIScored, &r.Counts.PostsCreated,
		&r.ErrorMessage)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRun inserts a new run record.
func (db *DB) CreateRun(ctx context.Context, run *types.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO agent_runs (id, agent_id, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.AgentID, run.Status, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun stores the terminal state of a running run.
func (db *DB) FinishRun(ctx context.Context, run *types.Run) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE agent_runs SET status = $2, completed_at = $3,
		     candidates_found = $4, candidates_vetted = $5, candidates_ai_scored = $6, posts_created = $7,
		     error_message = $8
		 WHERE id = $1 AND status = 'running'`,
		run.ID, run.Status, run.CompletedAt,
		run.Counts.CandidatesFound, run.Counts.CandidatesVetted, run.Counts.CandidatesAIScored, run.Counts.PostsCreated,
		run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return db.missingOr(ctx, "agent_runs", run.ID,
			fmt.Errorf("run %s already finished: %w", run.ID, store.ErrConflict))
	}
	return nil
}

// GetRun retrieves a run by ID.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error) {
	r, err := scanRun(db.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM agent_runs WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns retrieves the most recent runs of an agent. A non-positive limit returns all.
func (db *DB) ListRuns(ctx context.Context, agentID uuid.UUID, limit int) ([]types.Run, error) {
	query := `SELECT ` + runColumns + ` FROM agent_runs WHERE agent_id = $1 ORDER BY started_at DESC`
	args := []any{agentID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// AgentStats aggregates the run history of an agent.
func (db *DB) AgentStats(ctx context.Context, agentID uuid.UUID) (*types.AgentStats, error) {
	var stats types.AgentStats
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COUNT(*) FILTER (WHERE status = 'failed'),
		        COALESCE(SUM(posts_created) FILTER (WHERE status = 'completed'), 0)
		 FROM agent_runs WHERE agent_id = $1`,
		agentID,
	).Scan(&stats.TotalRuns, &stats.CompletedRuns, &stats.FailedRuns, &stats.PostsCreated)
	if err != nil {
		return nil, fmt.Errorf("failed to compute agent stats: %w", err)
	}
	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(stats.CompletedRuns) / float64(stats.TotalRuns)
	}
	if stats.CompletedRuns > 0 {
		stats.AvgPostsPerRun = float64(stats.PostsCreated) / float64(stats.CompletedRuns)
	}
	return &stats, nil
}
