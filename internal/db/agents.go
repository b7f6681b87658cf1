package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/types"
)

const agentColumns = `id, name, description, owner_id, enabled, schedule_interval, trust_level,
	posts_per_run, max_daily_posts, search, quality, settings,
	last_run_at, next_run_at, run_count, post_count, created_at, updated_at`

func scanAgent(row rowScanner) (*types.Agent, error) {
	var a types.Agent
	var search, quality, settings []byte
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.OwnerID, &a.Enabled, &a.ScheduleInterval, &a.TrustLevel,
		&a.PostsPerRun, &a.MaxDailyPosts, &search, &quality, &settings,
		&a.LastRunAt, &a.NextRunAt, &a.RunCount, &a.PostCount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(search, &a.Search); err != nil {
		return nil, fmt.Errorf("failed to decode search policy of agent %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(quality, &a.Quality); err != nil {
		return nil, fmt.Errorf("failed to decode quality policy of agent %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(settings, &a.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings of agent %s: %w", a.ID, err)
	}
	return &a, nil
}

func (db *DB) queryAgents(ctx context.Context, query string, args ...any) ([]types.Agent, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []types.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// GetAgent retrieves an agent by ID.
func (db *DB) GetAgent(ctx context.Context, id uuid.UUID) (*types.Agent, error) {
	a, err := scanAgent(db.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("agent %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return a, nil
}

// ListAgents retrieves every agent ordered by name.
func (db *DB) ListAgents(ctx context.Context) ([]types.Agent, error) {
	agents, err := db.queryAgents(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

// ListDueAgents retrieves enabled agents that were never scheduled or whose next run
// is not after now.
func (db *DB) ListDueAgents(ctx context.Context, now time.Time) ([]types.Agent, error) {
	agents, err := db.queryAgents(ctx,
		`SELECT `+agentColumns+` FROM agents
		 WHERE enabled AND (next_run_at IS NULL OR next_run_at <= $1)
		 ORDER BY id`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due agents: %w", err)
	}
	return agents, nil
}

// ClaimAgent moves next_run_at from prev to next in one conditional update.
func (db *DB) ClaimAgent(ctx context.Context, id uuid.UUID, prev *time.Time, next time.Time) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE agents SET next_run_at = $3, updated_at = NOW()
		 WHERE id = $1 AND next_run_at IS NOT DISTINCT FROM $2`,
		id, prev, next,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim agent: %w", err)
	}
	if result.RowsAffected() == 1 {
		return true, nil
	}
	if err := db.missingOr(ctx, "agents", id, nil); err != nil {
		return false, err
	}
	return false, nil
}

// MarkRunStarted records the start of a run on the agent.
func (db *DB) MarkRunStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE agents SET last_run_at = $2, run_count = run_count + 1, updated_at = NOW() WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run started: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("agent %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// IncrementPostCount adds one to the agent's lifetime post count.
func (db *DB) IncrementPostCount(ctx context.Context, id uuid.UUID) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE agents SET post_count = post_count + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment post count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("agent %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// UpsertAgent inserts or updates the agent's configuration. Run bookkeeping is kept
// from the stored row, and next_run_at only changes when agent.NextRunAt is set.
func (db *DB) UpsertAgent(ctx context.Context, agent *types.Agent) error {
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	search, err := json.Marshal(agent.Search)
	if err != nil {
		return fmt.Errorf("failed to marshal search policy: %w", err)
	}
	quality, err := json.Marshal(agent.Quality)
	if err != nil {
		return fmt.Errorf("failed to marshal quality policy: %w", err)
	}
	settings, err := json.Marshal(agent.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO agents (id, name, description, owner_id, enabled, schedule_interval, trust_level,
		                     posts_per_run, max_daily_posts, search, quality, settings, next_run_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
		     name = EXCLUDED.name,
		     description = EXCLUDED.description,
		     owner_id = EXCLUDED.owner_id,
		     enabled = EXCLUDED.enabled,
		     schedule_interval = EXCLUDED.schedule_interval,
		     trust_level = EXCLUDED.trust_level,
		     posts_per_run = EXCLUDED.posts_per_run,
		     max_daily_posts = EXCLUDED.max_daily_posts,
		     search = EXCLUDED.search,
		     quality = EXCLUDED.quality,
		     settings = EXCLUDED.settings,
		     next_run_at = COALESCE(EXCLUDED.next_run_at, agents.next_run_at),
		     updated_at = NOW()
		 RETURNING last_run_at, next_run_at, run_count, post_count, created_at, updated_at`,
		agent.ID, agent.Name, agent.Description, agent.OwnerID, agent.Enabled, agent.ScheduleInterval, agent.TrustLevel,
		agent.PostsPerRun, agent.MaxDailyPosts, search, quality, settings, agent.NextRunAt,
	).Scan(&agent.LastRunAt, &agent.NextRunAt, &agent.RunCount, &agent.PostCount, &agent.CreatedAt, &agent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert agent %s: %w", agent.Name, err)
	}
	return nil
}
