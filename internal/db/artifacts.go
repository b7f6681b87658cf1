package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/types"
	"github.com/jonathan/curator/internal/urlnorm"
)

// ArtifactExists reports whether the normalized URL is already published.
func (db *DB) ArtifactExists(ctx context.Context, normalizedURL string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM artifacts WHERE normalized_url = $1)`, normalizedURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check artifact: %w", err)
	}
	return exists, nil
}

// CountArtifactsByHost counts published artifacts whose URL is on host.
func (db *DB) CountArtifactsByHost(ctx context.Context, host string) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM artifacts WHERE host = $1`, host).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count artifacts for %s: %w", host, err)
	}
	return n, nil
}

// CountAgentArtifactsSince counts artifacts the agent created at or after since.
func (db *DB) CountAgentArtifactsSince(ctx context.Context, agentID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM artifacts WHERE agent_id = $1 AND created_at >= $2`, agentID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count agent artifacts: %w", err)
	}
	return n, nil
}

// CreateArtifact validates and inserts a. The normalized URL is unique across all
// artifacts.
func (db *DB) CreateArtifact(ctx context.Context, a *types.Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO artifacts (id, owner_id, agent_id, title, url, normalized_url, host, description, tags,
		                        approval_state, approved_by, approved_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.OwnerID, a.AgentID, a.Title, a.URL, a.NormalizedURL, urlnorm.Host(a.URL), a.Description, a.Tags,
		a.ApprovalState, a.ApprovedBy, a.ApprovedAt, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("artifact for %s: %w", a.NormalizedURL, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	return nil
}

// GetArtifact retrieves a published artifact by ID.
func (db *DB) GetArtifact(ctx context.Context, id uuid.UUID) (*types.Artifact, error) {
	var a types.Artifact
	err := db.pool.QueryRow(ctx,
		`SELECT id, owner_id, agent_id, title, url, normalized_url, description, tags,
		        approval_state, approved_by, approved_at, created_at
		 FROM artifacts WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.OwnerID, &a.AgentID, &a.Title, &a.URL, &a.NormalizedURL, &a.Description, &a.Tags,
		&a.ApprovalState, &a.ApprovedBy, &a.ApprovedAt, &a.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("artifact %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return &a, nil
}
