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

const candidateColumns = `id, agent_id, run_id, source_kind, source_ref, url, normalized_url, title, content,
	rule_score, ai_score, final_score, status, rejection_reason, artifact_id, created_at, updated_at`

func scanCandidate(row rowScanner) (*types.Candidate, error) {
	var c types.Candidate
	err := row.Scan(&c.ID, &c.AgentID, &c.RunID, &c.SourceKind, &c.SourceRef, &c.URL, &c.NormalizedURL, &c.Title, &c.Content,
		&c.RuleScore, &c.AIScore, &c.FinalScore, &c.Status, &c.RejectionReason, &c.ArtifactID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCandidate inserts c unless the agent already has a candidate for its
// normalized URL.
func (db *DB) CreateCandidate(ctx context.Context, c *types.Candidate) (bool, error) {
	if c.NormalizedURL == "" {
		c.NormalizedURL = urlnorm.Normalize(c.URL)
	}
	id := c.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var createdAt, updatedAt time.Time
	err := db.pool.QueryRow(ctx,
		`INSERT INTO candidates (id, agent_id, run_id, source_kind, source_ref, url, normalized_url, title, content,
		                         rule_score, ai_score, final_score, status, rejection_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (agent_id, normalized_url) DO NOTHING
		 RETURNING created_at, updated_at`,
		id, c.AgentID, c.RunID, c.SourceKind, c.SourceRef, c.URL, c.NormalizedURL, c.Title, c.Content,
		c.RuleScore, c.AIScore, c.FinalScore, c.Status, c.RejectionReason,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create candidate: %w", err)
	}
	c.ID, c.CreatedAt, c.UpdatedAt = id, createdAt, updatedAt
	return true, nil
}

// CandidateExists reports whether the agent ever saw the normalized URL.
func (db *DB) CandidateExists(ctx context.Context, agentID uuid.UUID, normalizedURL string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM candidates WHERE agent_id = $1 AND normalized_url = $2)`,
		agentID, normalizedURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check candidate: %w", err)
	}
	return exists, nil
}

// RecentlyRejected reports whether the agent rejected the normalized URL at or after since.
func (db *DB) RecentlyRejected(ctx context.Context, agentID uuid.UUID, normalizedURL string, since time.Time) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM candidates
		     WHERE agent_id = $1 AND normalized_url = $2 AND status = 'rejected' AND updated_at >= $3)`,
		agentID, normalizedURL, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check rejected candidate: %w", err)
	}
	return exists, nil
}

// buildCandidateQuery renders the listing query for q.
func buildCandidateQuery(q store.CandidateQuery) (string, []any) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE 1=1`
	args := []any{}
	argNum := 1

	if q.RunID != uuid.Nil {
		query += fmt.Sprintf(" AND run_id = $%d", argNum)
		args = append(args, q.RunID)
		argNum++
	}
	if q.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, q.Status)
		argNum++
	}

	switch q.Order {
	case store.OrderRuleScore:
		query += " ORDER BY rule_score DESC, created_at ASC"
	case store.OrderFinalScore:
		query += " ORDER BY COALESCE(final_score, rule_score) DESC, created_at ASC"
	default:
		query += " ORDER BY created_at ASC"
	}

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, q.Limit)
	}
	return query, args
}

// ListCandidates retrieves candidates matching q.
func (db *DB) ListCandidates(ctx context.Context, q store.CandidateQuery) ([]types.Candidate, error) {
	query, args := buildCandidateQuery(q)
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []types.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// UpdateCandidate stores c only if the stored status is still from.
func (db *DB) UpdateCandidate(ctx context.Context, c *types.Candidate, from types.CandidateStatus) error {
	err := db.pool.QueryRow(ctx,
		`UPDATE candidates SET rule_score = $3, ai_score = $4, final_score = $5, status = $6,
		     rejection_reason = $7, artifact_id = $8, updated_at = NOW()
		 WHERE id = $1 AND status = $2
		 RETURNING updated_at`,
		c.ID, from, c.RuleScore, c.AIScore, c.FinalScore, c.Status, c.RejectionReason, c.ArtifactID,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return db.missingOr(ctx, "candidates", c.ID,
				fmt.Errorf("candidate %s left status %s: %w", c.ID, from, store.ErrConflict))
		}
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	return nil
}
