// Package search discovers candidate links for an agent run from assigned feeds and
// from LLM-backed web search.
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/scoring"
	"github.com/jonathan/curator/internal/types"
	"github.com/jonathan/curator/internal/urlnorm"
)

// Provider finds new candidates for one agent run and reports how many it created.
type Provider interface {
	Name() string
	FindCandidates(ctx context.Context, agent *types.Agent, run *types.Run) (int, error)
}

// Deduplicator reports whether a URL is already known to an agent.
type Deduplicator interface {
	IsDuplicate(ctx context.Context, agentID uuid.UUID, rawURL string) (bool, error)
}

// CandidateWriter stores newly discovered candidates.
type CandidateWriter interface {
	CreateCandidate(ctx context.Context, c *types.Candidate) (bool, error)
}

// recorder is shared by both providers: it validates, dedups and stores one result.
type recorder struct {
	candidates CandidateWriter
	dedup      Deduplicator
	logger     *slog.Logger
	now        func() time.Time
}

// record creates a pending candidate and reports whether a row was inserted.
func (r *recorder) record(ctx context.Context, agent *types.Agent, run *types.Run, kind types.SourceKind, ref *uuid.UUID, rawURL, title, content string) (bool, error) {
	rawURL = strings.TrimSpace(rawURL)
	title = strings.TrimSpace(title)
	if !urlnorm.Valid(rawURL) || len(rawURL) > types.MaxCandidateURLLength {
		r.logger.Debug("skipping invalid url", "url", rawURL)
		return false, nil
	}
	if title == "" {
		return false, nil
	}

	dup, err := r.dedup.IsDuplicate(ctx, agent.ID, rawURL)
	if err != nil {
		return false, err
	}
	if dup {
		return false, nil
	}

	now := r.now()
	c := &types.Candidate{
		ID:            uuid.New(),
		AgentID:       agent.ID,
		RunID:         run.ID,
		SourceKind:    kind,
		SourceRef:     ref,
		URL:           rawURL,
		NormalizedURL: urlnorm.Normalize(rawURL),
		Title:         types.Truncate(title, types.MaxCandidateTitleLength),
		Content:       content,
		Status:        types.CandidatePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return r.candidates.CreateCandidate(ctx, c)
}

// matchesAny reports whether text contains any keyword, ignoring case. An empty
// keyword list matches everything.
func matchesAny(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw = scoring.NormalizeKeyword(kw); kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
