// Package store defines the persistence contract of the curation pipeline. The
// Postgres implementation lives in internal/db and an in-memory one in
// internal/store/memstore.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/types"
)

// Sentinel errors shared by every implementation.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict means the stored record changed underneath the caller, e.g. a
	// candidate left the expected status or a run was already terminal.
	ErrConflict = errors.New("record changed concurrently")
)

// AgentStore persists agents and the scheduler bookkeeping on them.
type AgentStore interface {
	GetAgent(ctx context.Context, id uuid.UUID) (*types.Agent, error)
	ListAgents(ctx context.Context) ([]types.Agent, error)
	// ListDueAgents returns enabled agents whose next run is unset or not after now.
	ListDueAgents(ctx context.Context, now time.Time) ([]types.Agent, error)
	// ClaimAgent moves next_run_at from prev to next only if it still equals prev.
	// It reports whether this caller won the claim.
	ClaimAgent(ctx context.Context, id uuid.UUID, prev *time.Time, next time.Time) (bool, error)
	MarkRunStarted(ctx context.Context, id uuid.UUID, at time.Time) error
	IncrementPostCount(ctx context.Context, id uuid.UUID) error
	UpsertAgent(ctx context.Context, agent *types.Agent) error
}

// RunStore persists runs.
type RunStore interface {
	CreateRun(ctx context.Context, run *types.Run) error
	// FinishRun stores a terminal run. It returns ErrConflict if the stored run is already terminal.
	FinishRun(ctx context.Context, run *types.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error)
	ListRuns(ctx context.Context, agentID uuid.UUID, limit int) ([]types.Run, error)
	AgentStats(ctx context.Context, agentID uuid.UUID) (*types.AgentStats, error)
}

// CandidateOrder selects the sort of a candidate listing.
type CandidateOrder int

// Candidate orderings
const (
	OrderCreated CandidateOrder = iota
	OrderRuleScore
	OrderFinalScore
)

// CandidateQuery filters a candidate listing. Zero values mean "any".
type CandidateQuery struct {
	RunID  uuid.UUID
	Status types.CandidateStatus
	Order  CandidateOrder
	Limit  int
}

// CandidateStore persists candidates and enforces the per-agent URL uniqueness.
type CandidateStore interface {
	// CreateCandidate inserts c unless the agent already has a candidate for the same
	// normalized URL, in which case it reports created=false and leaves c untouched.
	CreateCandidate(ctx context.Context, c *types.Candidate) (created bool, err error)
	CandidateExists(ctx context.Context, agentID uuid.UUID, normalizedURL string) (bool, error)
	RecentlyRejected(ctx context.Context, agentID uuid.UUID, normalizedURL string, since time.Time) (bool, error)
	ListCandidates(ctx context.Context, q CandidateQuery) ([]types.Candidate, error)
	// UpdateCandidate stores c only if the stored status is still from.
	UpdateCandidate(ctx context.Context, c *types.Candidate, from types.CandidateStatus) error
}

// ArtifactStore is the slice of the content store the pipeline publishes into.
type ArtifactStore interface {
	ArtifactExists(ctx context.Context, normalizedURL string) (bool, error)
	CountArtifactsByHost(ctx context.Context, host string) (int, error)
	CountAgentArtifactsSince(ctx context.Context, agentID uuid.UUID, since time.Time) (int, error)
	// CreateArtifact returns a *types.ValidationError for invalid input and ErrDuplicate
	// when the normalized URL is already published.
	CreateArtifact(ctx context.Context, a *types.Artifact) error
}

// FeedStore reads and maintains pre-ingested feed items.
type FeedStore interface {
	ListAssignedSources(ctx context.Context, agent *types.Agent) ([]types.FeedSource, error)
	ListUnprocessedItems(ctx context.Context, feedID uuid.UUID) ([]types.FeedItem, error)
	FeedStoryCountForItem(ctx context.Context, itemID uuid.UUID) (int, error)
	MarkFeedItemSubmitted(ctx context.Context, itemID, artifactID uuid.UUID) error

	ListDueFeedSources(ctx context.Context, now time.Time) ([]types.FeedSource, error)
	UpsertFeedSource(ctx context.Context, f *types.FeedSource) error
	// InsertFeedItem stores a new item and reports false when the (feed, guid) pair exists.
	InsertFeedItem(ctx context.Context, item *types.FeedItem) (bool, error)
	RecordFetch(ctx context.Context, feedID uuid.UUID, at time.Time, fetchErr string) error
}

// Store is the full persistence surface.
type Store interface {
	AgentStore
	RunStore
	CandidateStore
	ArtifactStore
	FeedStore
}
