// Package memstore is an in-memory store.Store used by tests and dry runs.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/types"
	"github.com/jonathan/curator/internal/urlnorm"
)

// Store keeps every record in maps guarded by a single mutex. Records are copied on
// the way in and out so callers never share memory with the store.
type Store struct {
	mu         sync.Mutex
	agents     map[uuid.UUID]types.Agent
	runs       map[uuid.UUID]types.Run
	candidates map[uuid.UUID]types.Candidate
	candOrder  []uuid.UUID
	artifacts  map[uuid.UUID]types.Artifact
	feeds      map[uuid.UUID]types.FeedSource
	items      map[uuid.UUID]types.FeedItem
	itemOrder  []uuid.UUID

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		agents:     make(map[uuid.UUID]types.Agent),
		runs:       make(map[uuid.UUID]types.Run),
		candidates: make(map[uuid.UUID]types.Candidate),
		artifacts:  make(map[uuid.UUID]types.Artifact),
		feeds:      make(map[uuid.UUID]types.FeedSource),
		items:      make(map[uuid.UUID]types.FeedItem),
		now:        time.Now,
	}
}

// SetClock overrides the clock used for created/updated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ---- agents ----

func (s *Store) GetAgent(_ context.Context, id uuid.UUID) (*types.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, store.ErrNotFound)
	}
	return &a, nil
}

func (s *Store) ListAgents(_ context.Context) ([]types.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListDueAgents(_ context.Context, now time.Time) ([]types.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Agent
	for _, a := range s.agents {
		if a.IsDue(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Store) ClaimAgent(_ context.Context, id uuid.UUID, prev *time.Time, next time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return false, fmt.Errorf("agent %s: %w", id, store.ErrNotFound)
	}
	if !sameTime(a.NextRunAt, prev) {
		return false, nil
	}
	a.NextRunAt = &next
	s.agents[id] = a
	return true, nil
}

func (s *Store) MarkRunStarted(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("agent %s: %w", id, store.ErrNotFound)
	}
	a.LastRunAt = &at
	a.RunCount++
	s.agents[id] = a
	return nil
}

func (s *Store) IncrementPostCount(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("agent %s: %w", id, store.ErrNotFound)
	}
	a.PostCount++
	s.agents[id] = a
	return nil
}

func (s *Store) UpsertAgent(_ context.Context, agent *types.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	now := s.now()
	if existing, ok := s.agents[agent.ID]; ok {
		agent.CreatedAt = existing.CreatedAt
		agent.LastRunAt = existing.LastRunAt
		agent.RunCount = existing.RunCount
		agent.PostCount = existing.PostCount
		if agent.NextRunAt == nil {
			agent.NextRunAt = existing.NextRunAt
		}
	} else {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now
	s.agents[agent.ID] = *agent
	return nil
}

// ---- runs ----

func (s *Store) CreateRun(_ context.Context, run *types.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *Store) FinishRun(_ context.Context, run *types.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[run.ID]
	if !ok {
		return fmt.Errorf("run %s: %w", run.ID, store.ErrNotFound)
	}
	if stored.Terminal() {
		return fmt.Errorf("run %s is %s: %w", run.ID, stored.Status, store.ErrConflict)
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *Store) GetRun(_ context.Context, id uuid.UUID) (*types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	return &r, nil
}

func (s *Store) ListRuns(_ context.Context, agentID uuid.UUID, limit int) ([]types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Run
	for _, r := range s.runs {
		if r.AgentID == agentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AgentStats(_ context.Context, agentID uuid.UUID) (*types.AgentStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &types.AgentStats{}
	for _, r := range s.runs {
		if r.AgentID != agentID {
			continue
		}
		stats.TotalRuns++
		switch r.Status {
		case types.RunCompleted:
			stats.CompletedRuns++
			stats.PostsCreated += r.Counts.PostsCreated
		case types.RunFailed:
			stats.FailedRuns++
		}
	}
	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(stats.CompletedRuns) / float64(stats.TotalRuns)
	}
	if stats.CompletedRuns > 0 {
		stats.AvgPostsPerRun = float64(stats.PostsCreated) / float64(stats.CompletedRuns)
	}
	return stats, nil
}

// ---- candidates ----

func (s *Store) CreateCandidate(_ context.Context, c *types.Candidate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.NormalizedURL == "" {
		c.NormalizedURL = urlnorm.Normalize(c.URL)
	}
	for _, existing := range s.candidates {
		if existing.AgentID == c.AgentID && existing.NormalizedURL == c.NormalizedURL {
			return false, nil
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.candidates[c.ID] = cloneCandidate(*c)
	s.candOrder = append(s.candOrder, c.ID)
	return true, nil
}

func (s *Store) CandidateExists(_ context.Context, agentID uuid.UUID, normalizedURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.candidates {
		if c.AgentID == agentID && c.NormalizedURL == normalizedURL {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RecentlyRejected(_ context.Context, agentID uuid.UUID, normalizedURL string, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.candidates {
		if c.AgentID == agentID && c.NormalizedURL == normalizedURL &&
			c.Status == types.CandidateRejected && !c.UpdatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListCandidates(_ context.Context, q store.CandidateQuery) ([]types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Candidate
	for _, id := range s.candOrder {
		c := s.candidates[id]
		if q.RunID != uuid.Nil && c.RunID != q.RunID {
			continue
		}
		if q.Status != "" && c.Status != q.Status {
			continue
		}
		out = append(out, cloneCandidate(c))
	}
	sortCandidates(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) UpdateCandidate(_ context.Context, c *types.Candidate, from types.CandidateStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.candidates[c.ID]
	if !ok {
		return fmt.Errorf("candidate %s: %w", c.ID, store.ErrNotFound)
	}
	if stored.Status != from {
		return fmt.Errorf("candidate %s is %s, expected %s: %w", c.ID, stored.Status, from, store.ErrConflict)
	}
	c.UpdatedAt = s.now()
	s.candidates[c.ID] = cloneCandidate(*c)
	return nil
}

// ---- artifacts ----

func (s *Store) ArtifactExists(_ context.Context, normalizedURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.artifacts {
		if a.NormalizedURL == normalizedURL {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountArtifactsByHost(_ context.Context, host string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.artifacts {
		if urlnorm.Host(a.URL) == host {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountAgentArtifactsSince(_ context.Context, agentID uuid.UUID, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.artifacts {
		if a.AgentID != nil && *a.AgentID == agentID && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateArtifact(_ context.Context, a *types.Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.artifacts {
		if existing.NormalizedURL == a.NormalizedURL {
			return fmt.Errorf("artifact for %s: %w", a.NormalizedURL, store.ErrDuplicate)
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.artifacts[a.ID] = *a
	return nil
}

// Artifacts returns a snapshot of every stored artifact.
func (s *Store) Artifacts() []types.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ---- feeds ----

func (s *Store) ListAssignedSources(_ context.Context, agent *types.Agent) ([]types.FeedSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.FeedSource
	for _, id := range agent.Search.FeedSourceIDs {
		if f, ok := s.feeds[id]; ok && f.Active {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) ListUnprocessedItems(_ context.Context, feedID uuid.UUID) ([]types.FeedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.FeedItem
	for _, id := range s.itemOrder {
		it := s.items[id]
		if it.FeedID == feedID && it.Status.Unprocessed() {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Store) FeedStoryCountForItem(_ context.Context, itemID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[itemID]
	if !ok {
		return 0, fmt.Errorf("feed item %s: %w", itemID, store.ErrNotFound)
	}
	return s.feeds[it.FeedID].StoryCount, nil
}

func (s *Store) MarkFeedItemSubmitted(_ context.Context, itemID, artifactID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("feed item %s: %w", itemID, store.ErrNotFound)
	}
	it.Status = types.FeedItemSubmitted
	it.ArtifactID = &artifactID
	s.items[itemID] = it
	if f, ok := s.feeds[it.FeedID]; ok {
		f.StoryCount++
		s.feeds[f.ID] = f
	}
	return nil
}

func (s *Store) ListDueFeedSources(_ context.Context, now time.Time) ([]types.FeedSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.FeedSource
	for _, f := range s.feeds {
		if f.Due(now) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpsertFeedSource(_ context.Context, f *types.FeedSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if existing, ok := s.feeds[f.ID]; ok {
		f.CreatedAt = existing.CreatedAt
		f.StoryCount = max(f.StoryCount, existing.StoryCount)
	} else if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	s.feeds[f.ID] = *f
	return nil
}

func (s *Store) InsertFeedItem(_ context.Context, item *types.FeedItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.FeedID == item.FeedID && existing.GUID == item.GUID {
			return false, nil
		}
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.Status == "" {
		item.Status = types.FeedItemPending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	s.items[item.ID] = *item
	s.itemOrder = append(s.itemOrder, item.ID)
	return true, nil
}

func (s *Store) RecordFetch(_ context.Context, feedID uuid.UUID, at time.Time, fetchErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[feedID]
	if !ok {
		return fmt.Errorf("feed %s: %w", feedID, store.ErrNotFound)
	}
	f.LastFetchedAt = &at
	f.LastError = fetchErr
	f.FetchCount++
	s.feeds[feedID] = f
	return nil
}

// FeedItem returns a stored feed item.
func (s *Store) FeedItem(id uuid.UUID) (types.FeedItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	return it, ok
}

// FeedSource returns a stored feed source.
func (s *Store) FeedSource(id uuid.UUID) (types.FeedSource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[id]
	return f, ok
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func cloneCandidate(c types.Candidate) types.Candidate {
	if c.AIScore != nil {
		v := *c.AIScore
		c.AIScore = &v
	}
	if c.FinalScore != nil {
		v := *c.FinalScore
		c.FinalScore = &v
	}
	return c
}

func sortCandidates(cs []types.Candidate, order store.CandidateOrder) {
	switch order {
	case store.OrderRuleScore:
		slices.SortStableFunc(cs, func(a, b types.Candidate) int { return cmpDesc(a.RuleScore, b.RuleScore) })
	case store.OrderFinalScore:
		slices.SortStableFunc(cs, func(a, b types.Candidate) int { return cmpDesc(a.RankScore(), b.RankScore()) })
	}
}

func cmpDesc(x, y float64) int {
	switch {
	case x > y:
		return -1
	case x < y:
		return 1
	default:
		return 0
	}
}
