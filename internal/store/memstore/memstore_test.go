package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimAgent_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := types.NewAgent()
	a.Name = "claims"
	a.Enabled = true
	require.NoError(t, s.UpsertAgent(ctx, a))

	next := time.Now().Add(time.Hour)
	won, err := s.ClaimAgent(ctx, a.ID, nil, next)
	require.NoError(t, err)
	assert.True(t, won)

	// A second claimer that read the same nil value loses.
	won, err = s.ClaimAgent(ctx, a.ID, nil, next.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, won)

	got, err := s.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.NextRunAt.Equal(next))
}

func TestCreateCandidate_UniquePerAgentURL(t *testing.T) {
	ctx := context.Background()
	s := New()
	agentID := uuid.New()

	first := &types.Candidate{AgentID: agentID, URL: "https://www.example.com/a/", Status: types.CandidatePending}
	created, err := s.CreateCandidate(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "https://example.com/a", first.NormalizedURL)

	again := &types.Candidate{AgentID: agentID, URL: "https://example.com/a", Status: types.CandidatePending}
	created, err = s.CreateCandidate(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)

	other := &types.Candidate{AgentID: uuid.New(), URL: "https://example.com/a", Status: types.CandidatePending}
	created, err = s.CreateCandidate(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestUpdateCandidate_GuardsStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := &types.Candidate{AgentID: uuid.New(), URL: "https://example.com/a", Status: types.CandidatePending}
	_, err := s.CreateCandidate(ctx, c)
	require.NoError(t, err)

	require.NoError(t, c.Vet(0.8))
	require.NoError(t, s.UpdateCandidate(ctx, c, types.CandidatePending))

	stale := *c
	require.NoError(t, stale.Reject("late"))
	err = s.UpdateCandidate(ctx, &stale, types.CandidatePending)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestListCandidates_OrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	runID := uuid.New()
	agentID := uuid.New()
	for i, score := range []float64{0.5, 0.9, 0.7} {
		c := &types.Candidate{
			AgentID:   agentID,
			RunID:     runID,
			URL:       "https://example.com/" + string(rune('a'+i)),
			Status:    types.CandidateVetted,
			RuleScore: score,
		}
		_, err := s.CreateCandidate(ctx, c)
		require.NoError(t, err)
	}

	got, err := s.ListCandidates(ctx, store.CandidateQuery{RunID: runID, Status: types.CandidateVetted, Order: store.OrderRuleScore, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.9, got[0].RuleScore)
	assert.Equal(t, 0.7, got[1].RuleScore)
}

func TestFinishRun_TerminalIsImmutable(t *testing.T) {
	ctx := context.Background()
	s := New()
	run := &types.Run{AgentID: uuid.New(), Status: types.RunRunning, StartedAt: time.Now()}
	require.NoError(t, s.CreateRun(ctx, run))

	require.NoError(t, run.Complete(types.RunCounts{PostsCreated: 2}, time.Now()))
	require.NoError(t, s.FinishRun(ctx, run))

	again := *run
	again.Status = types.RunFailed
	assert.ErrorIs(t, s.FinishRun(ctx, &again), store.ErrConflict)

	stats, err := s.AgentStats(ctx, run.AgentID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompletedRuns)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.Equal(t, 2.0, stats.AvgPostsPerRun)
}

func TestCreateArtifact_DuplicateAndValidation(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := &types.Artifact{
		OwnerID:       uuid.New(),
		Title:         "Title",
		URL:           "https://example.com/a",
		NormalizedURL: "https://example.com/a",
		Tags:          []string{"ai"},
		ApprovalState: types.ApprovalPending,
	}
	require.NoError(t, s.CreateArtifact(ctx, a))

	dup := *a
	dup.ID = uuid.Nil
	assert.ErrorIs(t, s.CreateArtifact(ctx, &dup), store.ErrDuplicate)

	invalid := *a
	invalid.ID = uuid.Nil
	invalid.Title = ""
	var verr *types.ValidationError
	assert.ErrorAs(t, s.CreateArtifact(ctx, &invalid), &verr)

	exists, err := s.ArtifactExists(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, exists)

	n, err := s.CountArtifactsByHost(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFeedItems_SubmitBumpsStoryCount(t *testing.T) {
	ctx := context.Background()
	s := New()
	feed := &types.FeedSource{Name: "feed", URL: "https://example.com/rss", Active: true}
	require.NoError(t, s.UpsertFeedSource(ctx, feed))

	item := &types.FeedItem{FeedID: feed.ID, GUID: "1", URL: "https://example.com/1", Title: "one"}
	inserted, err := s.InsertFeedItem(ctx, item)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertFeedItem(ctx, &types.FeedItem{FeedID: feed.ID, GUID: "1"})
	require.NoError(t, err)
	assert.False(t, inserted)

	require.NoError(t, s.MarkFeedItemSubmitted(ctx, item.ID, uuid.New()))
	count, err := s.FeedStoryCountForItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	items, err := s.ListUnprocessedItems(ctx, feed.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}
