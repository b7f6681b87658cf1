package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/dedup"
	"github.com/jonathan/curator/internal/llm"
	"github.com/jonathan/curator/internal/llm/llmtest"
	"github.com/jonathan/curator/internal/ratelimit"
	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/store/memstore"
	"github.com/jonathan/curator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func setup(t *testing.T) (*memstore.Store, *types.Agent, *types.Run) {
	t.Helper()
	st := memstore.New()
	st.SetClock(clock)

	agent := types.NewAgent()
	agent.ID = uuid.New()
	agent.Name = "Fintech Watch"
	require.NoError(t, st.UpsertAgent(context.Background(), agent))

	run := &types.Run{ID: uuid.New(), AgentID: agent.ID, Status: types.RunRunning, StartedAt: now}
	return st, agent, run
}

func addFeed(t *testing.T, st *memstore.Store, agent *types.Agent, items ...types.FeedItem) types.FeedSource {
	t.Helper()
	ctx := context.Background()
	feed := types.FeedSource{ID: uuid.New(), Name: "feed", URL: "https://feed.example/rss", Active: true}
	require.NoError(t, st.UpsertFeedSource(ctx, &feed))
	agent.Search.FeedSourceIDs = append(agent.Search.FeedSourceIDs, feed.ID)
	for i := range items {
		items[i].FeedID = feed.ID
		if items[i].GUID == "" {
			items[i].GUID = items[i].URL
		}
		_, err := st.InsertFeedItem(ctx, &items[i])
		require.NoError(t, err)
	}
	return feed
}

func runCandidates(t *testing.T, st *memstore.Store, run *types.Run) []types.Candidate {
	t.Helper()
	cs, err := st.ListCandidates(context.Background(), store.CandidateQuery{RunID: run.ID})
	require.NoError(t, err)
	return cs
}

func TestFeedProvider_CreatesCandidates(t *testing.T) {
	st, agent, run := setup(t)
	old := now.Add(-100 * time.Hour)
	fresh := now.Add(-time.Hour)
	addFeed(t, st, agent,
		types.FeedItem{URL: "https://news.example/a", Title: "Credit union launches AI assistant", PublishedAt: &fresh},
		types.FeedItem{URL: "https://news.example/b", Title: "Stale story about AI", PublishedAt: &old},
		types.FeedItem{URL: "https://news.example/c", Title: "Undated AI story"},
		types.FeedItem{URL: "not a url", Title: "Broken"},
		types.FeedItem{URL: "https://news.example/d", Title: "Already handled", Status: types.FeedItemSubmitted},
	)

	p := NewFeedProvider(st, st, dedup.New(st).WithClock(clock)).WithClock(clock)
	n, err := p.FindCandidates(context.Background(), agent, run)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cs := runCandidates(t, st, run)
	require.Len(t, cs, 2)
	for _, c := range cs {
		assert.Equal(t, types.CandidatePending, c.Status)
		assert.Equal(t, types.SourceFeed, c.SourceKind)
		assert.NotNil(t, c.SourceRef)
	}
	assert.Equal(t, "https://news.example/a", cs[0].URL)
}

func TestFeedProvider_RequiredKeywords(t *testing.T) {
	st, agent, run := setup(t)
	agent.Search.RequiredKeywords = []string{"Credit Union"}
	addFeed(t, st, agent,
		types.FeedItem{URL: "https://news.example/a", Title: "credit union mergers"},
		types.FeedItem{URL: "https://news.example/b", Title: "Sports results"},
		types.FeedItem{URL: "https://news.example/c", Title: "Banking", Content: "A CREDIT UNION story in the body"},
	)

	n, err := NewFeedProvider(st, st, dedup.New(st)).WithClock(clock).FindCandidates(context.Background(), agent, run)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFeedProvider_SecondCycleCreatesNothing(t *testing.T) {
	st, agent, run := setup(t)
	addFeed(t, st, agent, types.FeedItem{URL: "https://news.example/a?utm_source=x", Title: "AI news"})
	p := NewFeedProvider(st, st, dedup.New(st)).WithClock(clock)

	n, err := p.FindCandidates(context.Background(), agent, run)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = p.FindCandidates(context.Background(), agent, run)
	require.NoError(t, err)
	assert.Zero(t, n, "retried cycle must not duplicate candidates")
}

type failingFeeds struct{}

func (failingFeeds) ListAssignedSources(context.Context, *types.Agent) ([]types.FeedSource, error) {
	return nil, errors.New("connection refused")
}

func (failingFeeds) ListUnprocessedItems(context.Context, uuid.UUID) ([]types.FeedItem, error) {
	return nil, nil
}

func TestFeedProvider_StorageError(t *testing.T) {
	st, agent, run := setup(t)
	_, err := NewFeedProvider(failingFeeds{}, st, dedup.New(st)).FindCandidates(context.Background(), agent, run)
	assert.ErrorContains(t, err, "connection refused")
}

func TestParseResults(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{"plain array", `[{"url":"https://a.example/1","title":"One"}]`, 1, false},
		{"wrapped in prose", "Here you go:\n```json\n[{\"url\":\"https://a.example/1\",\"title\":\"One\",\"description\":\"d\"}]\n```", 1, false},
		{"blank fields dropped", `[{"url":"https://a.example/1","title":""},{"url":"","title":"x"},{"url":"https://a.example/2","title":"Two"}]`, 1, false},
		{"no array", `{"url":"https://a.example/1"}`, 0, true},
		{"missing title dropped", `[{"url":"https://a.example/1"}]`, 0, false},
		{"null description kept", `[{"url":"https://a.example/1","title":"One","description":null}]`, 1, false},
		{"bad entries do not drop good ones", `[
			{"url":"https://a.example/1","title":"One"},
			{"url":"https://a.example/2"},
			{"url":"https://a.example/3","title":42},
			{"url":null,"title":"Four"},
			"just a string",
			{"url":"https://a.example/5","title":"Five","description":null}
		]`, 2, false},
		{"not json", `[not json]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResults(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestWebProvider_FindCandidates(t *testing.T) {
	st, agent, run := setup(t)
	agent.Search.WebSearchEnabled = true
	agent.Search.WebSearchQueries = []string{"credit union AI", "  ", "fraud detection"}

	fake := &llmtest.Fake{Respond: func(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
		assert.Equal(t, llm.TierStandard, tier)
		return `[
			{"url": "https://www.news.example/story/", "title": "Story", "description": "About AI"},
			{"url": "ftp://bad.example/x", "title": "Bad scheme"},
			{"url": "https://other.example/post", "title": "Post"}
		]`, nil
	}}

	p := NewWebProvider(fake, ratelimit.NewKeyed(0, 1), st, dedup.New(st), WebConfig{})
	n, err := p.FindCandidates(context.Background(), agent, run)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "second query returns the same links, which are duplicates")

	prompts := fake.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "credit union AI")
	assert.Contains(t, prompts[0], "Fintech Watch")
	assert.Contains(t, prompts[0], "last 3 days")

	cs := runCandidates(t, st, run)
	require.Len(t, cs, 2)
	assert.Equal(t, types.SourceWebSearch, cs[0].SourceKind)
	assert.Equal(t, "About AI", cs[0].Content)
	assert.Nil(t, cs[0].SourceRef)
}

func TestWebProvider_Search(t *testing.T) {
	_, agent, _ := setup(t)

	fake := llmtest.Static(`[
		{"url": "https://a.example/1", "title": "One", "description": null},
		{"url": "https://a.example/2", "title": 2},
		{"url": "https://a.example/3", "title": "Three"},
		{"url": "https://a.example/4", "title": "Four"}
	]`)

	results, err := NewWebProvider(fake, ratelimit.NewKeyed(0, 1), nil, nil, WebConfig{MaxResults: 2}).
		Search(context.Background(), agent, "payments")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "One", results[0].Title)
	assert.Empty(t, results[0].Description)
	assert.Equal(t, "Three", results[1].Title, "the malformed entry is skipped, not the whole query")
}

func TestWebProvider_FailedQueriesAreSwallowed(t *testing.T) {
	st, agent, run := setup(t)
	agent.Search.WebSearchQueries = []string{"one", "two"}

	calls := 0
	fake := &llmtest.Fake{Respond: func(context.Context, string, llm.ModelTier) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("quota exceeded")
		}
		return "I could not find anything useful.", nil
	}}

	n, err := NewWebProvider(fake, ratelimit.NewKeyed(0, 1), st, dedup.New(st), WebConfig{}).FindCandidates(context.Background(), agent, run)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, calls)
}

func TestWebProvider_CancelledWhileWaiting(t *testing.T) {
	st, agent, run := setup(t)
	agent.Search.WebSearchQueries = []string{"one", "two"}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	fake := llmtest.Static(`[]`)
	_, err := NewWebProvider(fake, ratelimit.NewKeyed(time.Hour, 1), st, dedup.New(st), WebConfig{}).FindCandidates(ctx, agent, run)
	require.Error(t, err)
	assert.Len(t, fake.Prompts(), 1)
}

func TestWebProvider_CallTimeout(t *testing.T) {
	st, agent, run := setup(t)
	agent.Search.WebSearchQueries = []string{"slow"}

	fake := &llmtest.Fake{Respond: func(ctx context.Context, _ string, _ llm.ModelTier) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	n, err := NewWebProvider(fake, ratelimit.NewKeyed(0, 1), st, dedup.New(st), WebConfig{CallTimeout: 20 * time.Millisecond}).
		FindCandidates(context.Background(), agent, run)
	require.NoError(t, err, "a timed out call is a provider failure, not a run failure")
	assert.Zero(t, n)
}

func TestMaxAgeDays(t *testing.T) {
	assert.Equal(t, 3, maxAgeDays(72))
	assert.Equal(t, 1, maxAgeDays(5))
	assert.Equal(t, 2, maxAgeDays(25))
	assert.Equal(t, 3, maxAgeDays(0))
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		keywords []string
		want     bool
	}{
		{"no keywords", "anything", nil, true},
		{"case insensitive", "New AI tooling", []string{"ai"}, true},
		{"padded keyword", "new ai tooling", []string{"ai "}, true},
		{"blank keyword never matches", "new tooling", []string{"  "}, false},
		{"no match", "gardening", []string{"ai"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesAny(tt.text, tt.keywords))
		})
	}
}
