package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/ratelimit"
	"github.com/jonathan/curator/internal/store/memstore"
	"github.com/jonathan/curator/internal/types"
	"github.com/jonathan/curator/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (f *fakeDispatcher) Submit(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, id)
	return nil
}

type fixture struct {
	store    *memstore.Store
	dispatch *fakeDispatcher
	handler  http.Handler
	agent    *types.Agent
	run      *types.Run
}

func newFixture(t *testing.T, rl *ratelimit.Config) *fixture {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()

	agent := types.NewAgent()
	agent.Name = "go-news"
	agent.Enabled = true
	require.NoError(t, st.UpsertAgent(ctx, agent))

	started := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	run := &types.Run{AgentID: agent.ID, Status: types.RunRunning, StartedAt: started}
	require.NoError(t, st.CreateRun(ctx, run))
	require.NoError(t, run.Complete(types.RunCounts{CandidatesFound: 2, PostsCreated: 1}, started.Add(time.Minute)))
	require.NoError(t, st.FinishRun(ctx, run))

	for i, status := range []types.CandidateStatus{types.CandidateSubmitted, types.CandidateRejected} {
		c := &types.Candidate{
			AgentID:    agent.ID,
			RunID:      run.ID,
			SourceKind: types.SourceWebSearch,
			URL:        "https://example.com/" + string(rune('a'+i)),
			Title:      "Story",
			Status:     status,
			RuleScore:  0.5 + float64(i)/10,
		}
		created, err := st.CreateCandidate(ctx, c)
		require.NoError(t, err)
		require.True(t, created)
	}

	if rl == nil {
		rl = &ratelimit.Config{Enabled: false}
	}
	d := &fakeDispatcher{}
	s := New(Config{Port: 0, RateLimit: rl}, st, d)
	t.Cleanup(s.rateLimiter.Stop)
	return &fixture{store: st, dispatch: d, handler: s.Handler(), agent: agent, run: run}
}

func (f *fixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestListAgents(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/agents")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["count"])
}

func TestGetAgent(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"existing", "/agents/" + f.agent.ID.String(), http.StatusOK},
		{"unknown", "/agents/" + uuid.NewString(), http.StatusNotFound},
		{"invalid id", "/agents/not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.path)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestListRuns(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/agents/"+f.agent.ID.String()+"/runs?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["count"])

	w = f.do(t, http.MethodGet, "/agents/"+f.agent.ID.String()+"/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/agents/"+uuid.NewString()+"/runs")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAgentStats(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/agents/"+f.agent.ID.String()+"/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var stats types.AgentStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, types.AgentStats{TotalRuns: 1, CompletedRuns: 1, PostsCreated: 1, SuccessRate: 1, AvgPostsPerRun: 1}, stats)
}

func TestGetRun(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/runs/"+f.run.ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(types.RunCompleted), decode(t, w)["status"])
}

func TestRunCandidates(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/runs/"+f.run.ID.String()+"/candidates")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["count"])

	w = f.do(t, http.MethodGet, "/runs/"+f.run.ID.String()+"/candidates?status=rejected")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["count"])
	first := body["candidates"].([]any)[0].(map[string]any)
	assert.Equal(t, "rejected", first["status"])

	w = f.do(t, http.MethodGet, "/runs/"+f.run.ID.String()+"/candidates?status=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/runs/"+uuid.NewString()+"/candidates")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerRun(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/agents/"+f.agent.ID.String()+"/run")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "queued", decode(t, w)["status"])
	assert.Equal(t, []uuid.UUID{f.agent.ID}, f.dispatch.ids)

	stored, err := f.store.GetAgent(context.Background(), f.agent.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.NextRunAt, "manual runs leave the schedule alone")
}

func TestTriggerRun_Errors(t *testing.T) {
	f := newFixture(t, nil)

	disabled := types.NewAgent()
	disabled.Name = "paused"
	require.NoError(t, f.store.UpsertAgent(context.Background(), disabled))

	w := f.do(t, http.MethodPost, "/agents/"+disabled.ID.String()+"/run")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/agents/"+uuid.NewString()+"/run")
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.dispatch.err = worker.ErrQueueFull
	w = f.do(t, http.MethodPost, "/agents/"+f.agent.ID.String()+"/run")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode(t, w)["error"], "queue is full")
}

func TestRateLimit_TriggerEndpoint(t *testing.T) {
	f := newFixture(t, &ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []ratelimit.EndpointConfig{
			{Path: "/agents/", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1},
		},
	})

	w := f.do(t, http.MethodPost, "/agents/"+f.agent.ID.String()+"/run")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = f.do(t, http.MethodPost, "/agents/"+f.agent.ID.String()+"/run")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decode(t, w)["error"])

	w = f.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}
