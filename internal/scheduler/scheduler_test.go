package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/store/memstore"
	"github.com/jonathan/curator/internal/types"
	"github.com/jonathan/curator/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type recorder struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (r *recorder) Submit(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.ids = append(r.ids, id)
	return nil
}

func (r *recorder) dispatched() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.ids...)
}

func addAgent(t *testing.T, st *memstore.Store, enabled bool, next *time.Time, interval types.ScheduleInterval) *types.Agent {
	t.Helper()
	a := types.NewAgent()
	a.ID = uuid.New()
	a.Name = "agent-" + a.ID.String()[:8]
	a.Enabled = enabled
	a.NextRunAt = next
	a.ScheduleInterval = interval
	require.NoError(t, st.UpsertAgent(context.Background(), a))
	return a
}

func TestTick_DispatchesDueAgents(t *testing.T) {
	st := memstore.New()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	never := addAgent(t, st, true, nil, types.Hourly)
	overdue := addAgent(t, st, true, &past, types.Every6Hours)
	addAgent(t, st, true, &future, types.Hourly)
	addAgent(t, st, false, nil, types.Hourly)

	rec := &recorder{}
	res, err := New(st, rec, BotConfig{AgentsEnabled: true}).WithClock(clock).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickResult{Due: 2, Dispatched: 2}, res)
	assert.ElementsMatch(t, []uuid.UUID{never.ID, overdue.ID}, rec.dispatched())

	stored, err := st.GetAgent(context.Background(), overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, now.Add(6*time.Hour), *stored.NextRunAt)

	stored, err = st.GetAgent(context.Background(), never.ID)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), *stored.NextRunAt)
}

func TestTick_SecondTickFindsNothing(t *testing.T) {
	st := memstore.New()
	addAgent(t, st, true, nil, types.Daily)

	rec := &recorder{}
	s := New(st, rec, BotConfig{AgentsEnabled: true}).WithClock(clock)
	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	res, err := s.Tick(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Due)
	assert.Len(t, rec.dispatched(), 1)
}

func TestTick_Disabled(t *testing.T) {
	st := memstore.New()
	addAgent(t, st, true, nil, types.Daily)

	rec := &recorder{}
	res, err := New(st, rec, BotConfig{AgentsEnabled: false}).Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)
	assert.Empty(t, rec.dispatched())
}

// racingSource lets another claimant win between listing and claiming.
type racingSource struct {
	*memstore.Store
}

func (r racingSource) ClaimAgent(ctx context.Context, id uuid.UUID, prev *time.Time, next time.Time) (bool, error) {
	other := next.Add(time.Minute)
	if _, err := r.Store.ClaimAgent(ctx, id, prev, other); err != nil {
		return false, err
	}
	return r.Store.ClaimAgent(ctx, id, prev, next)
}

func TestTick_LostClaimIsSkipped(t *testing.T) {
	st := memstore.New()
	addAgent(t, st, true, nil, types.Hourly)

	rec := &recorder{}
	res, err := New(racingSource{st}, rec, BotConfig{AgentsEnabled: true}).WithClock(clock).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, rec.dispatched())
}

func TestTick_ConcurrentTicksDispatchOnce(t *testing.T) {
	st := memstore.New()
	for i := 0; i < 5; i++ {
		addAgent(t, st, true, nil, types.Hourly)
	}

	rec := &recorder{}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := New(st, rec, BotConfig{AgentsEnabled: true}).WithClock(clock).Tick(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ids := rec.dispatched()
	assert.Len(t, ids, 5)
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "agent dispatched twice")
		seen[id] = true
	}
}

func TestTick_DispatchFailureReleasesClaim(t *testing.T) {
	st := memstore.New()
	agent := addAgent(t, st, true, nil, types.Hourly)

	rec := &recorder{err: worker.ErrQueueFull}
	res, err := New(st, rec, BotConfig{AgentsEnabled: true}).WithClock(clock).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	stored, err := st.GetAgent(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDue(now), "agent is due again on the next tick")
}

func TestAddJob_InvalidSpec(t *testing.T) {
	s := New(memstore.New(), &recorder{}, BotConfig{})
	err := s.AddJob(context.Background(), "not a schedule", "bad", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestRun_StopsWithContext(t *testing.T) {
	s := New(memstore.New(), &recorder{}, BotConfig{AgentsEnabled: true, TickSpec: "@every 1h"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestCronLogger(t *testing.T) {
	l := cronLogger{log: New(memstore.New(), &recorder{}, BotConfig{}).log}
	l.Info("start", "now", now)
	l.Error(errors.New("boom"), "panic", "entry", 1)
}
