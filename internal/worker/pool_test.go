package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() Config {
	return Config{Workers: 2, QueueSize: 10, MaxAttempts: 3, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}
}

func TestPool_RunsJobs(t *testing.T) {
	var calls atomic.Int32
	p := New("test-run", fastRetry(), func(context.Context, uuid.UUID) error {
		calls.Add(1)
		return nil
	})
	p.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(uuid.New()))
	}
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(5), calls.Load())
}

func TestPool_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	p := New("test-retry", fastRetry(), func(context.Context, uuid.UUID) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	p.Start(context.Background())
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Submit(uuid.New()))
	assert.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestPool_StopsAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	p := New("test-exhaust", fastRetry(), func(context.Context, uuid.UUID) error {
		calls.Add(1)
		return errors.New("permanent")
	})
	p.Start(context.Background())
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Submit(uuid.New()))
	assert.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPool_RetryDoesNotHoldWorker(t *testing.T) {
	failing, healthy := uuid.New(), uuid.New()

	var (
		mu    sync.Mutex
		order []uuid.UUID
		first atomic.Bool
	)
	cfg := Config{Workers: 1, QueueSize: 10, MaxAttempts: 2, InitialBackoff: 150 * time.Millisecond, MaxBackoff: 150 * time.Millisecond}
	p := New("test-nonblocking", cfg, func(_ context.Context, id uuid.UUID) error {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
		if id == failing && !first.Swap(true) {
			return errors.New("first attempt fails")
		}
		return nil
	})
	p.Start(context.Background())
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Submit(failing))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Submit(healthy))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uuid.UUID{failing, healthy, failing}, order)
}

func TestPool_QueueFull(t *testing.T) {
	p := New("test-full", Config{Workers: 1, QueueSize: 1}, func(context.Context, uuid.UUID) error { return nil })

	require.NoError(t, p.Submit(uuid.New()))
	assert.ErrorIs(t, p.Submit(uuid.New()), ErrQueueFull)
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	p := New("test-stopped", fastRetry(), func(context.Context, uuid.UUID) error { return nil })
	p.Start(context.Background())
	require.NoError(t, p.Shutdown(context.Background()))

	assert.ErrorIs(t, p.Submit(uuid.New()), ErrStopped)
	assert.NoError(t, p.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestPool_ShutdownDropsPendingRetries(t *testing.T) {
	var calls atomic.Int32
	cfg := Config{Workers: 1, QueueSize: 10, MaxAttempts: 3, InitialBackoff: time.Hour}
	p := New("test-drop", cfg, func(context.Context, uuid.UUID) error {
		calls.Add(1)
		return errors.New("fail")
	})
	p.Start(context.Background())

	require.NoError(t, p.Submit(uuid.New()))
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPool_ShutdownTimeoutCancelsHandlers(t *testing.T) {
	started := make(chan struct{})
	p := New("test-cancel", Config{Workers: 1}, func(ctx context.Context, _ uuid.UUID) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	p.Start(context.Background())
	require.NoError(t, p.Submit(uuid.New()))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)
}

func TestConfig_Defaults(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, DefaultWorkers, c.Workers)
	assert.Equal(t, DefaultQueueSize, c.QueueSize)
	assert.Equal(t, 3, c.MaxAttempts)
	assert.Equal(t, 5*time.Minute, c.InitialBackoff)
	assert.Equal(t, time.Hour, c.MaxBackoff)
}
