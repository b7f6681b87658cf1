// Package worker runs agent cycles on a fixed number of workers with a bounded
// queue. Failed cycles are retried with exponential backoff without holding a worker.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("worker queue is full")
	// ErrStopped is returned by Submit after Shutdown.
	ErrStopped = errors.New("worker pool is stopped")
)

// Handler executes one cycle for an agent.
type Handler func(ctx context.Context, agentID uuid.UUID) error

// Config sizes the pool and its retry policy.
type Config struct {
	Workers        int
	QueueSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Config defaults
const (
	DefaultWorkers        = 4
	DefaultQueueSize      = 100
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 5 * time.Minute
	DefaultMaxBackoff     = time.Hour
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = max(DefaultMaxBackoff, c.InitialBackoff)
	}
	return c
}

type job struct {
	agentID uuid.UUID
	attempt int
	backoff *backoff.ExponentialBackOff
}

// Pool is a fixed set of workers fed from a bounded queue.
type Pool struct {
	name   string
	cfg    Config
	handle Handler

	queue chan *job
	wg    sync.WaitGroup

	lk      sync.Mutex
	stopped bool
	timers  map[*time.Timer]struct{}
	cancel  context.CancelFunc

	// metrics
	enqueued  prometheus.Counter
	succeeded prometheus.Counter
	failed    prometheus.Counter
	retried   prometheus.Counter
	exhausted prometheus.Counter
	queued    prometheus.Gauge
	active    prometheus.Gauge

	log *slog.Logger
}

// New creates a pool. Call Start to launch its workers.
func New(name string, cfg Config, handle Handler) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		name:   name,
		cfg:    cfg,
		handle: handle,
		queue:  make(chan *job, cfg.QueueSize),
		timers: make(map[*time.Timer]struct{}),

		enqueued:  metrics.JobsEnqueued.WithLabelValues(name),
		succeeded: metrics.JobsProcessed.WithLabelValues(name, "success"),
		failed:    metrics.JobsProcessed.WithLabelValues(name, "error"),
		retried:   metrics.JobsRetried.WithLabelValues(name),
		exhausted: metrics.JobsExhausted.WithLabelValues(name),
		queued:    metrics.JobsQueued.WithLabelValues(name),
		active:    metrics.WorkersActive.WithLabelValues(name),

		log: slog.Default().With("system", "worker", "pool", name),
	}
}

// Start launches the workers. Handlers receive a context derived from ctx.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.lk.Lock()
	p.cancel = cancel
	p.lk.Unlock()

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.active.Set(float64(p.cfg.Workers))
	p.log.Info("worker pool started", "workers", p.cfg.Workers, "queue", p.cfg.QueueSize)
}

// Submit queues a cycle for agentID without blocking.
func (p *Pool) Submit(agentID uuid.UUID) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialBackoff
	b.MaxInterval = p.cfg.MaxBackoff
	b.Reset()
	return p.enqueue(&job{agentID: agentID, attempt: 1, backoff: b})
}

func (p *Pool) enqueue(j *job) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- j:
		p.enqueued.Inc()
		p.queued.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for j := range p.queue {
		p.queued.Dec()
		p.process(ctx, j)
	}
}

func (p *Pool) process(ctx context.Context, j *job) {
	err := p.handle(ctx, j.agentID)
	if err == nil {
		p.succeeded.Inc()
		return
	}
	p.failed.Inc()

	if ctx.Err() != nil {
		p.log.Warn("job interrupted by shutdown", "agent", j.agentID, "attempt", j.attempt, "err", err)
		return
	}

	delay := j.backoff.NextBackOff()
	if j.attempt >= p.cfg.MaxAttempts || delay == backoff.Stop {
		p.exhausted.Inc()
		p.log.Error("job failed on every attempt", "agent", j.agentID, "attempts", j.attempt, "err", err)
		return
	}

	p.log.Warn("job failed, scheduling retry", "agent", j.agentID, "attempt", j.attempt, "retry_in", delay, "err", err)
	j.attempt++
	p.retryAfter(j, delay)
}

// retryAfter re-enqueues j once delay has passed. No worker is held while waiting.
func (p *Pool) retryAfter(j *job, delay time.Duration) {
	p.lk.Lock()
	defer p.lk.Unlock()
	if p.stopped {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		p.lk.Lock()
		delete(p.timers, t)
		p.lk.Unlock()

		if err := p.enqueue(j); err != nil {
			p.exhausted.Inc()
			p.log.Error("failed to requeue retry", "agent", j.agentID, "attempt", j.attempt, "err", err)
		}
	})
	p.timers[t] = struct{}{}
	p.retried.Inc()
}

// Shutdown stops accepting work, drops pending retries and waits for queued jobs to
// finish. If ctx ends first, running handlers are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.log.Info("shutting down worker pool")

	p.lk.Lock()
	if p.stopped {
		p.lk.Unlock()
		return nil
	}
	p.stopped = true
	for t := range p.timers {
		t.Stop()
	}
	p.timers = nil
	close(p.queue)
	cancel := p.cancel
	p.lk.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		return ctx.Err()
	}
	if cancel != nil {
		cancel()
	}
	p.active.Set(0)
	p.log.Info("worker pool shutdown complete")
	return nil
}
