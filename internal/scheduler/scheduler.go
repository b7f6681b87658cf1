// Package scheduler periodically finds due agents, claims them and hands them to the
// worker pool.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/metrics"
	"github.com/jonathan/curator/internal/types"
	"github.com/robfig/cron/v3"
)

// DefaultTickSpec is how often due agents are looked for.
const DefaultTickSpec = "@every 5m"

// AgentSource lists and claims due agents.
type AgentSource interface {
	ListDueAgents(ctx context.Context, now time.Time) ([]types.Agent, error)
	ClaimAgent(ctx context.Context, id uuid.UUID, prev *time.Time, next time.Time) (bool, error)
}

// Dispatcher queues an agent run. It must not block.
type Dispatcher interface {
	Submit(agentID uuid.UUID) error
}

// BotConfig is the global switch board of the scheduler.
type BotConfig struct {
	AgentsEnabled bool
	TickSpec      string
}

// TickResult summarizes one tick.
type TickResult struct {
	Due        int
	Dispatched int
	Skipped    int
}

// Scheduler claims due agents and dispatches them.
type Scheduler struct {
	agents   AgentSource
	dispatch Dispatcher
	cfg      BotConfig
	now      func() time.Time
	cron     *cron.Cron
	log      *slog.Logger
}

// New creates a Scheduler.
func New(agents AgentSource, dispatch Dispatcher, cfg BotConfig) *Scheduler {
	if cfg.TickSpec == "" {
		cfg.TickSpec = DefaultTickSpec
	}
	log := slog.Default().With("system", "scheduler")
	logger := cronLogger{log: log}
	return &Scheduler{
		agents:   agents,
		dispatch: dispatch,
		cfg:      cfg,
		now:      time.Now,
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		log:      log,
	}
}

// WithClock sets the clock used to decide which agents are due.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Tick dispatches every due agent whose claim succeeds. An agent is claimed by moving
// its next run time from the value read to now plus its interval; if another tick
// moved it first the agent is skipped.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult
	if !s.cfg.AgentsEnabled {
		s.log.Debug("agents disabled, skipping tick")
		return res, nil
	}

	now := s.now()
	due, err := s.agents.ListDueAgents(ctx, now)
	if err != nil {
		return res, fmt.Errorf("failed to list due agents: %w", err)
	}
	res.Due = len(due)

	for i := range due {
		agent := &due[i]
		if !agent.IsDue(now) {
			continue
		}
		next := now.Add(agent.ScheduleInterval.Duration())

		claimed, err := s.agents.ClaimAgent(ctx, agent.ID, agent.NextRunAt, next)
		if err != nil {
			return res, fmt.Errorf("failed to claim agent %s: %w", agent.ID, err)
		}
		if !claimed {
			res.Skipped++
			metrics.SchedulerClaimsLost.Inc()
			s.log.Debug("agent claimed elsewhere", "agent", agent.ID)
			continue
		}

		if err := s.dispatch.Submit(agent.ID); err != nil {
			s.log.Error("failed to dispatch agent, releasing claim", "agent", agent.ID, "err", err)
			if _, relErr := s.agents.ClaimAgent(ctx, agent.ID, &next, now); relErr != nil {
				s.log.Error("failed to release claim", "agent", agent.ID, "err", relErr)
			}
			res.Skipped++
			continue
		}

		res.Dispatched++
		metrics.SchedulerDispatched.Inc()
		s.log.Info("agent dispatched", "agent", agent.ID, "name", agent.Name, "next_run_at", next)
	}
	return res, nil
}

// AddJob registers an extra periodic job, e.g. feed ingestion. Overlapping runs of
// the same job are skipped.
func (s *Scheduler) AddJob(ctx context.Context, spec, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := fn(ctx); err != nil {
			s.log.Error("scheduled job failed", "job", name, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	return nil
}

// Run ticks on the configured schedule until ctx is done, then waits for running
// jobs to return.
func (s *Scheduler) Run(ctx context.Context) error {
	err := s.AddJob(ctx, s.cfg.TickSpec, "agent-tick", func(ctx context.Context) error {
		res, err := s.Tick(ctx)
		if err == nil && res.Due > 0 {
			s.log.Info("tick finished", "due", res.Due, "dispatched", res.Dispatched, "skipped", res.Skipped)
		}
		return err
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("scheduler started", "tick", s.cfg.TickSpec, "agents_enabled", s.cfg.AgentsEnabled)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "err", err)...)
}
