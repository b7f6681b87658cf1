// Package pipeline runs one agent cycle: search, rule vetting, AI vetting and submission.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/metrics"
	"github.com/jonathan/curator/internal/quality"
	"github.com/jonathan/curator/internal/search"
	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/submit"
	"github.com/jonathan/curator/internal/types"
)

// Analyzer grades a vetted candidate. It never fails.
type Analyzer interface {
	Analyze(ctx context.Context, agent *types.Agent, c *types.Candidate) quality.Result
}

// Submitter publishes a candidate.
type Submitter interface {
	Submit(ctx context.Context, agent *types.Agent, c *types.Candidate) (submit.Outcome, error)
}

// Waiter blocks until key may make another call.
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store     store.Store
	Feed      search.Provider
	Web       search.Provider
	Analyzer  Analyzer
	Submitter Submitter
	// SubmitLimiter spaces out submissions of one agent.
	SubmitLimiter Waiter
}

// Options tunes an Orchestrator.
type Options struct {
	// AIConcurrency bounds parallel quality analyses within a run.
	AIConcurrency int
	// HostCacheSize and HostCacheTTL bound the per-host artifact count cache.
	HostCacheSize int
	HostCacheTTL  time.Duration
	OnProgress    ProgressCallback
}

// Option defaults
const (
	DefaultAIConcurrency = 4
	DefaultHostCacheSize = 1024
	DefaultHostCacheTTL  = 10 * time.Minute
)

// DailyWindow is the trailing window the daily post cap applies to.
const DailyWindow = 24 * time.Hour

// Orchestrator executes agent runs.
type Orchestrator struct {
	deps    Deps
	opts    Options
	signals *signalSource
	now     func() time.Time
	logger  *slog.Logger
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.AIConcurrency <= 0 {
		opts.AIConcurrency = DefaultAIConcurrency
	}
	if opts.HostCacheSize <= 0 {
		opts.HostCacheSize = DefaultHostCacheSize
	}
	if opts.HostCacheTTL <= 0 {
		opts.HostCacheTTL = DefaultHostCacheTTL
	}
	return &Orchestrator{
		deps:    deps,
		opts:    opts,
		signals: newSignalSource(deps.Store, opts.HostCacheSize, opts.HostCacheTTL),
		now:     time.Now,
		logger:  slog.Default().With("system", "pipeline"),
	}
}

// WithClock sets the clock used for run timestamps and the daily window.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Execute runs one cycle of agentID. A missing or disabled agent is a no-op and
// returns a nil run. Unexpected failures mark the run failed and are returned so the
// caller can retry the whole cycle.
func (o *Orchestrator) Execute(ctx context.Context, agentID uuid.UUID) (*types.Run, error) {
	st := o.deps.Store

	agent, err := st.GetAgent(ctx, agentID)
	if errors.Is(err, store.ErrNotFound) {
		o.logger.Warn("agent not found, skipping run", "agent", agentID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent %s: %w", agentID, err)
	}
	if !agent.Enabled {
		o.logger.Info("agent disabled, skipping run", "agent", agentID)
		return nil, nil
	}
	agent.WithDefaults()

	started := o.now()
	if err := st.MarkRunStarted(ctx, agent.ID, started); err != nil {
		return nil, fmt.Errorf("failed to mark run started for agent %s: %w", agent.ID, err)
	}

	run := &types.Run{
		ID:        uuid.New(),
		AgentID:   agent.ID,
		Status:    types.RunRunning,
		StartedAt: started,
	}
	if err := st.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run for agent %s: %w", agent.ID, err)
	}

	log := o.logger.With("agent", agent.ID, "run", run.ID)
	log.Info("run started", "name", agent.Name)

	counts, runErr := o.runPhases(ctx, agent, run, log)
	return run, o.finish(ctx, run, counts, runErr, log)
}

func (o *Orchestrator) runPhases(ctx context.Context, agent *types.Agent, run *types.Run, log *slog.Logger) (types.RunCounts, error) {
	var counts types.RunCounts

	found, err := o.searchPhase(ctx, agent, run, log)
	counts.CandidatesFound = found
	if err != nil {
		return counts, fmt.Errorf("search phase failed: %w", err)
	}
	o.progress(PhaseSearch, fmt.Sprintf("found %d candidates", found), agent, run, counts)

	vetted, err := o.ruleVettingPhase(ctx, agent, run, log)
	counts.CandidatesVetted = vetted
	if err != nil {
		return counts, fmt.Errorf("rule vetting failed: %w", err)
	}
	o.progress(PhaseRuleVetting, fmt.Sprintf("%d candidates passed rule vetting", vetted), agent, run, counts)

	if agent.Quality.AIVettingEnabled {
		scored, err := o.aiVettingPhase(ctx, agent, run, log)
		counts.CandidatesAIScored = scored
		if err != nil {
			return counts, fmt.Errorf("AI vetting failed: %w", err)
		}
		o.progress(PhaseAIVetting, fmt.Sprintf("%d candidates passed AI vetting", scored), agent, run, counts)
	}

	posts, err := o.submissionPhase(ctx, agent, run, log)
	counts.PostsCreated = posts
	if err != nil {
		return counts, fmt.Errorf("submission failed: %w", err)
	}
	o.progress(PhaseSubmission, fmt.Sprintf("created %d posts", posts), agent, run, counts)

	return counts, nil
}

// finish stores the terminal run. It uses a context detached from cancellation so a
// cancelled run is still recorded as failed.
func (o *Orchestrator) finish(ctx context.Context, run *types.Run, counts types.RunCounts, runErr error, log *slog.Logger) error {
	finishCtx := context.WithoutCancel(ctx)
	at := o.now()

	if runErr != nil {
		if err := run.Fail(counts, runErr, at); err != nil {
			return errors.Join(runErr, err)
		}
	} else if err := run.Complete(counts, at); err != nil {
		return err
	}

	metrics.RunsFinished.WithLabelValues(string(run.Status)).Inc()
	metrics.RunDuration.Observe(run.Duration().Seconds())

	if err := o.deps.Store.FinishRun(finishCtx, run); err != nil {
		err = fmt.Errorf("failed to store finished run %s: %w", run.ID, err)
		if runErr != nil {
			return errors.Join(runErr, err)
		}
		return err
	}

	if runErr != nil {
		log.Error("run failed", "error", runErr, "found", counts.CandidatesFound, "posts", counts.PostsCreated)
		return fmt.Errorf("run %s of agent %s failed: %w", run.ID, run.AgentID, runErr)
	}
	log.Info("run completed",
		"found", counts.CandidatesFound,
		"vetted", counts.CandidatesVetted,
		"ai_scored", counts.CandidatesAIScored,
		"posts", counts.PostsCreated,
		"duration", run.Duration())
	return nil
}

func (o *Orchestrator) progress(phase, msg string, agent *types.Agent, run *types.Run, counts types.RunCounts) {
	if o.opts.OnProgress == nil {
		return
	}
	o.opts.OnProgress(ProgressEvent{
		Phase:   phase,
		Message: msg,
		AgentID: agent.ID,
		RunID:   run.ID,
		Counts:  counts,
	})
}
