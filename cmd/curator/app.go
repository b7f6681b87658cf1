package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/curator/internal/db"
	"github.com/jonathan/curator/internal/dedup"
	"github.com/jonathan/curator/internal/feeds"
	"github.com/jonathan/curator/internal/llm"
	"github.com/jonathan/curator/internal/pipeline"
	"github.com/jonathan/curator/internal/quality"
	"github.com/jonathan/curator/internal/ratelimit"
	"github.com/jonathan/curator/internal/search"
	"github.com/jonathan/curator/internal/submit"
	"github.com/jonathan/curator/internal/worker"
)

// app holds the long-lived collaborators shared by the commands.
type app struct {
	db  *db.DB
	llm llm.Client

	// per-agent spacing of web search queries and submissions
	searchLimiter *ratelimit.Keyed
	submitLimiter *ratelimit.Keyed
}

func connectDB(ctx context.Context) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, nil
}

// newApp connects to the database and the language model.
func newApp(ctx context.Context) (*app, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable is required")
	}
	database, err := connectDB(ctx)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(ctx, llm.ConfigFromEnv(), cfg.APIKey)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	limits := ratelimit.LoadPipelineConfig()
	return &app{
		db:            database,
		llm:           client,
		searchLimiter: ratelimit.NewKeyed(limits.SearchInterval, 1),
		submitLimiter: ratelimit.NewKeyed(limits.SubmitInterval, 1),
	}, nil
}

func (a *app) Close() {
	if err := a.llm.Close(); err != nil {
		slog.Warn("failed to close LLM client", "err", err)
	}
	a.db.Close()
}

// orchestrator wires the run pipeline onto the database and the language model.
func (a *app) orchestrator(onProgress pipeline.ProgressCallback) *pipeline.Orchestrator {
	dd := dedup.New(a.db)

	return pipeline.New(pipeline.Deps{
		Store:         a.db,
		Feed:          search.NewFeedProvider(a.db, a.db, dd),
		Web:           search.NewWebProvider(a.llm, a.searchLimiter, a.db, dd, search.WebConfig{}),
		Analyzer:      quality.NewAnalyzer(a.llm, 0),
		Submitter:     submit.New(a.db),
		SubmitLimiter: a.submitLimiter,
	}, pipeline.Options{
		AIConcurrency: cfg.AIConcurrency,
		OnProgress:    onProgress,
	})
}

// pool runs agent cycles on the orchestrator.
func (a *app) pool(orch *pipeline.Orchestrator) *worker.Pool {
	return worker.New("agents", worker.Config{
		Workers:        cfg.Workers,
		QueueSize:      cfg.QueueSize,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.RetryBackoffDuration(),
	}, runHandler(orch))
}

func runHandler(orch *pipeline.Orchestrator) worker.Handler {
	return func(ctx context.Context, agentID uuid.UUID) error {
		_, err := orch.Execute(ctx, agentID)
		return err
	}
}

func newIngester(database *db.DB) *feeds.Ingester {
	return feeds.NewIngester(database, feeds.NewHTTPClient(feeds.DefaultClientOptions()), cfg.FeedConcurrency)
}

// limiterIdleTTL is how long an agent's rate limit bucket survives without use.
const limiterIdleTTL = time.Hour

// pruneLimiters drops the buckets of agents that have not searched or submitted
// within limiterIdleTTL.
func pruneLimiters(now func() time.Time, limiters ...*ratelimit.Keyed) func(context.Context) error {
	return func(context.Context) error {
		cutoff := now().Add(-limiterIdleTTL)
		removed, remaining := 0, 0
		for _, l := range limiters {
			removed += l.Prune(cutoff)
			remaining += l.Len()
		}
		if removed > 0 {
			logger().Debug("pruned idle rate limit buckets", "removed", removed, "remaining", remaining)
		}
		return nil
	}
}
