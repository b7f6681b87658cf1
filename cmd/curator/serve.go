package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/curator/internal/ratelimit"
	"github.com/jonathan/curator/internal/scheduler"
	"github.com/jonathan/curator/internal/server"
)

// shutdownTimeout bounds how long in-flight runs may take to drain on exit.
const shutdownTimeout = 2 * time.Minute

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, worker pool and ops API",
	Long: `Start the long-running service: a cron scheduler claims due agents and queues their
runs on a bounded worker pool, feed ingestion runs on its own schedule, and an HTTP API
exposes agents, runs, candidates and metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.Migrate(ctx); err != nil {
		return err
	}

	pool := a.pool(a.orchestrator(nil))
	// Runs outlive the signal until the drain timeout.
	pool.Start(context.WithoutCancel(ctx))
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := pool.Shutdown(drainCtx); err != nil {
			logger().Warn("worker pool did not drain", "err", err)
		}
	}()

	sched := scheduler.New(a.db, pool, scheduler.BotConfig{
		AgentsEnabled: cfg.AgentsEnabled,
		TickSpec:      cfg.TickSchedule,
	})
	if err := sched.AddJob(ctx, "@every 30m", "limiter-prune", pruneLimiters(time.Now, a.searchLimiter, a.submitLimiter)); err != nil {
		return err
	}
	if cfg.FeedScanEnabled {
		ingester := newIngester(a.db)
		err := sched.AddJob(ctx, cfg.FeedSchedule, "feed-ingest", func(ctx context.Context) error {
			_, err := ingester.IngestDue(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}

	port := cfg.Port
	if servePort != 0 {
		port = servePort
	}
	srv := server.New(server.Config{Port: port, RateLimit: ratelimit.LoadConfig()}, a.db, pool)

	logger().Info("curator starting",
		"port", port,
		"agents_enabled", cfg.AgentsEnabled,
		"feed_scan_enabled", cfg.FeedScanEnabled,
		"tick", cfg.TickSchedule)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gCtx) })
	g.Go(func() error { return srv.Run(gCtx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("service stopped: %w", err)
	}
	return nil
}
