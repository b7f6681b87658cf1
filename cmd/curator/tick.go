package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/curator/internal/scheduler"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Claim and run every due agent once",
	Long: `Performs a single scheduler tick: due agents are claimed exactly as the service would
claim them, their runs execute on the worker pool, and the command exits once the queue
has drained. Useful for driving the scheduler from an external cron.`,
	RunE: runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	pool := a.pool(a.orchestrator(nil))
	pool.Start(ctx)

	// A one-off tick always dispatches; AGENTS_ENABLED only gates the service.
	sched := scheduler.New(a.db, pool, scheduler.BotConfig{AgentsEnabled: true})
	res, tickErr := sched.Tick(ctx)

	drainCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := pool.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("failed to drain worker pool: %w", err)
	}
	if tickErr != nil {
		return tickErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "due=%d dispatched=%d skipped=%d\n", res.Due, res.Dispatched, res.Skipped)
	return nil
}
