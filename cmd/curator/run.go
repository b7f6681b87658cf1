package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/curator/internal/config"
	"github.com/jonathan/curator/internal/observability"
	"github.com/jonathan/curator/internal/pipeline"
	"github.com/jonathan/curator/internal/store"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run one agent cycle now",
	Long: `Runs search -> rule vetting -> AI vetting -> submission for a single agent in the
foreground and prints a summary. The agent's schedule is left untouched.`,
	RunE: runAgentCmd,
}

var (
	runAgent      string
	runCandidates bool
)

func init() {
	runCommand.Flags().StringVarP(&runAgent, "agent", "a", "", "Agent ID or name (required)")
	runCommand.Flags().BoolVar(&runCandidates, "candidates", false, "Print the top candidates of the run")
	_ = runCommand.MarkFlagRequired("agent")
	rootCmd.AddCommand(runCommand)
}

func runAgentCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	agentID, err := resolveAgentID(runAgent)
	if err != nil {
		return err
	}
	agent, err := a.db.GetAgent(ctx, agentID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("agent %q not found", runAgent)
	}
	if err != nil {
		return err
	}
	if !agent.Enabled {
		return fmt.Errorf("agent %q is disabled", agent.Name)
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	orch := a.orchestrator(func(e pipeline.ProgressEvent) {
		printer.PrintPhase(e.Phase, e.Message, e.Counts)
	})

	run, runErr := orch.Execute(ctx, agent.ID)
	printer.PrintRunSummary(agent, run)

	if runCandidates && run != nil {
		candidates, err := a.db.ListCandidates(ctx, store.CandidateQuery{RunID: run.ID, Order: store.OrderFinalScore})
		if err != nil {
			return fmt.Errorf("failed to list candidates: %w", err)
		}
		printer.PrintCandidates(candidates)
	}
	return runErr
}

// resolveAgentID accepts either an agent UUID or the name an agent was seeded with.
func resolveAgentID(ref string) (uuid.UUID, error) {
	if ref == "" {
		return uuid.Nil, errors.New("agent is required")
	}
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	return config.AgentID(ref), nil
}

