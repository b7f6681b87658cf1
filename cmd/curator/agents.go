package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/curator/internal/observability"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List configured agents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		database, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		agents, err := database.ListAgents(ctx)
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintAgents(agents)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}
