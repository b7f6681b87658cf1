package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch due RSS/Atom feeds and store new items",
	Long: `Fetches every active feed that was never fetched or was last fetched more than an hour
ago, stores new items as pending and marks items whose URL is already published as
duplicates. Fetch failures are recorded on the feed and do not fail the command.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	database, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	summary, err := newIngester(database).IngestDue(ctx)
	if err != nil {
		return fmt.Errorf("feed ingestion failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sources=%d failed=%d new=%d duplicates=%d skipped=%d\n",
		summary.Sources, summary.Failed, summary.NewItems, summary.Duplicates, summary.Skipped)
	return nil
}
