package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/curator/internal/config"
	"github.com/jonathan/curator/internal/types"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Create or update feeds and agents from a YAML file",
	Long: `Upserts the feeds and agents declared in a YAML seed file. Agents without an explicit id
get a stable id derived from their name, so re-seeding updates them in place and keeps
their schedule.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

var seedMigrate bool

func init() {
	seedCmd.Flags().BoolVar(&seedMigrate, "migrate", false, "Apply the schema before seeding")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	seed, err := config.LoadSeed(args[0])
	if err != nil {
		return err
	}

	database, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if seedMigrate {
		if err := database.Migrate(ctx); err != nil {
			return err
		}
	}

	if err := applySeed(ctx, database, seed); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d feeds and %d agents\n", len(seed.Feeds), len(seed.Agents))
	return nil
}

type seedStore interface {
	UpsertFeedSource(ctx context.Context, f *types.FeedSource) error
	UpsertAgent(ctx context.Context, agent *types.Agent) error
}

// applySeed writes feeds before agents so agent feed references resolve.
func applySeed(ctx context.Context, st seedStore, seed *config.Seed) error {
	for i := range seed.Feeds {
		f := &seed.Feeds[i]
		if err := st.UpsertFeedSource(ctx, f); err != nil {
			return fmt.Errorf("failed to upsert feed %s: %w", f.URL, err)
		}
	}
	for _, agent := range seed.Agents {
		if err := st.UpsertAgent(ctx, agent); err != nil {
			return fmt.Errorf("failed to upsert agent %s: %w", agent.Name, err)
		}
	}
	return nil
}
