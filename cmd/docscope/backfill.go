package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var backfillSeed int

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed documents that have no embedding",
	Args:  cobra.NoArgs,
	RunE:  runBackfill,
}

func init() {
	backfillCmd.Flags().IntVar(&backfillSeed, "seed", 0, "store this many sample documents before backfilling")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.shutdown(ctx)

	if backfillSeed < 0 {
		return errors.New("--seed must not be negative")
	}
	if backfillSeed > 0 {
		ids, err := e.kb.Seed(ctx, backfillSeed)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d sample document(s).\n", len(ids))
	}

	report, err := e.kb.Backfill(ctx)
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d of %d document(s), %d failed.\n", report.Embedded, report.Total, report.Failed)
	return nil
}
