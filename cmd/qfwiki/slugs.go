package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/slugfill"
)

var slugsCmd = &cobra.Command{
	Use:   "slugs",
	Short: "Maintain document slugs in collection files",
}

var slugsBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Assign slugs to documents that lack one and rewrite the collection files",
	Long: "Assigns unique slugs to documents without one. With --regenerate every slug is recomputed. " +
		"Files are replaced atomically and only when something changed.",
	RunE: runSlugsBackfill,
}

var (
	backfillCollection string
	backfillRegenerate bool
	backfillDryRun     bool
)

func init() {
	slugsBackfillCmd.Flags().StringVar(&backfillCollection, "collection", "",
		"Only process this collection (default: all)")
	slugsBackfillCmd.Flags().BoolVar(&backfillRegenerate, "regenerate", false,
		"Recompute every slug, not just missing ones")
	slugsBackfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false,
		"Report what would change without writing files")

	slugsCmd.AddCommand(slugsBackfillCmd)
	rootCmd.AddCommand(slugsCmd)
}

func runSlugsBackfill(cmd *cobra.Command, _ []string) error {
	cfg, logger, _, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("collections: %w", err)
	}
	svc := slugfill.New(reg, cfg.Content.DataDir, logger)
	opts := slugfill.Options{Regenerate: backfillRegenerate, DryRun: backfillDryRun}

	ctx := cmd.Context()

	var results []slugfill.Result
	if backfillCollection != "" {
		res, err := svc.Run(ctx, backfillCollection, opts)
		if err != nil {
			return fmt.Errorf("backfill %s: %w", backfillCollection, err)
		}
		results = []slugfill.Result{res}
	} else {
		results, err = svc.RunAll(ctx, opts)
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	for _, res := range results {
		switch {
		case res.Skipped != "":
			_, _ = fmt.Fprintf(out, "%-22s skipped (%s)\n", res.Collection, res.Skipped)
		default:
			_, _ = fmt.Fprintf(out, "%-22s %d/%d assigned, written=%t\n",
				res.Collection, res.Assigned, res.Total, res.Written)
		}
	}
	logger.Info("Slug backfill finished", zap.Int("collections", len(results)), zap.Bool("dry_run", backfillDryRun))
	return nil
}
