package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradegraph/core/internal/pipeline"
	"github.com/tradegraph/core/internal/store"
)

var (
	dryRun    bool
	inputDir  string
	outputDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full refresh of the trade graph",
	Long: `Loads the input tables, reconciles them, upserts the graph into the
configured store, computes the centrality scores and writes:

  article_page_rank_countries.csv  country profiles ranked by PageRank
  trade_partners.csv               reconciled trade partner edges

With --dry-run the store is skipped and the score columns stay empty.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if inputDir != "" {
		cfg.InputDir = inputDir
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var backend store.Backend
	if !dryRun {
		b, err := store.Open(ctx, cfg.Store, cfg.Analytics, logger)
		if err != nil {
			return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
		}
		defer func() {
			if err := b.Close(ctx); err != nil {
				logger.Warn("Failed to close store", zap.Error(err))
			}
		}()
		backend = b
	}

	report, err := pipeline.New(cfg, backend, logger).Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s finished in %s\n", report.RunID, report.Duration)
	fmt.Fprintf(out, "  countries: %d  regions: %d  goods: %d\n", report.Countries, report.Regions, report.Goods)
	fmt.Fprintf(out, "  trades: %d  memberships: %d  goods links: %d\n", report.Trades, report.Memberships, report.GoodsLinks)
	if report.DryRun {
		fmt.Fprintln(out, "  dry run: store skipped")
	} else {
		fmt.Fprintf(out, "  scored: %d\n", report.Scored)
	}
	for _, path := range report.Outputs {
		fmt.Fprintf(out, "  wrote %s\n", path)
	}
	return nil
}
