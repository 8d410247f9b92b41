// Package main is the tradegraph command line. It runs the factbook
// reconciliation pipeline against a graph store and serves the reconcile
// API over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradegraph/core/internal/config"
	"github.com/tradegraph/core/internal/logging"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tradegraph",
	Short: "Reconcile factbook tables into a trade graph and rank countries",
	Long: `tradegraph loads the country factbook tables, reconciles them into
country profiles, trade partner edges and a goods taxonomy, uploads the
result to a graph store and ranks every country by PageRank and ArticleRank.

The ranked countries and the trade partner table are written as CSV files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Reconcile and export without touching the graph store")
	runCmd.Flags().StringVar(&inputDir, "input", "", "Input directory (overrides config)")
	runCmd.Flags().StringVar(&outputDir, "output", "", "Output directory (overrides config)")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")

	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
