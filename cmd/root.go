// Package cmd defines and implements the CLI commands for the odms executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/config"
	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "odms",
		Short: "Audits dental practice websites for patient-facing technology",
		Long: `odms crawls dental practice websites politely and fingerprints the
patient-facing technology they run: online booking, forms, payments, and
the practice management system behind them. Results land in CSV and JSONL
files ready for enrichment and aggregation.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults + ODMS_* env)")

	cmd.AddCommand(newAuditCmd())
	cmd.AddCommand(newEnrichCmd())
	cmd.AddCommand(newStatsCmd())
	return cmd
}

// loadConfigAndLogger is shared setup for every subcommand.
func loadConfigAndLogger() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Development:      cfg.Logging.Development,
		Level:            cfg.Logging.Level,
		SampleInitial:    cfg.Logging.SampleInitial,
		SampleThereafter: cfg.Logging.SampleThereafter,
	})
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
