package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/enrich"
)

// newEnrichCmd creates and configures the 'enrich' subcommand.
func newEnrichCmd() *cobra.Command {
	var inPath, outPath string
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Augments audit results with PMS clues from job postings",
		Long: `Reads an audit results CSV and, for each practice, searches job
postings for practice management system mentions. Unambiguous findings
upgrade the PMS guess; all clues land in a pms_clues_jobs column.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			searcher, err := enrich.NewSearcher(cfg.Enrich.Provider, cfg.Enrich.Endpoint, cfg.Enrich.APIKey)
			if err != nil {
				return fmt.Errorf("init search provider: %w", err)
			}
			enricher := enrich.New(searcher, enrich.Options{
				QueriesPerSec: cfg.Enrich.QueriesPerSec,
				ResultCount:   cfg.Enrich.ResultCount,
			}, logger)

			upgraded, err := enricher.ProcessFile(ctx, inPath, outPath)
			if err != nil {
				return fmt.Errorf("enrich results: %w", err)
			}
			logger.Info("enrichment finished",
				zap.String("out", outPath),
				zap.Int("pms_upgrades", upgraded))
			return nil
		},
	}

	cmd.Flags().StringVar(&inPath, "in", "audit_results.csv", "input audit results CSV")
	cmd.Flags().StringVar(&outPath, "out", "enriched_results.csv", "output enriched CSV")
	return cmd
}
