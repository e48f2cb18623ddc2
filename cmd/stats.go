package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/stats"
)

// newStatsCmd creates and configures the 'stats' subcommand.
func newStatsCmd() *cobra.Command {
	var inPath, jsonPath, csvPath string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregates audit results into adoption statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := stats.Compute(inPath)
			if err != nil {
				return fmt.Errorf("compute stats: %w", err)
			}
			if jsonPath != "" {
				if err := summary.WriteJSON(jsonPath); err != nil {
					return fmt.Errorf("write stats json: %w", err)
				}
			}
			if csvPath != "" {
				if err := summary.WriteCSV(csvPath); err != nil {
					return fmt.Errorf("write stats csv: %w", err)
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), summary.Render())
			return nil
		},
	}

	cmd.Flags().StringVar(&inPath, "in", "audit_results.csv", "input audit results CSV")
	cmd.Flags().StringVar(&jsonPath, "out-json", "", "optional summary JSON")
	cmd.Flags().StringVar(&csvPath, "out-csv", "", "optional metric/value CSV")
	return cmd
}
