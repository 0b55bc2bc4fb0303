package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/logging"
)

func newRecalculateCmd() *cobra.Command {
	var systemID string
	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Recompute effective scores from unacknowledged events",
		Long: `Recalculate refreshes max_event_score and effective_value of every
effective score row in the score display window, for one system or for all.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			updated, err := a.recalculator.Recalculate(ctx, systemID)
			if err != nil {
				return fmt.Errorf("recalculation failed: %w", err)
			}
			slog.Info("Recalculation complete", logging.SystemID(systemID), slog.Int("updated_windows", updated))
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d windows\n", updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&systemID, "system", "", "only recalculate this system (default: all systems)")
	return cmd
}
