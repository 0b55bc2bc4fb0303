package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/logging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/config"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "events",
		Short: "Event acknowledgement and score consistency service",
		Long: `events acknowledges log events across the native and external event
stores and keeps effective scores and findings consistent with them.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/events/config.yaml)")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newRecalculateCmd())
	return root
}

// loadConfig reads configuration and installs the process-wide logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("events"))
	logging.SetDefault(logger)

	if cfgFile != "" {
		slog.Info("Loaded configuration", slog.String("config_path", cfgFile))
	}
	return cfg, nil
}
