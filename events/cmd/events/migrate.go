package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/migrations"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runMigrations(cfg.DatabaseURL)
		},
	}
}

func runMigrations(databaseURL string) error {
	slog.Info("Running database migrations")
	version, err := migrations.Up(databaseURL)
	if err != nil {
		return err
	}
	slog.Info("Database migration complete", slog.Uint64("version", uint64(version)))
	return nil
}
