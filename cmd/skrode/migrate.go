package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/arrdem/skrode/internal/config"
	"github.com/arrdem/skrode/internal/infra/database"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}

			db, err := database.NewPostgres(cfg.Server.PostgresDsn)
			if err != nil {
				return err
			}
			if err := database.MigratePostgres(db); err != nil {
				return err
			}

			slog.Info("migration complete", slog.String("module", "main"))
			return nil
		},
	}
}
