package main

import (
	"fmt"
	"log/slog"

	"github.com/morepork/akasync/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply any pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			// openStorage migrates implicitly; this command exists so
			// the schema can be upgraded ahead of a deploy.
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			version, err := store.SchemaVersion(ctx)
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}

			slog.Info(cli.FormatSuccess(fmt.Sprintf("Database at schema version %d", version)))
			if dbPath := viper.GetString("database.path"); dbPath != "" {
				slog.Info("Database location", "path", dbPath)
			}
			return nil
		},
	}
}
