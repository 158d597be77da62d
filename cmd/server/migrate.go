package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"library-catalog/internal/config"
	"library-catalog/internal/repository"
	"library-catalog/internal/server"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.StorageDriver == config.StorageMemory {
			slog.Info("In-memory storage needs no migrations")
			return nil
		}

		db, err := server.OpenDatabase(cmd.Context(), cfg, slog.Default())
		if err != nil {
			return err
		}
		defer db.Close()

		return repository.Migrate(cmd.Context(), db, slog.Default())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
