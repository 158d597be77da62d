package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"library-catalog/internal/server"
)

var scanCmd = &cobra.Command{
	Use:   "scan-overdue",
	Short: "Run one overdue sweep, deliver its notifications and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.OverdueScanEnabled = false

		serverInstance, err := server.NewServer(cfg, slog.Default())
		if err != nil {
			return err
		}
		serverInstance.StartWorkers()

		result, scanErr := serverInstance.ScanOverdue(cmd.Context())
		if scanErr == nil {
			slog.Info("Overdue sweep finished",
				"candidates", result.Candidates,
				"marked", result.Marked,
				"failed", result.Failed)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := serverInstance.Stop(ctx); err != nil {
			return err
		}
		return scanErr
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
