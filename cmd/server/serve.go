package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"library-catalog/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, notification worker and overdue scanner",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		serverInstance, err := server.NewServer(cfg, slog.Default())
		if err != nil {
			return err
		}

		port, err := serverInstance.Start(cfg.ServerPort)
		if err != nil {
			return err
		}
		slog.Info("Server started successfully", "port", port)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		// Create context with timeout for shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := serverInstance.Stop(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
			return err
		}

		slog.Info("Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
