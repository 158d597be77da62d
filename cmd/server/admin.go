package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"library-catalog/internal/server"
	"library-catalog/internal/service"
)

var adminUsername, adminEmail, adminPassword string

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
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
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			serverInstance.Stop(ctx)
		}()

		user, err := serverInstance.Users().CreateAdmin(cmd.Context(), &service.RegisterRequest{
			Username: adminUsername,
			Email:    adminEmail,
			Password: adminPassword,
		})
		if err != nil {
			return err
		}

		slog.Info("Administrator created", "user_id", user.ID, "username", user.Username)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminUsername, "username", "", "Administrator username")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Administrator e-mail address")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Administrator password")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(createAdminCmd)
}
