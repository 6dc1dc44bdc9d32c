package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/itc-hub/sitecontrol/internal/auth"
	"github.com/itc-hub/sitecontrol/internal/config"
	"github.com/itc-hub/sitecontrol/internal/db"
	"github.com/itc-hub/sitecontrol/internal/models"
)

func newAdminCmd() *cobra.Command {
	var (
		configPath string
		email      string
		fullName   string
	)

	// Bootstrap command: the API requires an admin to create accounts, so
	// the first admin has to come from the CLI.
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd, configPath, email, fullName)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sitecontrol.yaml", "path to config file")
	cmd.Flags().StringVarP(&email, "email", "e", "", "admin email (required)")
	cmd.Flags().StringVarP(&fullName, "name", "n", "", "full name")
	cmd.MarkFlagRequired("email")
	return cmd
}

func runAdmin(cmd *cobra.Command, configPath, email, fullName string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(conn); err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("admin: read password: %w", err)
	}
	if len(password) < 8 {
		return fmt.Errorf("admin: password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(string(password))
	if err != nil {
		return err
	}

	u := models.User{
		ID:           uuid.New().String(),
		Email:        email,
		FullName:     fullName,
		Role:         models.RoleAdmin,
		PasswordHash: hash,
		IsActive:     true,
		DateJoined:   time.Now(),
	}
	if err := conn.Create(&u).Error; err != nil {
		return fmt.Errorf("admin: create %s: %w", email, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Admin %s created.\n", email)
	return nil
}
