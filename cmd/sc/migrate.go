package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itc-hub/sitecontrol/internal/config"
	"github.com/itc-hub/sitecontrol/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long:  "Runs schema auto-migration for all tables. Safe to run multiple times.",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sitecontrol.yaml", "path to config file")
	return cmd
}
