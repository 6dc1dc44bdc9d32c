package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itc-hub/sitecontrol/internal/auth"
	"github.com/itc-hub/sitecontrol/internal/config"
	"github.com/itc-hub/sitecontrol/internal/db"
	"github.com/itc-hub/sitecontrol/internal/notify"
	"github.com/itc-hub/sitecontrol/internal/notify/discord"
	notifyslack "github.com/itc-hub/sitecontrol/internal/notify/slack"
	"github.com/itc-hub/sitecontrol/internal/server"
	"github.com/itc-hub/sitecontrol/internal/storage"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and notification dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sitecontrol.yaml", "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
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

	if port <= 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	adapters, err := buildAdapters(cfg.Notify)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(conn, notify.DispatcherOpts{
		Adapters:    adapters,
		MaxAttempts: cfg.Notify.MaxAttempts,
		SweepCron:   cfg.Notify.SweepCron,
	})
	go dispatcher.Run(ctx)

	var store *storage.Client
	if cfg.Storage.BaseURL != "" {
		store = storage.New(cfg.Storage.BaseURL, cfg.Storage.Token,
			time.Duration(cfg.Storage.TimeoutSec)*time.Second)
	}

	svc := auth.NewService(conn, cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.AccessTTL)*time.Second,
		time.Duration(cfg.Auth.RefreshTTL)*time.Second)

	return server.Start(ctx, server.StartOpts{
		DB:      conn,
		Auth:    svc,
		Storage: store,
		Port:    port,
		Out:     cmd.OutOrStdout(),
	})
}

// buildAdapters assembles the configured delivery channels. With none
// configured the dispatcher still runs, marking rows failed until a channel
// comes up.
func buildAdapters(cfg config.NotifyConfig) ([]notify.Adapter, error) {
	var adapters []notify.Adapter
	if cfg.WebhookURL != "" {
		adapters = append(adapters, notify.NewWebhookAdapter(cfg.WebhookURL))
	}
	if cfg.SlackToken != "" && cfg.SlackChannel != "" {
		a, err := notifyslack.New(notifyslack.AdapterOpts{
			BotToken:  cfg.SlackToken,
			ChannelID: cfg.SlackChannel,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	if cfg.DiscordToken != "" && cfg.DiscordChannel != "" {
		a, err := discord.New(discord.AdapterOpts{
			BotToken:  cfg.DiscordToken,
			ChannelID: cfg.DiscordChannel,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}
