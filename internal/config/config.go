// Package config provides YAML-based configuration loading for sitecontrol.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration, loaded from sitecontrol.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds connection settings. Driver is "mysql" or "sqlite";
// sqlite uses Path and ignores the host fields.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
}

// AuthConfig holds token-signing settings. TTLs are in seconds.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	AccessTTL  int    `yaml:"access_ttl"`
	RefreshTTL int    `yaml:"refresh_ttl"`
}

// StorageConfig points at the external media (file-storage) service.
type StorageConfig struct {
	BaseURL    string `yaml:"base_url"`
	Token      string `yaml:"token"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// NotifyConfig controls outbox delivery channels. Empty settings disable
// the corresponding channel.
type NotifyConfig struct {
	WebhookURL     string `yaml:"webhook_url"`
	SlackToken     string `yaml:"slack_token"`
	SlackChannel   string `yaml:"slack_channel"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
	SweepCron      string `yaml:"sweep_cron"` // 5-field cron, retry sweep schedule
	MaxAttempts    int    `yaml:"max_attempts"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "sitecontrol"
	}
	if c.Database.Path == "" {
		c.Database.Path = "sitecontrol.db"
	}
	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = 900 // 15 minutes
	}
	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = 30 * 24 * 3600
	}
	if c.Storage.TimeoutSec == 0 {
		c.Storage.TimeoutSec = 30
	}
	if c.Notify.SweepCron == "" {
		c.Notify.SweepCron = "*/5 * * * *"
	}
	if c.Notify.MaxAttempts == 0 {
		c.Notify.MaxAttempts = 5
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of mysql, sqlite", c.Database.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret is required")
	}
	if c.Auth.AccessTTL < 0 || c.Auth.RefreshTTL < 0 {
		errs = append(errs, "auth TTLs must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
