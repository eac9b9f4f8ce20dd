package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. WORKLIST_STORE_DSN.
const envPrefix = "WORKLIST"

// StoreConfig selects the snooze database.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver"`

	// DSN is the file path (sqlite) or connection string (postgres).
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// SnoozeConfig holds the local-time policy used to resolve presets such
// as "tomorrow" and "next week".
type SnoozeConfig struct {
	MorningHour int    `mapstructure:"morning_hour" yaml:"morning_hour"`
	WeekStart   string `mapstructure:"week_start" yaml:"week_start"`
}

// GmailConfig configures the Gmail adapter.
type GmailConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	UserID     string `mapstructure:"user_id" yaml:"user_id"`
	Query      string `mapstructure:"query" yaml:"query"`
	MaxResults int    `mapstructure:"max_results" yaml:"max_results"`
}

// OutlookConfig configures the Microsoft Graph mail adapter.
type OutlookConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Top     int    `mapstructure:"top" yaml:"top"`
}

// DevOpsConfig configures the work-item adapter.
type DevOpsConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL      string `mapstructure:"base_url" yaml:"base_url"`
	Organization string `mapstructure:"organization" yaml:"organization"`
	Project      string `mapstructure:"project" yaml:"project"`
	ClosedState  string `mapstructure:"closed_state" yaml:"closed_state"`
	MaxResults   int    `mapstructure:"max_results" yaml:"max_results"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	LogLevel           string `mapstructure:"log_level" yaml:"log_level"`
	Timezone           string `mapstructure:"timezone" yaml:"timezone"`
	FetchTimeoutSec    int    `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
	RefreshIntervalSec int    `mapstructure:"refresh_interval_sec" yaml:"refresh_interval_sec"`
	CleanupAfterHours  int    `mapstructure:"cleanup_after_hours" yaml:"cleanup_after_hours"`

	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Snooze  SnoozeConfig  `mapstructure:"snooze" yaml:"snooze"`
	Gmail   GmailConfig   `mapstructure:"gmail" yaml:"gmail"`
	Outlook OutlookConfig `mapstructure:"outlook" yaml:"outlook"`
	DevOps  DevOpsConfig  `mapstructure:"devops" yaml:"devops"`
}

// FetchTimeout is the bounded per-adapter fetch timeout.
func (c AppConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// RefreshInterval is the cadence of the background refresher.
func (c AppConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}

// CleanupAfter is how long an expired snooze row is kept before
// housekeeping removes it.
func (c AppConfig) CleanupAfter() time.Duration {
	return time.Duration(c.CleanupAfterHours) * time.Hour
}

// Location resolves Timezone, falling back to the local zone.
func (c AppConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/worklist/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "worklist", "config.yaml")
}

// DefaultDatabasePath returns the default sqlite file next to the config.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "worklist.db")
	}
	return filepath.Join(home, ".config", "worklist", "worklist.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("timezone", "")
	v.SetDefault("fetch_timeout_sec", 30)
	v.SetDefault("refresh_interval_sec", 120)
	v.SetDefault("cleanup_after_hours", 168)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", DefaultDatabasePath())

	v.SetDefault("snooze.morning_hour", 9)
	v.SetDefault("snooze.week_start", "monday")

	v.SetDefault("gmail.enabled", false)
	v.SetDefault("gmail.base_url", "https://gmail.googleapis.com/")
	v.SetDefault("gmail.user_id", "me")
	v.SetDefault("gmail.query", "is:starred OR is:important")
	v.SetDefault("gmail.max_results", 50)

	v.SetDefault("outlook.enabled", false)
	v.SetDefault("outlook.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("outlook.top", 100)

	v.SetDefault("devops.enabled", false)
	v.SetDefault("devops.base_url", "https://dev.azure.com")
	v.SetDefault("devops.organization", "")
	v.SetDefault("devops.project", "")
	v.SetDefault("devops.closed_state", "Closed")
	v.SetDefault("devops.max_results", 50)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults and WORKLIST_* environment
// overrides still apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.FetchTimeoutSec <= 0 {
		cfg.FetchTimeoutSec = 30
	}
	if cfg.RefreshIntervalSec <= 0 {
		cfg.RefreshIntervalSec = 120
	}
	if cfg.Snooze.MorningHour < 0 || cfg.Snooze.MorningHour > 23 {
		return nil, fmt.Errorf(
			"snooze.morning_hour must be between 0 and 23, got %d",
			cfg.Snooze.MorningHour,
		)
	}

	return cfg, nil
}
