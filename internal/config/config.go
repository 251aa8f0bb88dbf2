package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Membership MembershipConfig `mapstructure:"membership"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds remote service configuration
type ServerConfig struct {
	URL    string `mapstructure:"url"`     // API base URL
	Token  string `mapstructure:"token"`   // Bearer token
	UserID string `mapstructure:"user_id"` // Owner of the playlists
}

// MembershipConfig tunes the rebuild pipeline and the request policy
type MembershipConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`        // Playlists fetched in parallel
	PlaylistPageSize int           `mapstructure:"playlist_page_size"` // Page size for the playlist listing
	ItemPageSize     int           `mapstructure:"item_page_size"`     // Page size for playlist items
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`    // Hard deadline per request
	MaxAttempts      int           `mapstructure:"max_attempts"`       // Attempts per request, first included
	BackoffMin       time.Duration `mapstructure:"backoff_min"`        // First retry delay
	BackoffMax       time.Duration `mapstructure:"backoff_max"`        // Retry delay cap
}

// StoreConfig holds the rebuild report store configuration
type StoreConfig struct {
	Path    string `mapstructure:"path"`    // bbolt file, empty = memory only
	History int    `mapstructure:"history"` // Reports kept
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Membership: MembershipConfig{
			Concurrency:      5,
			PlaylistPageSize: 50,
			ItemPageSize:     300,
			RequestTimeout:   30 * time.Second,
			MaxAttempts:      3,
			BackoffMin:       1 * time.Second,
			BackoffMax:       4 * time.Second,
		},
		Store: StoreConfig{
			Path:    filepath.Join(defaultDataPath(), "reports.db"),
			History: 20,
		},
		Logging: LoggingConfig{
			File:       filepath.Join(defaultDataPath(), "setlist.log"),
			Level:      "INFO",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "setlist")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "setlist")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "setlist")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "setlist")
	}
}

// setDefaults registers every default so env overrides work for keys absent from the file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.token", cfg.Server.Token)
	v.SetDefault("server.user_id", cfg.Server.UserID)

	v.SetDefault("membership.concurrency", cfg.Membership.Concurrency)
	v.SetDefault("membership.playlist_page_size", cfg.Membership.PlaylistPageSize)
	v.SetDefault("membership.item_page_size", cfg.Membership.ItemPageSize)
	v.SetDefault("membership.request_timeout", cfg.Membership.RequestTimeout)
	v.SetDefault("membership.max_attempts", cfg.Membership.MaxAttempts)
	v.SetDefault("membership.backoff_min", cfg.Membership.BackoffMin)
	v.SetDefault("membership.backoff_max", cfg.Membership.BackoffMax)

	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("store.history", cfg.Store.History)

	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", cfg.Logging.MaxAgeDays)
}

// LoadConfig loads configuration from file and environment.
// configFile may be empty, in which case the default locations are searched.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	// Environment variable overrides, e.g. SETLIST_SERVER_TOKEN
	v.SetEnvPrefix("SETLIST")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rebuild pipeline cannot run with
func (c *Config) Validate() error {
	m := c.Membership
	switch {
	case m.Concurrency <= 0:
		return fmt.Errorf("membership.concurrency must be positive, got %d", m.Concurrency)
	case m.PlaylistPageSize <= 0:
		return fmt.Errorf("membership.playlist_page_size must be positive, got %d", m.PlaylistPageSize)
	case m.ItemPageSize <= 0:
		return fmt.Errorf("membership.item_page_size must be positive, got %d", m.ItemPageSize)
	case m.RequestTimeout <= 0:
		return fmt.Errorf("membership.request_timeout must be positive, got %s", m.RequestTimeout)
	case m.MaxAttempts <= 0:
		return fmt.Errorf("membership.max_attempts must be positive, got %d", m.MaxAttempts)
	case m.BackoffMin <= 0 || m.BackoffMax < m.BackoffMin:
		return fmt.Errorf("membership backoff range %s..%s is invalid", m.BackoffMin, m.BackoffMax)
	}
	return nil
}

// IsConfigured returns true if the server URL, token and user are set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != "" && c.Server.Token != "" && c.Server.UserID != ""
}

// DefaultConfigFile returns the config file written by `setlist init`
func DefaultConfigFile() string {
	return filepath.Join(defaultConfigPath(), "config.yaml")
}

// WriteServerConfig stores the server section in the YAML file at path,
// keeping any other settings already there.
func WriteServerConfig(path string, server ServerConfig) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error reading config file: %w", err)
	}

	v.Set("server.url", server.URL)
	v.Set("server.token", server.Token)
	v.Set("server.user_id", server.UserID)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(path, 0600)
}
