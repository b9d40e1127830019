// Package config holds the explicit configuration object passed to each
// component. Loaded from a YAML file, created with defaults if missing.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config stores all process-wide configuration.
type Config struct {
	// DataDir is the directory holding table files.
	DataDir string `yaml:"data_dir"`

	// LogLevel is the slog level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Source configures the external record API.
	Source SourceConfig `yaml:"source"`

	// History configures the git-backed audit trail. Disabled when off.
	History HistoryConfig `yaml:"history"`
}

// SourceConfig configures the external record API client.
type SourceConfig struct {
	// BaseURL overrides the API base URL. Empty uses the default.
	BaseURL string `yaml:"base_url,omitempty"`

	// Token is the bearer token. May also come from the ROWLOG_TOKEN
	// environment variable, which takes precedence.
	Token string `yaml:"token,omitempty"`
}

// HistoryConfig configures the audit trail.
type HistoryConfig struct {
	// Enabled turns commit-per-write recording on.
	Enabled bool `yaml:"enabled"`

	// Name and Email sign the recorded commits.
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir:  "./data",
		LogLevel: "info",
		History: HistoryConfig{
			Enabled: true,
			Name:    "rowlog",
			Email:   "rowlog@localhost",
		},
	}
}

// Load reads the configuration from path, writing the defaults there first
// if the file does not exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
		slog.Info("Created default config", "path", path)
		return cfg, nil
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if token := os.Getenv("ROWLOG_TOKEN"); token != "" {
		cfg.Source.Token = token
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Level converts the configured log level name to a slog.Level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
