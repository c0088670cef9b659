// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client and dev server configuration.
type Config struct {
	APIURL       string
	Home         string // state directory: session database and log file
	LogLevel     slog.Level
	PollInterval time.Duration
	Dev          DevConfig
}

// DevConfig controls the local stand-in API served by `knowz devserver`.
type DevConfig struct {
	Addr     string
	Secret   string
	TokenTTL time.Duration
}

// Load reads configuration from environment variables, after merging an
// optional .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	home, err := defaultHome()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIURL:       getEnv("KNOWZ_API_URL", "http://localhost:8088"),
		Home:         getEnv("KNOWZ_HOME", home),
		LogLevel:     getEnvLevel("KNOWZ_LOG_LEVEL", slog.LevelInfo),
		PollInterval: getEnvDuration("KNOWZ_POLL_INTERVAL", 15*time.Second),
		Dev: DevConfig{
			Addr:     getEnv("KNOWZ_DEV_ADDR", ":8088"),
			Secret:   getEnv("KNOWZ_DEV_SECRET", "knowz-dev-secret"),
			TokenTTL: getEnvDuration("KNOWZ_DEV_TOKEN_TTL", 24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("KNOWZ_API_URL cannot be empty")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("KNOWZ_API_URL must be an http(s) URL, got %q", c.APIURL)
	}
	if c.Home == "" {
		return fmt.Errorf("KNOWZ_HOME cannot be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("KNOWZ_POLL_INTERVAL must be > 0")
	}
	if c.Dev.Secret == "" {
		return fmt.Errorf("KNOWZ_DEV_SECRET cannot be empty")
	}
	return nil
}

// DBPath is the local session and outbox database.
func (c *Config) DBPath() string {
	return filepath.Join(c.Home, "knowz.db")
}

// LogPath is the client log file. The TUI owns the terminal, so logs go here.
func (c *Config) LogPath() string {
	return filepath.Join(c.Home, "knowz.log")
}

func defaultHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".knowz"), nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
