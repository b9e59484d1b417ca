// Package config loads CLI configuration from the environment.
//
// Flags override every value loaded here.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-sourced CLI configuration.
type Config struct {
	// DB is the SQLite journal path. Empty disables journaling.
	DB string `env:"REACTOR_DB"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"REACTOR_LOG_LEVEL" envDefault:"info"`

	// NATSURL enables broadcasting when set.
	NATSURL string `env:"REACTOR_NATS_URL"`

	// NATSSubject is the base subject for broadcast events.
	NATSSubject string `env:"REACTOR_NATS_SUBJECT" envDefault:"reactor.events"`

	// DefaultExpiry applies to deferred commands without their own.
	DefaultExpiry time.Duration `env:"REACTOR_DEFAULT_EXPIRY" envDefault:"10s"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.DefaultExpiry < 0 {
		return fmt.Errorf("REACTOR_DEFAULT_EXPIRY must not be negative, got %s", c.DefaultExpiry)
	}
	return nil
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel parses a log level name. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
