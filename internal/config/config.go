// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of New().
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"

	"github.com/okian/elove/internal/domain/model"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: memory or badger.
	Store string `koanf:"store"`

	// BadgerDir is the data directory for the badger store.
	BadgerDir string `koanf:"badger_dir"`

	// BadgerInMemory runs badger without touching disk.
	BadgerInMemory bool `koanf:"badger_in_memory"`

	// BaseKFactor is the rating engine's base K.
	BaseKFactor float64 `koanf:"base_k_factor"`

	// InitialScore is assigned to new participants.
	InitialScore float64 `koanf:"initial_score"`

	// MaxUpdateAttempts bounds retries of a conflicting score update.
	MaxUpdateAttempts int `koanf:"max_update_attempts"`

	// DedupeSize sets the size of the idempotency-key cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DefaultHistoryLimit and MaxHistoryLimit bound GET /participants/{id}/history?limit.
	DefaultHistoryLimit int `koanf:"default_history_limit"`
	MaxHistoryLimit     int `koanf:"max_history_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		Store:               StoreMemory,
		BadgerDir:           "data",
		BadgerInMemory:      false,
		BaseKFactor:         32,
		InitialScore:        model.DefaultScore,
		MaxUpdateAttempts:   5,
		DedupeSize:          100_000,
		MaxLeaderboardLimit: 100,
		DefaultHistoryLimit: 50,
		MaxHistoryLimit:     200,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StoreBadger:
		return fmt.Errorf("%w: store must be %q or %q, got %q", ErrInvalidConfig, StoreMemory, StoreBadger, c.Store)
	case c.Store == StoreBadger && !c.BadgerInMemory && strings.TrimSpace(c.BadgerDir) == "":
		return fmt.Errorf("%w: badger_dir is required unless badger_in_memory is set", ErrInvalidConfig)
	case c.BaseKFactor <= 0:
		return fmt.Errorf("%w: base_k_factor must be positive", ErrInvalidConfig)
	case c.InitialScore < model.MinScore || c.InitialScore > model.MaxScore:
		return fmt.Errorf("%w: initial_score must be within [%v, %v]", ErrInvalidConfig, model.MinScore, model.MaxScore)
	case c.MaxUpdateAttempts < 1:
		return fmt.Errorf("%w: max_update_attempts must be at least 1", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be at least 1", ErrInvalidConfig)
	case c.DefaultHistoryLimit < 1 || c.MaxHistoryLimit < c.DefaultHistoryLimit:
		return fmt.Errorf("%w: history limits must satisfy 1 <= default_history_limit <= max_history_limit", ErrInvalidConfig)
	}
	return nil
}
