package repository

import (
	"time"

	"github.com/google/uuid"
)

// Default store configuration constants.
const (
	defaultMatchAttempts   = 5
	defaultMetricsInterval = 5 * time.Second
)

type storeConfig struct {
	now             func() time.Time
	newID           func() string
	matchAttempts   int
	metricsInterval time.Duration
}

func defaultStoreConfig() storeConfig {
	return storeConfig{
		now:             func() time.Time { return time.Now().UTC() },
		newID:           uuid.NewString,
		matchAttempts:   defaultMatchAttempts,
		metricsInterval: defaultMetricsInterval,
	}
}

// Option applies a configuration option to a store.
type Option func(*storeConfig)

// WithClock overrides the timestamp source for new records.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides how interaction and match ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(c *storeConfig) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithMatchAttempts bounds retries of a conflicting match transaction (badger only).
func WithMatchAttempts(n int) Option {
	return func(c *storeConfig) {
		if n > 0 {
			c.matchAttempts = n
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(c *storeConfig) {
		if interval > 0 {
			c.metricsInterval = interval
		}
	}
}
