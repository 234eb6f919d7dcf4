// Package loadgen drives the HTTP API with concurrent participants and ratings
// and checks the resulting state for consistency.
package loadgen

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid loadgen config")

// Config holds configuration for a load run.
type Config struct {
	BaseURL        string        // Base URL of the service
	Participants   int           // Participants to create
	Ratings        int           // Ratings to submit (reciprocal follow-ups excluded)
	ReciprocalRate float64       // Share of positive ratings answered positively by the recipient
	ReplayRate     float64       // Share of ratings resent with the same idempotency key
	Workers        int           // Concurrent submitters
	Timeout        time.Duration // HTTP request timeout
	TopN           int           // Leaderboard entries to verify
	Seed           uint64        // Seed for the rating plan
	LogFile        string        // Optional log file in addition to stdout
	Verbose        bool          // Enable debug logging
}

// DefaultConfig returns the settings used by cmd/loadgen.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:9080",
		Participants:   50,
		Ratings:        1000,
		ReciprocalRate: 0.3,
		ReplayRate:     0.05,
		Workers:        8,
		Timeout:        10 * time.Second,
		TopN:           20,
		Seed:           1,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Participants < 2:
		return fmt.Errorf("%w: need at least two participants", ErrInvalidConfig)
	case c.Ratings < 0:
		return fmt.Errorf("%w: ratings must not be negative", ErrInvalidConfig)
	case c.ReciprocalRate < 0 || c.ReciprocalRate > 1:
		return fmt.Errorf("%w: reciprocal rate must be within [0, 1]", ErrInvalidConfig)
	case c.ReplayRate < 0 || c.ReplayRate > 1:
		return fmt.Errorf("%w: replay rate must be within [0, 1]", ErrInvalidConfig)
	case c.TopN < 1:
		return fmt.Errorf("%w: top must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	ParticipantsCreated int
	RatingsSubmitted    int64
	RatingsAccepted     int64
	RatingsFailed       int64
	ReplaysRejected     int64
	ReplaysAccepted     int64
	MatchesExpected     int
	MatchesFound        int
	StartTime           time.Time
	Duration            time.Duration
}
