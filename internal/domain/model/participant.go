// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
	"unicode"
)

// Score bounds and defaults.
const (
	DefaultScore = 1200.0
	MinScore     = 100.0
	MaxScore     = 3000.0

	maxIDLength = 128
)

// Participant is a rated member of the application.
type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Bio       string    `json:"bio"`
	Score     float64   `json:"score"`
	Version   uint64    `json:"version"` // bumped on every score write
	CreatedAt time.Time `json:"created_at"`
}

// ScoreUpdate is a compare-and-swap request for one participant's score.
type ScoreUpdate struct {
	ID              string
	Score           float64
	ExpectedVersion uint64
}

// ValidID reports whether id is usable as a participant identifier:
// non-blank, bounded, and free of control characters.
func ValidID(id string) bool {
	if strings.TrimSpace(id) == "" || len(id) > maxIDLength {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
