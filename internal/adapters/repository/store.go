// Package repository holds the persistence backends for participants,
// interactions and matches.
package repository

import (
	"context"

	"github.com/okian/elove/internal/domain/model"
)

// Store provides read/write access to participants, interactions and matches.
type Store interface {
	// CreateParticipant inserts p. The id must be unused.
	CreateParticipant(ctx context.Context, p model.Participant) error
	// GetParticipant returns errs.ErrNotFound if the id is unknown.
	GetParticipant(ctx context.Context, id string) (model.Participant, error)
	// ListParticipants returns everyone ordered by score desc, id asc.
	ListParticipants(ctx context.Context) ([]model.Participant, error)
	// TopN returns the first n entries of ListParticipants.
	TopN(ctx context.Context, n int) ([]model.Participant, error)

	// UpdateScores applies every update or none. Each update carries the
	// version the caller read; a mismatch yields errs.ErrConflict.
	UpdateScores(ctx context.Context, updates ...model.ScoreUpdate) error

	// AppendInteraction stores in and returns its id.
	AppendInteraction(ctx context.Context, in model.Interaction) (string, error)
	// InteractionsFrom returns interactions given by id, newest first.
	InteractionsFrom(ctx context.Context, id string) ([]model.Interaction, error)
	// InteractionsTo returns interactions received by id, newest first.
	InteractionsTo(ctx context.Context, id string) ([]model.Interaction, error)
	// HasPositive reports whether fromID ever recorded a positive interaction toward toID.
	HasPositive(ctx context.Context, fromID, toID string) (bool, error)

	// CreateMatchIfAbsent atomically creates the match for the canonical
	// pair (loID < hiID) unless one exists, returning the stored match.
	CreateMatchIfAbsent(ctx context.Context, loID, hiID string) (bool, model.Match, error)
	// MatchesFor returns matches where id holds either canonical position.
	MatchesFor(ctx context.Context, id string) ([]model.Match, error)

	// Count returns the number of participants.
	Count(ctx context.Context) int
	Close() error
}
