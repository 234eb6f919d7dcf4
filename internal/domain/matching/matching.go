// Package matching turns reciprocal positive interactions into match records.
package matching

import (
	"context"

	"github.com/okian/elove/internal/domain/errs"
	"github.com/okian/elove/internal/domain/model"
	"github.com/okian/elove/pkg/logger"
	"github.com/okian/elove/pkg/metrics"
)

// Store is the persistence the resolver needs. CreateMatchIfAbsent must be
// atomic per canonical pair; the resolver does not pre-check for a match.
type Store interface {
	HasPositive(ctx context.Context, fromID, toID string) (bool, error)
	CreateMatchIfAbsent(ctx context.Context, loID, hiID string) (bool, model.Match, error)
}

// Outcome reports what the resolver decided.
type Outcome struct {
	// Mutual is true when the reverse positive interaction exists.
	Mutual bool `json:"mutual_match"`
	// Created is true only for the call that inserted the match record.
	Created bool   `json:"match_created"`
	MatchID string `json:"match_id,omitempty"`
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithLogger sets a custom logger for the resolver.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resolver detects mutual matches.
type Resolver struct {
	store  Store
	logger logger.Logger
}

// NewResolver creates a resolver over store.
func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("matching")
	}
	return r
}

// OnPositiveInteraction is called after fromID recorded a positive interaction
// toward toID. Calling it repeatedly for the same pair yields one match.
func (r *Resolver) OnPositiveInteraction(ctx context.Context, fromID, toID string) (Outcome, error) {
	const op = "matching.on_positive"
	if !model.ValidID(fromID) || !model.ValidID(toID) || fromID == toID {
		return Outcome{}, errs.Newf(op, errs.ErrValidation, "invalid pair %q/%q", fromID, toID)
	}

	reciprocal, err := r.store.HasPositive(ctx, toID, fromID)
	if err != nil {
		return Outcome{}, errs.Wrap(op, err)
	}
	if !reciprocal {
		return Outcome{}, nil
	}

	lo, hi := model.CanonicalPair(fromID, toID)
	created, m, err := r.store.CreateMatchIfAbsent(ctx, lo, hi)
	if err != nil {
		metrics.RecordErrorByComponent("matching", "create_match")
		return Outcome{}, errs.Wrap(op, err)
	}

	if created {
		metrics.RecordMatchCreated()
		r.logger.Info(ctx, "mutual match created",
			logger.String("matchID", m.ID),
			logger.String("loID", lo),
			logger.String("hiID", hi),
		)
	} else {
		metrics.RecordMatchExisting()
		r.logger.Debug(ctx, "mutual match already recorded", logger.String("matchID", m.ID))
	}

	return Outcome{Mutual: true, Created: created, MatchID: m.ID}, nil
}
