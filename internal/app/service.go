// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/okian/elove/internal/adapters/repository"
	"github.com/okian/elove/internal/domain/dedupe"
	"github.com/okian/elove/internal/domain/discovery"
	"github.com/okian/elove/internal/domain/errs"
	"github.com/okian/elove/internal/domain/matching"
	"github.com/okian/elove/internal/domain/model"
	"github.com/okian/elove/internal/domain/rating"
	"github.com/okian/elove/internal/domain/stats"
	"github.com/okian/elove/pkg/logger"
	"github.com/okian/elove/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultMaxUpdateAttempts   = 5
	defaultDedupeSize          = 50000
	defaultMaxLeaderboardLimit = 100
	defaultHistoryLimit        = 50
	defaultMaxHistoryLimit     = 200
)

// Service implements the API dependencies for the rating system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	engine   *rating.Engine
	resolver *matching.Resolver
	deduper  dedupe.Deduper
	validate *validator.Validate

	// Configuration
	initialScore        float64
	maxUpdateAttempts   int
	dedupeSize          int
	maxLeaderboardLimit int
	defaultHistoryLimit int
	maxHistoryLimit     int
	now                 func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects the persistence backend. Without it Start creates a MemoryStore.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithEngine sets the rating engine.
func WithEngine(engine *rating.Engine) Option {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithInitialScore sets the score assigned to new participants.
func WithInitialScore(score float64) Option {
	return func(s *Service) {
		if score >= model.MinScore && score <= model.MaxScore {
			s.initialScore = score
		}
	}
}

// WithMaxUpdateAttempts bounds retries of a conflicting score update.
func WithMaxUpdateAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUpdateAttempts = n
		}
	}
}

// WithDedupeSize sets the size of the idempotency-key cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLeaderboardLimit caps the leaderboard page size.
func WithLeaderboardLimit(max int) Option {
	return func(s *Service) {
		if max > 0 {
			s.maxLeaderboardLimit = max
		}
	}
}

// WithHistoryLimits sets the default and maximum history page sizes.
func WithHistoryLimits(def, max int) Option {
	return func(s *Service) {
		if def > 0 && max >= def {
			s.defaultHistoryLimit = def
			s.maxHistoryLimit = max
		}
	}
}

// WithClock overrides the participant creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		engine:              rating.NewEngine(),
		initialScore:        model.DefaultScore,
		maxUpdateAttempts:   defaultMaxUpdateAttempts,
		dedupeSize:          defaultDedupeSize,
		maxLeaderboardLimit: defaultMaxLeaderboardLimit,
		defaultHistoryLimit: defaultHistoryLimit,
		maxHistoryLimit:     defaultMaxHistoryLimit,
		now:                 func() time.Time { return time.Now().UTC() },
		validate:            validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
		s.logger.Info(ctx, "using in-memory store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.resolver = matching.NewResolver(s.store, matching.WithLogger(s.logger.Named("matching")))

	metrics.UpdateParticipantsTotal(s.store.Count(ctx))

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Float64("baseK", s.engine.BaseK()),
		logger.Float64("initialScore", s.initialScore),
		logger.Int("maxUpdateAttempts", s.maxUpdateAttempts),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop releases the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error(context.Background(), "failed to close store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(context.Background(), "rating service stopped")
}

// NewParticipant is the input for CreateParticipant.
type NewParticipant struct {
	Name string `json:"name" validate:"required,max=100"`
	Age  int    `json:"age" validate:"gte=18,lte=120"`
	Bio  string `json:"bio" validate:"max=500"`
}

// Profile is a participant with its tier label.
type Profile struct {
	model.Participant
	Tier string `json:"tier"`
}

func profileOf(p model.Participant) Profile {
	return Profile{Participant: p, Tier: rating.Tier(p.Score)}
}

// CreateParticipant registers a participant at the initial score.
func (s *Service) CreateParticipant(ctx context.Context, in NewParticipant) (Profile, error) {
	const op = "service.create_participant"
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return Profile{}, errs.WrapKind(op, errs.ErrValidation, err)
	}

	p := model.Participant{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Age:       in.Age,
		Bio:       in.Bio,
		Score:     s.initialScore,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateParticipant(ctx, p); err != nil {
		return Profile{}, errs.Wrap(op, err)
	}

	s.logger.Info(ctx, "participant created", logger.String("participantID", p.ID))
	return profileOf(p), nil
}

// GetParticipant returns a participant by id.
func (s *Service) GetParticipant(ctx context.Context, id string) (Profile, error) {
	const op = "service.get_participant"
	if !model.ValidID(id) {
		return Profile{}, errs.Newf(op, errs.ErrValidation, "invalid participant id")
	}
	p, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return Profile{}, errs.Wrap(op, err)
	}
	return profileOf(p), nil
}

// ListParticipants returns every participant by score desc.
func (s *Service) ListParticipants(ctx context.Context) ([]Profile, error) {
	ps, err := s.store.ListParticipants(ctx)
	if err != nil {
		return nil, errs.Wrap("service.list_participants", err)
	}
	out := make([]Profile, len(ps))
	for i, p := range ps {
		out[i] = profileOf(p)
	}
	return out, nil
}

// RatingRequest describes one interaction between two participants.
type RatingRequest struct {
	FromID     string
	ToID       string
	Value      int
	IsPositive bool
}

func (r RatingRequest) validate(op string) error {
	switch {
	case !model.ValidID(r.FromID):
		return errs.Newf(op, errs.ErrValidation, "invalid from_id")
	case !model.ValidID(r.ToID):
		return errs.Newf(op, errs.ErrValidation, "invalid to_id")
	case r.FromID == r.ToID:
		return errs.Newf(op, errs.ErrValidation, "a participant cannot rate themselves")
	}
	return errs.Wrap(op, rating.ValidateValue(r.Value))
}

// ComputeRatingUpdate applies the engine to raw scores.
func (s *Service) ComputeRatingUpdate(fromScore, toScore float64, value int, isPositive bool) (rating.Result, error) {
	return s.engine.Update(rating.Input{FromScore: fromScore, ToScore: toScore, Value: value, IsPositive: isPositive})
}

// PreviewRatingUpdate is ComputeRatingUpdate under the name callers use for
// what-if queries; nothing is persisted.
func (s *Service) PreviewRatingUpdate(fromScore, toScore float64, value int, isPositive bool) (rating.Result, error) {
	return s.ComputeRatingUpdate(fromScore, toScore, value, isPositive)
}

// Preview is the projected effect of a rating on two stored participants.
type Preview struct {
	FromID           string  `json:"from_id"`
	ToID             string  `json:"to_id"`
	CurrentFromScore float64 `json:"current_from_score"`
	CurrentToScore   float64 `json:"current_to_score"`
	rating.Result
}

// PreviewRating projects req against the participants' current scores.
func (s *Service) PreviewRating(ctx context.Context, req RatingRequest) (Preview, error) {
	const op = "service.preview_rating"
	if err := req.validate(op); err != nil {
		return Preview{}, err
	}
	from, to, err := s.pair(ctx, op, req)
	if err != nil {
		return Preview{}, err
	}
	res, err := s.PreviewRatingUpdate(from.Score, to.Score, req.Value, req.IsPositive)
	if err != nil {
		return Preview{}, errs.Wrap(op, err)
	}
	return Preview{
		FromID:           from.ID,
		ToID:             to.ID,
		CurrentFromScore: from.Score,
		CurrentToScore:   to.Score,
		Result:           res,
	}, nil
}

// RatingOutcome is the result of a recorded interaction.
type RatingOutcome struct {
	InteractionID     string  `json:"interaction_id"`
	FromID            string  `json:"from_id"`
	ToID              string  `json:"to_id"`
	PreviousFromScore float64 `json:"previous_from_score"`
	PreviousToScore   float64 `json:"previous_to_score"`
	rating.Result
	matching.Outcome
}

// RecordInteractionAndResolve validates req, updates both scores atomically,
// appends the interaction and, for positive ones, resolves a mutual match.
//
// Score writes use optimistic versioning: a concurrent update to either
// participant makes the write fail with errs.ErrConflict, and the whole
// read-compute-write is retried up to the configured attempts. The append
// happens after the scores land; if it or match resolution fails the scores
// stay updated and the returned error matches errs.ErrCommitted.
func (s *Service) RecordInteractionAndResolve(ctx context.Context, req RatingRequest) (RatingOutcome, error) {
	const op = "service.record_interaction"
	start := time.Now()
	if err := req.validate(op); err != nil {
		metrics.RecordErrorByComponent("service", "validation")
		return RatingOutcome{}, err
	}

	var (
		from, to model.Participant
		res      rating.Result
		err      error
	)
	for attempt := 1; ; attempt++ {
		from, to, err = s.pair(ctx, op, req)
		if err != nil {
			return RatingOutcome{}, err
		}
		res, err = s.engine.Update(rating.Input{
			FromScore: from.Score, ToScore: to.Score, Value: req.Value, IsPositive: req.IsPositive,
		})
		if err != nil {
			return RatingOutcome{}, errs.Wrap(op, err)
		}

		err = s.store.UpdateScores(ctx,
			model.ScoreUpdate{ID: from.ID, Score: res.FromScore, ExpectedVersion: from.Version},
			model.ScoreUpdate{ID: to.ID, Score: res.ToScore, ExpectedVersion: to.Version},
		)
		if err == nil {
			break
		}
		if !errors.Is(err, errs.ErrConflict) {
			metrics.RecordErrorByComponent("service", "update_scores")
			return RatingOutcome{}, errs.Wrap(op, err)
		}
		metrics.RecordVersionConflict("participant")
		if attempt >= s.maxUpdateAttempts {
			s.logger.Warn(ctx, "giving up after repeated score conflicts",
				logger.String("fromID", req.FromID),
				logger.String("toID", req.ToID),
				logger.Int("attempts", attempt),
			)
			return RatingOutcome{}, errs.Wrap(op, err)
		}
		s.logger.Debug(ctx, "score conflict, retrying", logger.Int("attempt", attempt))
	}

	interactionID, err := s.store.AppendInteraction(ctx, model.Interaction{
		FromID:     req.FromID,
		ToID:       req.ToID,
		Value:      req.Value,
		IsPositive: req.IsPositive,
	})
	if err != nil {
		metrics.RecordErrorByComponent("service", "append_interaction")
		s.logger.Error(ctx, "scores updated but interaction not recorded",
			logger.String("fromID", req.FromID),
			logger.String("toID", req.ToID),
			logger.Error(err),
		)
		return RatingOutcome{}, errs.Committed(op, err)
	}

	out := RatingOutcome{
		InteractionID:     interactionID,
		FromID:            req.FromID,
		ToID:              req.ToID,
		PreviousFromScore: from.Score,
		PreviousToScore:   to.Score,
		Result:            res,
	}
	if req.IsPositive {
		out.Outcome, err = s.resolver.OnPositiveInteraction(ctx, req.FromID, req.ToID)
		if err != nil {
			metrics.RecordErrorByComponent("service", "resolve_match")
			s.logger.Error(ctx, "interaction recorded but match not resolved",
				logger.String("interactionID", interactionID),
				logger.Error(err),
			)
			return RatingOutcome{}, errs.Committed(op, err)
		}
	}

	metrics.RecordRating(req.IsPositive, float64(time.Since(start).Microseconds())/1000)
	metrics.RecordScoreDelta(res.FromDelta)
	metrics.RecordScoreDelta(res.ToDelta)
	s.logger.Debug(ctx, "interaction recorded",
		logger.String("interactionID", interactionID),
		logger.Float64("fromDelta", res.FromDelta),
		logger.Float64("toDelta", res.ToDelta),
		logger.Bool("mutualMatch", out.Mutual),
	)
	return out, nil
}

// pair reads both sides of req.
func (s *Service) pair(ctx context.Context, op string, req RatingRequest) (model.Participant, model.Participant, error) {
	from, err := s.store.GetParticipant(ctx, req.FromID)
	if err != nil {
		return model.Participant{}, model.Participant{}, errs.Wrap(op, err)
	}
	to, err := s.store.GetParticipant(ctx, req.ToID)
	if err != nil {
		return model.Participant{}, model.Participant{}, errs.Wrap(op, err)
	}
	return from, to, nil
}

// Discover returns the participants id has not yet evaluated, best first.
func (s *Service) Discover(ctx context.Context, id string) ([]Profile, error) {
	const op = "service.discover"
	if _, err := s.GetParticipant(ctx, id); err != nil {
		return nil, errs.Wrap(op, err)
	}
	all, err := s.store.ListParticipants(ctx)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	given, err := s.store.InteractionsFrom(ctx, id)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	candidates := discovery.Candidates(id, all, given)
	out := make([]Profile, len(candidates))
	for i, p := range candidates {
		out[i] = profileOf(p)
	}
	return out, nil
}

// ParticipantStats is a participant's interaction summary.
type ParticipantStats struct {
	ParticipantID string  `json:"participant_id"`
	Score         float64 `json:"score"`
	Tier          string  `json:"tier"`
	model.Stats
}

// Stats aggregates id's given and received interactions.
func (s *Service) Stats(ctx context.Context, id string) (ParticipantStats, error) {
	const op = "service.stats"
	p, err := s.GetParticipant(ctx, id)
	if err != nil {
		return ParticipantStats{}, errs.Wrap(op, err)
	}
	given, err := s.store.InteractionsFrom(ctx, id)
	if err != nil {
		return ParticipantStats{}, errs.Wrap(op, err)
	}
	received, err := s.store.InteractionsTo(ctx, id)
	if err != nil {
		return ParticipantStats{}, errs.Wrap(op, err)
	}
	return ParticipantStats{
		ParticipantID: id,
		Score:         p.Score,
		Tier:          p.Tier,
		Stats:         stats.Compute(given, received),
	}, nil
}

// History merges id's given and received interactions newest first.
// A zero limit selects the default page size.
func (s *Service) History(ctx context.Context, id string, limit int) ([]model.HistoryEntry, error) {
	const op = "service.history"
	if limit == 0 {
		limit = s.defaultHistoryLimit
	}
	if limit < 1 || limit > s.maxHistoryLimit {
		return nil, errs.Newf(op, errs.ErrValidation, "limit must be between 1 and %d", s.maxHistoryLimit)
	}
	if _, err := s.GetParticipant(ctx, id); err != nil {
		return nil, errs.Wrap(op, err)
	}
	given, err := s.store.InteractionsFrom(ctx, id)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	received, err := s.store.InteractionsTo(ctx, id)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	return mergeHistory(given, received, limit), nil
}

// mergeHistory merges two newest-first lists, keeping at most limit entries.
func mergeHistory(given, received []model.Interaction, limit int) []model.HistoryEntry {
	out := make([]model.HistoryEntry, 0, min(limit, len(given)+len(received)))
	i, j := 0, 0
	for len(out) < limit && (i < len(given) || j < len(received)) {
		if j >= len(received) || (i < len(given) && !given[i].CreatedAt.Before(received[j].CreatedAt)) {
			out = append(out, model.HistoryEntry{Interaction: given[i], Direction: model.Given})
			i++
			continue
		}
		out = append(out, model.HistoryEntry{Interaction: received[j], Direction: model.Received})
		j++
	}
	return out
}

// MatchView is a match seen from one participant, with the partner resolved.
type MatchView struct {
	model.Match
	PartnerID string   `json:"partner_id"`
	Partner   *Profile `json:"partner,omitempty"`
}

// Matches returns id's matches newest first.
func (s *Service) Matches(ctx context.Context, id string) ([]MatchView, error) {
	const op = "service.matches"
	if _, err := s.GetParticipant(ctx, id); err != nil {
		return nil, errs.Wrap(op, err)
	}
	ms, err := s.store.MatchesFor(ctx, id)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	out := make([]MatchView, len(ms))
	for i, m := range ms {
		out[i] = MatchView{Match: m, PartnerID: m.Other(id)}
		partner, err := s.store.GetParticipant(ctx, out[i].PartnerID)
		switch {
		case err == nil:
			prof := profileOf(partner)
			out[i].Partner = &prof
		case errors.Is(err, errs.ErrNotFound):
		default:
			return nil, errs.Wrap(op, err)
		}
	}
	return out, nil
}

// Leaderboard returns the top participants with dense ranks: equal scores
// share a rank and the next distinct score takes the following one.
// A zero limit selects the maximum.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]model.RankedParticipant, error) {
	const op = "service.leaderboard"
	if limit == 0 {
		limit = s.maxLeaderboardLimit
	}
	if limit < 1 || limit > s.maxLeaderboardLimit {
		return nil, errs.Newf(op, errs.ErrValidation, "limit must be between 1 and %d", s.maxLeaderboardLimit)
	}
	ps, err := s.store.TopN(ctx, limit)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	return assignRanks(ps), nil
}

func assignRanks(ps []model.Participant) []model.RankedParticipant {
	out := make([]model.RankedParticipant, len(ps))
	rank := 0
	for i, p := range ps {
		if i == 0 || p.Score != ps[i-1].Score {
			rank++
		}
		out[i] = model.RankedParticipant{Rank: rank, Tier: rating.Tier(p.Score), Participant: p}
	}
	return out
}

// Summary aggregates scores across every participant.
func (s *Service) Summary(ctx context.Context) (model.Summary, error) {
	ps, err := s.store.ListParticipants(ctx)
	if err != nil {
		return model.Summary{}, errs.Wrap("service.summary", err)
	}
	return stats.Summarize(ps), nil
}

// SeenAndRecord atomically checks if an idempotency key was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordDuplicateRequest()
	}
	return seen
}

// Unrecord releases an idempotency key so the request can be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// Size returns the number of tracked idempotency keys.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Ready reports whether Start has completed.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
