package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/elove/internal/domain/errs"
	"github.com/okian/elove/internal/domain/model"
	"github.com/okian/elove/pkg/metrics"
)

type pairKey struct{ a, b string }

// MemoryStore is an in-process Store. A single RWMutex serializes writers, so
// version checks and match creation are atomic.
type MemoryStore struct {
	mu  sync.RWMutex
	cfg storeConfig

	participants map[string]model.Participant
	index        scoreIndex

	interactions map[string]model.Interaction
	byFrom       map[string][]string // append order is chronological
	byTo         map[string][]string
	positive     map[pairKey]struct{}

	matches     map[string]model.Match
	matchByPair map[pairKey]string
	matchesBy   map[string][]string

	closed   bool
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore constructs an empty in-memory store with configuration options.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &MemoryStore{
		cfg:          cfg,
		participants: make(map[string]model.Participant),
		interactions: make(map[string]model.Interaction),
		byFrom:       make(map[string][]string),
		byTo:         make(map[string][]string),
		positive:     make(map[pairKey]struct{}),
		matches:      make(map[string]model.Match),
		matchByPair:  make(map[pairKey]string),
		matchesBy:    make(map[string][]string),
		stopChan:     make(chan struct{}),
	}
	s.startMetricsUpdater(ctx)
	return s
}

// CreateParticipant implements Store.
func (s *MemoryStore) CreateParticipant(ctx context.Context, p model.Participant) error {
	const op = "memstore.create_participant"
	defer observe("create_participant", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storageErr(op, ErrClosed)
	}
	if _, ok := s.participants[p.ID]; ok {
		return alreadyExists(op, p.ID)
	}
	s.participants[p.ID] = p
	s.index.put(p.ID, p.Score)
	metrics.UpdateParticipantsTotal(len(s.participants))
	return nil
}

// GetParticipant implements Store.
func (s *MemoryStore) GetParticipant(ctx context.Context, id string) (model.Participant, error) {
	defer observe("get_participant", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Participant{}, notFound("memstore.get_participant", "participant", id)
	}
	return p, nil
}

// ListParticipants implements Store.
func (s *MemoryStore) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	defer observe("list_participants", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rankedLocked(s.index.count()), nil
}

// TopN implements Store.
func (s *MemoryStore) TopN(ctx context.Context, n int) ([]model.Participant, error) {
	defer observe("top_n", time.Now())
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, errs.WrapKind("memstore.top_n", errs.ErrValidation, ErrInvalidLimit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rankedLocked(n), nil
}

func (s *MemoryStore) rankedLocked(limit int) []model.Participant {
	ids := s.index.top(limit)
	out := make([]model.Participant, len(ids))
	for i, id := range ids {
		out[i] = s.participants[id]
	}
	return out
}

// UpdateScores implements Store.
func (s *MemoryStore) UpdateScores(ctx context.Context, updates ...model.ScoreUpdate) error {
	const op = "memstore.update_scores"
	defer observe("update_scores", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storageErr(op, ErrClosed)
	}

	// Check every precondition before touching anything.
	for _, u := range updates {
		p, ok := s.participants[u.ID]
		if !ok {
			return notFound(op, "participant", u.ID)
		}
		if p.Version != u.ExpectedVersion {
			return versionConflict(op, u.ID, u.ExpectedVersion, p.Version)
		}
	}
	for _, u := range updates {
		p := s.participants[u.ID]
		s.index.move(p.ID, p.Score, u.Score)
		p.Score = u.Score
		p.Version++
		s.participants[u.ID] = p
	}
	return nil
}

// AppendInteraction implements Store.
func (s *MemoryStore) AppendInteraction(ctx context.Context, in model.Interaction) (string, error) {
	const op = "memstore.append_interaction"
	defer observe("append_interaction", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", storageErr(op, ErrClosed)
	}
	if in.ID == "" {
		in.ID = s.cfg.newID()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.cfg.now()
	}
	s.interactions[in.ID] = in
	s.byFrom[in.FromID] = append(s.byFrom[in.FromID], in.ID)
	s.byTo[in.ToID] = append(s.byTo[in.ToID], in.ID)
	if in.IsPositive {
		s.positive[pairKey{in.FromID, in.ToID}] = struct{}{}
	}
	return in.ID, nil
}

// InteractionsFrom implements Store.
func (s *MemoryStore) InteractionsFrom(ctx context.Context, id string) ([]model.Interaction, error) {
	defer observe("interactions_from", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newestFirstLocked(s.byFrom[id]), nil
}

// InteractionsTo implements Store.
func (s *MemoryStore) InteractionsTo(ctx context.Context, id string) ([]model.Interaction, error) {
	defer observe("interactions_to", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newestFirstLocked(s.byTo[id]), nil
}

func (s *MemoryStore) newestFirstLocked(ids []string) []model.Interaction {
	out := make([]model.Interaction, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, s.interactions[ids[i]])
	}
	return out
}

// HasPositive implements Store.
func (s *MemoryStore) HasPositive(ctx context.Context, fromID, toID string) (bool, error) {
	defer observe("has_positive", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.positive[pairKey{fromID, toID}]
	return ok, nil
}

// CreateMatchIfAbsent implements Store.
func (s *MemoryStore) CreateMatchIfAbsent(ctx context.Context, loID, hiID string) (bool, model.Match, error) {
	const op = "memstore.create_match"
	defer observe("create_match", time.Now())

	lo, hi := model.CanonicalPair(loID, hiID)
	key := pairKey{lo, hi}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, model.Match{}, storageErr(op, ErrClosed)
	}
	if id, ok := s.matchByPair[key]; ok {
		return false, s.matches[id], nil
	}
	m := model.Match{ID: s.cfg.newID(), LoID: lo, HiID: hi, CreatedAt: s.cfg.now()}
	s.matches[m.ID] = m
	s.matchByPair[key] = m.ID
	s.matchesBy[lo] = append(s.matchesBy[lo], m.ID)
	s.matchesBy[hi] = append(s.matchesBy[hi], m.ID)
	return true, m, nil
}

// MatchesFor implements Store.
func (s *MemoryStore) MatchesFor(ctx context.Context, id string) ([]model.Match, error) {
	defer observe("matches_for", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.matchesBy[id]
	out := make([]model.Match, 0, len(ids))
	for _, mid := range slices.Backward(ids) {
		out = append(out, s.matches[mid])
	}
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants)
}

// Close stops the background metrics updater.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopChan)
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// startMetricsUpdater periodically publishes the participant count.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.metricsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateParticipantsTotal(s.Count(ctx))
			}
		}
	}()
}
