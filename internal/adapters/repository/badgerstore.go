package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/okian/elove/internal/domain/discovery"
	"github.com/okian/elove/internal/domain/errs"
	"github.com/okian/elove/internal/domain/model"
	"github.com/okian/elove/pkg/metrics"
)

// Key layout. Identifiers never contain control characters, so 0x00 is a
// safe separator inside composite keys.
const (
	participantPrefix = "p/"
	interactionPrefix = "i/"
	fromIndexPrefix   = "if/"
	toIndexPrefix     = "it/"
	positivePrefix    = "pos/"
	matchPrefix       = "m/"
	matchPairPrefix   = "mp/"
	matchUserPrefix   = "mu/"
	sep               = "\x00"

	// seqKey holds the lease of the sequence that breaks ties between
	// index entries written in the same nanosecond.
	seqKey       = "seq/index"
	seqBandwidth = 128
)

func participantKey(id string) []byte { return []byte(participantPrefix + id) }
func interactionKey(id string) []byte { return []byte(interactionPrefix + id) }
func positiveKey(from, to string) []byte {
	return []byte(positivePrefix + from + sep + to)
}
func matchKey(id string) []byte { return []byte(matchPrefix + id) }
func matchPairKey(lo, hi string) []byte {
	return []byte(matchPairPrefix + lo + sep + hi)
}

// timeIndexKey orders entries under prefix+owner by creation time, then by
// write sequence.
func timeIndexKey(prefix, owner string, at time.Time, seq uint64, id string) []byte {
	return []byte(fmt.Sprintf("%s%s%s%020d%s%020d%s%s", prefix, owner, sep, at.UnixNano(), sep, seq, sep, id))
}

// BadgerStore is a durable Store on BadgerDB. Writes run in badger
// transactions; badger's own conflict detection backs the version checks.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
	cfg storeConfig
}

// OpenBadger opens (or creates) a BadgerDB at dir. An empty dir with
// inMemory set opens a purely in-memory database.
func OpenBadger(dir string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, storageErr("badgerstore.open", err)
	}
	return db, nil
}

// NewBadgerStore wraps an open database. The store owns db and closes it on Close.
func NewBadgerStore(db *badger.DB, opts ...Option) (*BadgerStore, error) {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		return nil, storageErr("badgerstore.new", err)
	}
	return &BadgerStore{db: db, seq: seq, cfg: cfg}, nil
}

// CreateParticipant implements Store.
func (s *BadgerStore) CreateParticipant(ctx context.Context, p model.Participant) error {
	const op = "badgerstore.create_participant"
	defer observe("create_participant", time.Now())

	err := s.db.Update(func(txn *badger.Txn) error {
		key := participantKey(p.ID)
		if _, err := txn.Get(key); err == nil {
			return alreadyExists(op, p.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, key, p)
	})
	if errs.KindOf(err) != nil {
		return err
	}
	if err != nil {
		return storageErr(op, err)
	}
	metrics.UpdateParticipantsTotal(s.Count(ctx))
	return nil
}

// GetParticipant implements Store.
func (s *BadgerStore) GetParticipant(ctx context.Context, id string) (model.Participant, error) {
	const op = "badgerstore.get_participant"
	defer observe("get_participant", time.Now())

	var p model.Participant
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, participantKey(id), &p)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Participant{}, notFound(op, "participant", id)
	}
	if err != nil {
		return model.Participant{}, storageErr(op, err)
	}
	return p, nil
}

// ListParticipants implements Store.
func (s *BadgerStore) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	const op = "badgerstore.list_participants"
	defer observe("list_participants", time.Now())

	var out []model.Participant
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(participantPrefix)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var p model.Participant
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(op, err)
	}
	discovery.SortByScore(out)
	return out, nil
}

// TopN implements Store.
func (s *BadgerStore) TopN(ctx context.Context, n int) ([]model.Participant, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, errs.WrapKind("badgerstore.top_n", errs.ErrValidation, ErrInvalidLimit)
	}
	all, err := s.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

// UpdateScores implements Store.
func (s *BadgerStore) UpdateScores(ctx context.Context, updates ...model.ScoreUpdate) error {
	const op = "badgerstore.update_scores"
	defer observe("update_scores", time.Now())

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, u := range updates {
			var p model.Participant
			if err := getJSON(txn, participantKey(u.ID), &p); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return notFound(op, "participant", u.ID)
				}
				return err
			}
			if p.Version != u.ExpectedVersion {
				return versionConflict(op, u.ID, u.ExpectedVersion, p.Version)
			}
			p.Score = u.Score
			p.Version++
			if err := setJSON(txn, participantKey(u.ID), p); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrConflict):
		return errs.WrapKind(op, errs.ErrConflict, err)
	case errs.KindOf(err) != nil:
		return err
	default:
		return storageErr(op, err)
	}
}

// AppendInteraction implements Store.
func (s *BadgerStore) AppendInteraction(ctx context.Context, in model.Interaction) (string, error) {
	const op = "badgerstore.append_interaction"
	defer observe("append_interaction", time.Now())

	if in.ID == "" {
		in.ID = s.cfg.newID()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.cfg.now()
	}
	seq, err := s.seq.Next()
	if err != nil {
		return "", storageErr(op, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, interactionKey(in.ID), in); err != nil {
			return err
		}
		if err := txn.Set(timeIndexKey(fromIndexPrefix, in.FromID, in.CreatedAt, seq, in.ID), []byte(in.ID)); err != nil {
			return err
		}
		if err := txn.Set(timeIndexKey(toIndexPrefix, in.ToID, in.CreatedAt, seq, in.ID), []byte(in.ID)); err != nil {
			return err
		}
		if in.IsPositive {
			return txn.Set(positiveKey(in.FromID, in.ToID), []byte(in.ID))
		}
		return nil
	})
	if err != nil {
		return "", storageErr(op, err)
	}
	return in.ID, nil
}

// InteractionsFrom implements Store.
func (s *BadgerStore) InteractionsFrom(ctx context.Context, id string) ([]model.Interaction, error) {
	defer observe("interactions_from", time.Now())
	return s.interactionsByIndex("badgerstore.interactions_from", fromIndexPrefix+id+sep)
}

// InteractionsTo implements Store.
func (s *BadgerStore) InteractionsTo(ctx context.Context, id string) ([]model.Interaction, error) {
	defer observe("interactions_to", time.Now())
	return s.interactionsByIndex("badgerstore.interactions_to", toIndexPrefix+id+sep)
}

// interactionsByIndex walks a time index in reverse, newest first.
func (s *BadgerStore) interactionsByIndex(op, prefix string) ([]model.Interaction, error) {
	var out []model.Interaction
	err := s.db.View(func(txn *badger.Txn) error {
		ids, err := reverseValues(txn, []byte(prefix))
		if err != nil {
			return err
		}
		out = make([]model.Interaction, 0, len(ids))
		for _, id := range ids {
			var in model.Interaction
			if err := getJSON(txn, interactionKey(id), &in); err != nil {
				return err
			}
			out = append(out, in)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

// HasPositive implements Store.
func (s *BadgerStore) HasPositive(ctx context.Context, fromID, toID string) (bool, error) {
	defer observe("has_positive", time.Now())

	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(positiveKey(fromID, toID))
		switch {
		case err == nil:
			found = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, storageErr("badgerstore.has_positive", err)
	}
	return found, nil
}

// CreateMatchIfAbsent implements Store. Two transactions racing on the same
// pair both read the pair key; badger aborts the later commit with
// ErrConflict and the retry observes the winner's match.
func (s *BadgerStore) CreateMatchIfAbsent(ctx context.Context, loID, hiID string) (bool, model.Match, error) {
	const op = "badgerstore.create_match"
	defer observe("create_match", time.Now())

	lo, hi := model.CanonicalPair(loID, hiID)
	var (
		created bool
		m       model.Match
		err     error
	)
	for attempt := 0; attempt < s.cfg.matchAttempts; attempt++ {
		created, m, err = s.createMatchOnce(lo, hi)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		metrics.RecordVersionConflict("match")
	}
	if err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return false, model.Match{}, errs.WrapKind(op, errs.ErrConflict, err)
		}
		return false, model.Match{}, storageErr(op, err)
	}
	return created, m, nil
}

func (s *BadgerStore) createMatchOnce(lo, hi string) (bool, model.Match, error) {
	var (
		created bool
		m       model.Match
	)
	seq, err := s.seq.Next()
	if err != nil {
		return false, m, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(matchPairKey(lo, hi))
		if err == nil {
			id, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			return getJSON(txn, matchKey(string(id)), &m)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		m = model.Match{ID: s.cfg.newID(), LoID: lo, HiID: hi, CreatedAt: s.cfg.now()}
		if err := setJSON(txn, matchKey(m.ID), m); err != nil {
			return err
		}
		if err := txn.Set(matchPairKey(lo, hi), []byte(m.ID)); err != nil {
			return err
		}
		if err := txn.Set(timeIndexKey(matchUserPrefix, lo, m.CreatedAt, seq, m.ID), []byte(m.ID)); err != nil {
			return err
		}
		if err := txn.Set(timeIndexKey(matchUserPrefix, hi, m.CreatedAt, seq, m.ID), []byte(m.ID)); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, m, err
}

// MatchesFor implements Store.
func (s *BadgerStore) MatchesFor(ctx context.Context, id string) ([]model.Match, error) {
	const op = "badgerstore.matches_for"
	defer observe("matches_for", time.Now())

	var out []model.Match
	err := s.db.View(func(txn *badger.Txn) error {
		ids, err := reverseValues(txn, []byte(matchUserPrefix+id+sep))
		if err != nil {
			return err
		}
		out = make([]model.Match, 0, len(ids))
		for _, mid := range ids {
			var m model.Match
			if err := getJSON(txn, matchKey(mid), &m); err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

// Count implements Store.
func (s *BadgerStore) Count(ctx context.Context) int {
	n := 0
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(participantPrefix)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return storageErr("badgerstore.close", err)
	}
	if err := s.db.Close(); err != nil {
		return storageErr("badgerstore.close", err)
	}
	return nil
}

// reverseValues returns the values under prefix in reverse key order.
func reverseValues(txn *badger.Txn, prefix []byte) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := append(append([]byte{}, prefix...), 0xFF)
	var out []string
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		v, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, string(v))
	}
	return out, nil
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}
