package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/elove/internal/adapters/repository"
	service "github.com/okian/elove/internal/app"
	"github.com/okian/elove/internal/domain/errs"
	"github.com/okian/elove/internal/domain/model"
	"github.com/okian/elove/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func newStarted(ctx context.Context, opts ...service.Option) *service.Service {
	svc := service.New(opts...)
	So(svc.Start(ctx), ShouldBeNil)
	return svc
}

func create(ctx context.Context, svc *service.Service, name string) service.Profile {
	p, err := svc.CreateParticipant(ctx, service.NewParticipant{Name: name, Age: 30})
	So(err, ShouldBeNil)
	return p
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it is not ready until started", func() {
			So(svc.Ready(), ShouldBeFalse)
			So(svc.Size(), ShouldEqual, 0)
		})

		Convey("When starting the service twice", func() {
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it is ready and stops cleanly", func() {
				So(svc.Ready(), ShouldBeTrue)
				svc.Stop()
				So(svc.Ready(), ShouldBeFalse)
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}

func TestService_Participants(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newStarted(ctx, service.WithInitialScore(1250))
		defer svc.Stop()

		Convey("When creating a participant", func() {
			p, err := svc.CreateParticipant(ctx, service.NewParticipant{Name: "  Ada ", Age: 29, Bio: "hi"})

			Convey("Then it starts at the initial score with a tier", func() {
				So(err, ShouldBeNil)
				So(p.ID, ShouldNotBeEmpty)
				So(p.Name, ShouldEqual, "Ada")
				So(p.Score, ShouldEqual, 1250)
				So(p.Tier, ShouldEqual, "Average")
				So(p.Version, ShouldEqual, 0)

				got, err := svc.GetParticipant(ctx, p.ID)
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "Ada")
			})
		})

		Convey("When the input is invalid", func() {
			cases := []service.NewParticipant{
				{Name: "", Age: 30},
				{Name: "   ", Age: 30},
				{Name: "Kid", Age: 17},
				{Name: "Elder", Age: 121},
				{Name: "Verbose", Age: 30, Bio: string(make([]byte, 501))},
			}

			Convey("Then each is rejected as validation", func() {
				for _, in := range cases {
					_, err := svc.CreateParticipant(ctx, in)
					So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				}
			})
		})

		Convey("When reading unknown or malformed ids", func() {
			_, notFound := svc.GetParticipant(ctx, "nobody")
			_, invalid := svc.GetParticipant(ctx, "")

			Convey("Then the error kinds differ", func() {
				So(errors.Is(notFound, errs.ErrNotFound), ShouldBeTrue)
				So(errors.Is(invalid, errs.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestService_RecordInteraction(t *testing.T) {
	Convey("Given two participants at 1200", t, func() {
		ctx := context.Background()
		svc := newStarted(ctx)
		defer svc.Stop()
		a := create(ctx, svc, "a")
		b := create(ctx, svc, "b")

		Convey("When a rates b 8 with a positive signal", func() {
			out, err := svc.RecordInteractionAndResolve(ctx, service.RatingRequest{
				FromID: a.ID, ToID: b.ID, Value: 8, IsPositive: true,
			})

			Convey("Then both scores move by the Elo rule and nothing matches yet", func() {
				So(err, ShouldBeNil)
				So(out.InteractionID, ShouldNotBeEmpty)
				So(out.PreviousFromScore, ShouldEqual, 1200)
				So(out.FromScore, ShouldAlmostEqual, 1216.0, 1e-9)
				So(out.ToScore, ShouldAlmostEqual, 1214.4, 1e-9)
				So(out.Impact, ShouldEqual, "Great match - Strong positive impact")
				So(out.Mutual, ShouldBeFalse)

				stored, _ := svc.GetParticipant(ctx, a.ID)
				So(stored.Score, ShouldAlmostEqual, 1216.0, 1e-9)
				So(stored.Version, ShouldEqual, 1)
			})

			Convey("And b answers positively", func() {
				back, err := svc.RecordInteractionAndResolve(ctx, service.RatingRequest{
					FromID: b.ID, ToID: a.ID, Value: 9, IsPositive: true,
				})

				Convey("Then a match is created once", func() {
					So(err, ShouldBeNil)
					So(back.Mutual, ShouldBeTrue)
					So(back.Created, ShouldBeTrue)

					again, err := svc.RecordInteractionAndResolve(ctx, service.RatingRequest{
						FromID: a.ID, ToID: b.ID, Value: 7, IsPositive: true,
					})
					So(err, ShouldBeNil)
					So(again.Mutual, ShouldBeTrue)
					So(again.Created, ShouldBeFalse)
					So(again.MatchID, ShouldEqual, back.MatchID)

					matches, err := svc.Matches(ctx, a.ID)
					So(err, ShouldBeNil)
					So(len(matches), ShouldEqual, 1)
					So(matches[0].PartnerID, ShouldEqual, b.ID)
					So(matches[0].Partner, ShouldNotBeNil)
					So(matches[0].Partner.Name, ShouldEqual, "b")
				})
			})
		})

		Convey("When a passes on b with a 3", func() {
			out, err := svc.RecordInteractionAndResolve(ctx, service.RatingRequest{
				FromID: a.ID, ToID: b.ID, Value: 3, IsPositive: false,
			})

			Convey("Then only b drops", func() {
				So(err, ShouldBeNil)
				So(out.FromScore, ShouldAlmostEqual, 1200.0, 1e-9)
				So(out.ToScore, ShouldAlmostEqual, 1191.1, 0.05)
				So(out.Mutual, ShouldBeFalse)
			})
		})

		Convey("When the request is invalid", func() {
			reqs := []service.RatingRequest{
				{FromID: a.ID, ToID: b.ID, Value: 0},
				{FromID: a.ID, ToID: b.ID, Value: 11},
				{FromID: a.ID, ToID: a.ID, Value: 5},
				{FromID: "", ToID: b.ID, Value: 5},
			}

			Convey("Then nothing is written", func() {
				for _, req := range reqs {
					_, err := svc.RecordInteractionAndResolve(ctx, req)
					So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				}
				history, _ := svc.History(ctx, a.ID, 0)
				So(history, ShouldBeEmpty)
				stored, _ := svc.GetParticipant(ctx, a.ID)
				So(stored.Version, ShouldEqual, 0)
			})
		})

		Convey("When the other side does not exist", func() {
			_, err := svc.RecordInteractionAndResolve(ctx, service.RatingRequest{FromID: a.ID, ToID: "ghost", Value: 5})

			Convey("Then not found is reported", func() {
				So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

// conflictingStore fails the first n score writes with a version conflict.
type conflictingStore struct {
	repository.Store
	remaining atomic.Int32
	calls     atomic.Int32
}

func (c *conflictingStore) UpdateScores(ctx context.Context, updates ...model.ScoreUpdate) error {
	c.calls.Add(1)
	if c.remaining.Add(-1) >= 0 {
		return errs.New("test.update_scores", errs.ErrConflict)
	}
	return c.Store.UpdateScores(ctx, updates...)
}

func TestService_ConflictRetry(t *testing.T) {
	Convey("Given a store that reports version conflicts", t, func() {
		ctx := context.Background()
		store := &conflictingStore{Store: repository.NewMemoryStore(ctx)}
		svc := newStarted(ctx, service.WithStore(store), service.WithMaxUpdateAttempts(3))
		defer svc.Stop()
		a := create(ctx, svc, "a")
		b := create(ctx, svc, "b")
		req := service.RatingRequest{FromID: a.ID, ToID: b.ID, Value: 8, IsPositive: true}

		Convey("When fewer conflicts than attempts occur", func() {
			store.remaining.Store(2)
			out, err := svc.RecordInteractionAndResolve(ctx, req)

			Convey("Then the write eventually succeeds", func() {
				So(err, ShouldBeNil)
				So(store.calls.Load(), ShouldEqual, 3)
				So(out.FromScore, ShouldAlmostEqual, 1216.0, 1e-9)
			})
		})

		Convey("When every attempt conflicts", func() {
			store.remaining.Store(10)
			_, err := svc.RecordInteractionAndResolve(ctx, req)

			Convey("Then the conflict surfaces and no interaction is logged", func() {
				So(errors.Is(err, errs.ErrConflict), ShouldBeTrue)
				So(errors.Is(err, errs.ErrCommitted), ShouldBeFalse)
				So(store.calls.Load(), ShouldEqual, 3)
				history, _ := svc.History(ctx, a.ID, 0)
				So(history, ShouldBeEmpty)
			})
		})
	})
}

// failingAfterScores lets score writes through and fails the steps after them.
type failingAfterScores struct {
	repository.Store
	failAppend bool
}

func (f failingAfterScores) AppendInteraction(ctx context.Context, in model.Interaction) (string, error) {
	if f.failAppend {
		return "", errs.Newf("test.append_interaction", errs.ErrStorage, "log full")
	}
	return f.Store.AppendInteraction(ctx, in)
}

func (failingAfterScores) HasPositive(context.Context, string, string) (bool, error) {
	return false, errs.Newf("test.has_positive", errs.ErrStorage, "index unavailable")
}

func TestService_CommittedFailures(t *testing.T) {
	Convey("Given a store that fails after scores are written", t, func() {
		ctx := context.Background()
		mem := repository.NewMemoryStore(ctx)

		Convey("When match resolution fails on a positive rating", func() {
			svc := newStarted(ctx, service.WithStore(failingAfterScores{Store: mem}))
			defer svc.Stop()
			a := create(ctx, svc, "a")
			b := create(ctx, svc, "b")
			_, err := svc.RecordInteractionAndResolve(ctx, service.RatingRequest{FromID: a.ID, ToID: b.ID, Value: 8, IsPositive: true})

			Convey("Then the error is marked committed and keeps its storage kind", func() {
				So(errors.Is(err, errs.ErrCommitted), ShouldBeTrue)
				So(errs.KindOf(err), ShouldEqual, errs.ErrStorage)
				got, _ := svc.GetParticipant(ctx, a.ID)
				So(got.Score, ShouldAlmostEqual, 1216.0, 1e-9)
			})
		})

		Convey("When the interaction cannot be appended", func() {
			svc := newStarted(ctx, service.WithStore(failingAfterScores{Store: mem, failAppend: true}))
			defer svc.Stop()
			a := create(ctx, svc, "a")
			b := create(ctx, svc, "b")
			_, err := svc.RecordInteractionAndResolve(ctx, service.RatingRequest{FromID: a.ID, ToID: b.ID, Value: 3, IsPositive: false})

			Convey("Then the error is marked committed", func() {
				So(errors.Is(err, errs.ErrCommitted), ShouldBeTrue)
			})
		})

		Convey("When the request is invalid", func() {
			svc := newStarted(ctx, service.WithStore(failingAfterScores{Store: mem}))
			defer svc.Stop()
			_, err := svc.RecordInteractionAndResolve(ctx, service.RatingRequest{FromID: "x", ToID: "y", Value: 0})

			Convey("Then nothing was committed", func() {
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, errs.ErrCommitted), ShouldBeFalse)
			})
		})
	})
}

func TestService_Preview(t *testing.T) {
	Convey("Given two stored participants", t, func() {
		ctx := context.Background()
		svc := newStarted(ctx)
		defer svc.Stop()
		a := create(ctx, svc, "a")
		b := create(ctx, svc, "b")

		Convey("When previewing a rating", func() {
			p, err := svc.PreviewRating(ctx, service.RatingRequest{FromID: a.ID, ToID: b.ID, Value: 8, IsPositive: true})

			Convey("Then the projection is returned and nothing changes", func() {
				So(err, ShouldBeNil)
				So(p.CurrentFromScore, ShouldEqual, 1200)
				So(p.FromScore, ShouldAlmostEqual, 1216.0, 1e-9)
				So(p.ToDelta, ShouldAlmostEqual, 14.4, 1e-9)

				stored, _ := svc.GetParticipant(ctx, a.ID)
				So(stored.Score, ShouldEqual, 1200)
				So(stored.Version, ShouldEqual, 0)
			})
		})

		Convey("When previewing raw scores", func() {
			res, err := svc.PreviewRatingUpdate(1200, 1200, 3, false)
			_, bad := svc.ComputeRatingUpdate(1200, 1200, 42, true)

			Convey("Then the engine result is returned", func() {
				So(err, ShouldBeNil)
				So(res.ToScore, ShouldAlmostEqual, 1191.1, 0.05)
				So(errors.Is(bad, errs.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestService_DiscoverStatsHistory(t *testing.T) {
	Convey("Given a small community", t, func() {
		ctx := context.Background()
		tick := 0
		clock := func() time.Time {
			tick++
			return time.Date(2025, 3, 1, 12, 0, tick, 0, time.UTC)
		}
		svc := newStarted(ctx, service.WithStore(repository.NewMemoryStore(ctx, repository.WithClock(clock))))
		defer svc.Stop()
		a := create(ctx, svc, "a")
		b := create(ctx, svc, "b")
		c := create(ctx, svc, "c")
		d := create(ctx, svc, "d")

		record := func(from, to service.Profile, value int, positive bool) {
			_, err := svc.RecordInteractionAndResolve(ctx, service.RatingRequest{
				FromID: from.ID, ToID: to.ID, Value: value, IsPositive: positive,
			})
			So(err, ShouldBeNil)
		}
		record(a, b, 8, true)
		record(a, c, 2, false)
		record(d, a, 10, true)

		Convey("When a discovers", func() {
			got, err := svc.Discover(ctx, a.ID)

			Convey("Then only unevaluated others remain", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].ID, ShouldEqual, d.ID)
			})
		})

		Convey("When reading a's stats", func() {
			st, err := svc.Stats(ctx, a.ID)

			Convey("Then given and received sides are summarized", func() {
				So(err, ShouldBeNil)
				So(st.GivenCount, ShouldEqual, 2)
				So(st.ReceivedCount, ShouldEqual, 1)
				So(st.MatchesGiven, ShouldEqual, 1)
				So(st.MatchRateGiven, ShouldEqual, 50)
				So(st.AvgValueGiven, ShouldEqual, 5)
				So(st.MatchRateReceived, ShouldEqual, 100)
				So(st.Tier, ShouldNotBeEmpty)
			})
		})

		Convey("When reading a participant with no interactions", func() {
			fresh := create(ctx, svc, "fresh")
			st, err := svc.Stats(ctx, fresh.ID)

			Convey("Then every rate is zero", func() {
				So(err, ShouldBeNil)
				So(st.MatchRateGiven, ShouldEqual, 0)
				So(st.MatchRateReceived, ShouldEqual, 0)
				So(st.AvgValueReceived, ShouldEqual, 0)
			})
		})

		Convey("When reading a's history", func() {
			all, err := svc.History(ctx, a.ID, 0)
			two, _ := svc.History(ctx, a.ID, 2)
			_, tooMany := svc.History(ctx, a.ID, 500)
			_, missing := svc.History(ctx, "ghost", 10)

			Convey("Then entries are merged newest first and tagged", func() {
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 3)
				So(all[0].Direction, ShouldEqual, model.Received)
				So(all[0].FromID, ShouldEqual, d.ID)
				So(all[1].Direction, ShouldEqual, model.Given)
				So(all[1].ToID, ShouldEqual, c.ID)
				So(all[2].ToID, ShouldEqual, b.ID)
				So(len(two), ShouldEqual, 2)
				So(errors.Is(tooMany, errs.ErrValidation), ShouldBeTrue)
				So(errors.Is(missing, errs.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_LeaderboardAndSummary(t *testing.T) {
	Convey("Given an empty service", t, func() {
		ctx := context.Background()
		svc := newStarted(ctx, service.WithLeaderboardLimit(10))
		defer svc.Stop()

		Convey("When summarizing", func() {
			sum, err := svc.Summary(ctx)

			Convey("Then everything is zero", func() {
				So(err, ShouldBeNil)
				So(sum, ShouldResemble, model.Summary{})
			})
		})

		Convey("When participants tie on score", func() {
			a := create(ctx, svc, "a")
			create(ctx, svc, "b")
			create(ctx, svc, "c")
			_, err := svc.RecordInteractionAndResolve(ctx, service.RatingRequest{
				FromID: a.ID, ToID: create(ctx, svc, "d").ID, Value: 7, IsPositive: true,
			})
			So(err, ShouldBeNil)

			board, err := svc.Leaderboard(ctx, 0)

			Convey("Then ranks are dense", func() {
				So(err, ShouldBeNil)
				So(len(board), ShouldEqual, 4)
				ranks := []int{board[0].Rank, board[1].Rank, board[2].Rank, board[3].Rank}
				So(ranks, ShouldResemble, []int{1, 2, 3, 3})
				So(board[0].Tier, ShouldNotBeEmpty)

				sum, _ := svc.Summary(ctx)
				So(sum.TotalParticipants, ShouldEqual, 4)
				So(sum.LowestScore, ShouldEqual, 1200)
				So(sum.HighestScore, ShouldBeGreaterThan, 1200)
			})

			Convey("Then out-of-range limits are rejected", func() {
				_, err := svc.Leaderboard(ctx, 11)
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				_, err = svc.Leaderboard(ctx, -1)
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestService_Idempotency(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newStarted(ctx, service.WithDedupeSize(2))
		defer svc.Stop()

		Convey("When a key is replayed", func() {
			first := svc.SeenAndRecord(ctx, "key-1")
			second := svc.SeenAndRecord(ctx, "key-1")

			Convey("Then only the first is admitted", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(svc.Size(), ShouldEqual, 1)
			})

			Convey("And the key is released after a failure", func() {
				svc.Unrecord(ctx, "key-1")
				So(svc.SeenAndRecord(ctx, "key-1"), ShouldBeFalse)
			})
		})
	})
}
