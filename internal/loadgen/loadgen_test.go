package loadgen_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/elove/internal/adapters/http/api"
	service "github.com/okian/elove/internal/app"
	"github.com/okian/elove/internal/loadgen"
	"github.com/okian/elove/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running API", t, func() {
		ctx := context.Background()
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		ts := httptest.NewServer(api.NewServer(svc).Routes())
		defer ts.Close()

		cfg := loadgen.DefaultConfig()
		cfg.BaseURL = ts.URL
		cfg.Participants = 12
		cfg.Ratings = 150
		cfg.ReciprocalRate = 0.6
		cfg.ReplayRate = 0.2
		cfg.Workers = 6
		cfg.Timeout = 5 * time.Second
		cfg.TopN = 10

		Convey("When a load run completes", func() {
			stats, err := loadgen.Run(ctx, cfg)

			Convey("Then the state verifies and every replay was rejected", func() {
				So(err, ShouldBeNil)
				So(stats.ParticipantsCreated, ShouldEqual, 12)
				So(stats.RatingsSubmitted, ShouldBeGreaterThanOrEqualTo, 150)
				So(stats.RatingsAccepted+stats.RatingsFailed, ShouldEqual, stats.RatingsSubmitted)
				So(stats.ReplaysAccepted, ShouldEqual, 0)
				So(stats.ReplaysRejected, ShouldBeGreaterThan, 0)
				So(stats.MatchesFound, ShouldEqual, stats.MatchesExpected)
				So(stats.MatchesExpected, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the service is unreachable", func() {
			cfg.BaseURL = "http://127.0.0.1:1"
			_, err := loadgen.Run(ctx, cfg)

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "health check")
			})
		})
	})

	Convey("Given an invalid configuration", t, func() {
		cfg := loadgen.DefaultConfig()
		cfg.Participants = 1

		Convey("Then Run refuses to start", func() {
			_, err := loadgen.Run(context.Background(), cfg)
			So(errors.Is(err, loadgen.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestPlan(t *testing.T) {
	Convey("Given a seeded configuration", t, func() {
		cfg := loadgen.DefaultConfig()
		cfg.Ratings = 200
		cfg.ReciprocalRate = 1
		ids := []string{"a", "b", "c", "d"}

		Convey("When a plan is built twice", func() {
			first := loadgen.Plan(cfg, ids)
			second := loadgen.Plan(cfg, ids)

			Convey("Then the ratings are the same apart from keys", func() {
				So(len(first), ShouldEqual, len(second))
				for i := range first {
					So(first[i].FromID, ShouldEqual, second[i].FromID)
					So(first[i].Value, ShouldEqual, second[i].Value)
				}
			})

			Convey("Then jobs are valid and keys unique", func() {
				keys := make(map[string]bool)
				positives := 0
				for _, j := range first {
					So(j.FromID, ShouldNotEqual, j.ToID)
					So(j.Value, ShouldBeBetweenOrEqual, 1, 10)
					So(keys[j.Key], ShouldBeFalse)
					keys[j.Key] = true
					if j.Positive {
						positives++
					}
				}
				So(len(first), ShouldBeGreaterThan, cfg.Ratings)
				So(positives, ShouldBeGreaterThan, 0)
			})
		})
	})
}
