package rating_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/elove/internal/domain/errs"
	"github.com/okian/elove/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

const tolerance = 1e-9

func TestExpectedScore(t *testing.T) {
	Convey("Given pairs of scores", t, func() {
		Convey("When the scores are equal", func() {
			So(rating.ExpectedScore(1200, 1200), ShouldAlmostEqual, 0.5, tolerance)
		})

		Convey("When one side is 400 points higher", func() {
			So(rating.ExpectedScore(1600, 1200), ShouldAlmostEqual, 10.0/11.0, tolerance)
		})

		Convey("When swapping sides over many random pairs", func() {
			rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test data
			for i := 0; i < 1000; i++ {
				a := -5000 + rng.Float64()*10000
				b := -5000 + rng.Float64()*10000
				So(rating.ExpectedScore(a, b)+rating.ExpectedScore(b, a), ShouldAlmostEqual, 1.0, 1e-12)
			}
		})
	})
}

func TestNormalizedValue(t *testing.T) {
	Convey("Given every valid value", t, func() {
		expected := map[int]float64{
			1: 0, 2: 1.0 / 9, 3: 2.0 / 9, 4: 3.0 / 9,
			5: 0.5, 6: 0.5,
			7: 0.625, 8: 0.75, 9: 0.875, 10: 1.0,
		}
		for v, want := range expected {
			So(rating.NormalizedValue(v), ShouldAlmostEqual, want, tolerance)
		}
	})
}

func TestActualScores(t *testing.T) {
	Convey("Given positive interactions", t, func() {
		from, to := rating.ActualScores(10, true)
		So(from, ShouldEqual, 1.0)
		So(to, ShouldEqual, 1.0)

		from, to = rating.ActualScores(7, true)
		So(from, ShouldEqual, 0.8)
		So(to, ShouldAlmostEqual, 0.825, tolerance)

		from, to = rating.ActualScores(6, true)
		So(from, ShouldEqual, 0.8)
		So(to, ShouldAlmostEqual, 0.7, tolerance)

		from, to = rating.ActualScores(2, true)
		So(from, ShouldEqual, 0.6)
		So(to, ShouldAlmostEqual, 1.0/9+0.2, tolerance)
	})

	Convey("Given non-positive interactions", t, func() {
		from, to := rating.ActualScores(9, false)
		So(from, ShouldEqual, 0.5)
		So(to, ShouldAlmostEqual, 0.875, tolerance)
	})
}

func TestKFactor(t *testing.T) {
	Convey("Given the default engine", t, func() {
		e := rating.NewEngine()

		So(e.BaseK(), ShouldEqual, 32)
		So(e.KFactor(1399.99), ShouldAlmostEqual, 32, tolerance)
		So(e.KFactor(1400), ShouldAlmostEqual, 25.6, tolerance)
		So(e.KFactor(1799.99), ShouldAlmostEqual, 25.6, tolerance)
		So(e.KFactor(1800), ShouldAlmostEqual, 19.2, tolerance)
	})

	Convey("Given a custom base K", t, func() {
		So(rating.NewEngine(rating.WithBaseK(16)).KFactor(1000), ShouldEqual, 16)
		So(rating.NewEngine(rating.WithBaseK(-1)).BaseK(), ShouldEqual, 32)
	})
}

func TestEngineUpdate(t *testing.T) {
	Convey("Given the default engine", t, func() {
		e := rating.NewEngine()

		Convey("When a strong positive rating is applied between equals", func() {
			res, err := e.Update(rating.Input{FromScore: 1200, ToScore: 1200, Value: 8, IsPositive: true})

			Convey("Then both scores rise by the documented amounts", func() {
				So(err, ShouldBeNil)
				So(res.FromScore, ShouldAlmostEqual, 1216.0, tolerance)
				So(res.ToScore, ShouldAlmostEqual, 1214.4, tolerance)
				So(res.FromDelta, ShouldAlmostEqual, 16.0, tolerance)
				So(res.ToDelta, ShouldAlmostEqual, 14.4, tolerance)
				So(res.FromTier, ShouldEqual, "Average")
				So(res.Impact, ShouldEqual, "Great match - Strong positive impact")
			})
		})

		Convey("When a low pass is applied between equals", func() {
			res, err := e.Update(rating.Input{FromScore: 1200, ToScore: 1200, Value: 3, IsPositive: false})

			Convey("Then the initiator is unchanged and the recipient drops", func() {
				So(err, ShouldBeNil)
				So(res.FromScore, ShouldAlmostEqual, 1200.0, tolerance)
				So(res.ToScore, ShouldAlmostEqual, 1200+32*(2.0/9-0.5), tolerance)
				So(res.ToScore, ShouldAlmostEqual, 1191.1, 0.05)
			})
		})

		Convey("When scores sit at the bounds", func() {
			high, err := e.Update(rating.Input{FromScore: 3000, ToScore: 100, Value: 10, IsPositive: true})
			So(err, ShouldBeNil)
			So(high.FromScore, ShouldBeLessThanOrEqualTo, 3000)

			low, err := e.Update(rating.Input{FromScore: 100, ToScore: 3000, Value: 1, IsPositive: false})
			So(err, ShouldBeNil)
			So(low.ToScore, ShouldBeGreaterThanOrEqualTo, 100)
		})

		Convey("When random valid updates are applied", func() {
			rng := rand.New(rand.NewSource(42)) //nolint:gosec // deterministic test data
			for i := 0; i < 2000; i++ {
				in := rating.Input{
					FromScore:  100 + rng.Float64()*2900,
					ToScore:    100 + rng.Float64()*2900,
					Value:      1 + rng.Intn(10),
					IsPositive: rng.Intn(2) == 0,
				}
				res, err := e.Update(in)
				So(err, ShouldBeNil)
				So(res.FromScore, ShouldBeBetweenOrEqual, 100, 3000)
				So(res.ToScore, ShouldBeBetweenOrEqual, 100, 3000)
			}
		})

		Convey("When the value is out of range", func() {
			for _, v := range []int{0, 11, -3} {
				_, err := e.Update(rating.Input{FromScore: 1200, ToScore: 1200, Value: v, IsPositive: true})
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			}
		})
	})
}

func TestTier(t *testing.T) {
	Convey("Given scores around each threshold", t, func() {
		So(rating.Tier(2000), ShouldEqual, "Elite")
		So(rating.Tier(1999.99), ShouldEqual, "Very Attractive")
		So(rating.Tier(1700), ShouldEqual, "Very Attractive")
		So(rating.Tier(1400), ShouldEqual, "Attractive")
		So(rating.Tier(1399.99), ShouldEqual, "Average")
		So(rating.Tier(1100), ShouldEqual, "Average")
		So(rating.Tier(800), ShouldEqual, "Below Average")
		So(rating.Tier(799.99), ShouldEqual, "Low")
		So(rating.Tier(100), ShouldEqual, "Low")
	})
}

func TestImpactDescription(t *testing.T) {
	Convey("Given each value bucket", t, func() {
		So(rating.ImpactDescription(10, true), ShouldEqual, "Exceptional match - Strong positive impact for both")
		So(rating.ImpactDescription(7, true), ShouldEqual, "Good match - Positive impact")
		So(rating.ImpactDescription(6, true), ShouldEqual, "Decent match - Moderate positive impact")
		So(rating.ImpactDescription(3, true), ShouldEqual, "Low-rated match - Slight positive impact")
		So(rating.ImpactDescription(1, false), ShouldEqual, "Very poor rating - Significant negative impact")
		So(rating.ImpactDescription(4, false), ShouldEqual, "Poor rating - Negative impact")
		So(rating.ImpactDescription(5, false), ShouldEqual, "Average rating - Neutral impact")
		So(rating.ImpactDescription(7, false), ShouldEqual, "Good rating - Slight positive impact")
		So(rating.ImpactDescription(9, false), ShouldEqual, "Great rating despite no match - Positive impact")
	})
}
