package loadgen

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCheckLeaderboard(t *testing.T) {
	row := func(rank int, score float64) RankedParticipant {
		return RankedParticipant{Participant: Participant{Score: score}, Rank: rank}
	}

	Convey("Given leaderboard rows", t, func() {
		Convey("Then dense ranks over sorted scores pass", func() {
			So(checkLeaderboard([]RankedParticipant{row(1, 1300), row(2, 1250), row(2, 1250), row(3, 1200)}), ShouldBeEmpty)
			So(checkLeaderboard(nil), ShouldBeEmpty)
		})

		Convey("Then unsorted, gapped or split ties are reported", func() {
			So(checkLeaderboard([]RankedParticipant{row(1, 1200), row(2, 1300)}), ShouldNotBeEmpty)
			So(checkLeaderboard([]RankedParticipant{row(1, 1300), row(3, 1200)}), ShouldNotBeEmpty)
			So(checkLeaderboard([]RankedParticipant{row(1, 1300), row(2, 1300)}), ShouldNotBeEmpty)
			So(checkLeaderboard([]RankedParticipant{row(2, 1300)}), ShouldNotBeEmpty)
		})
	})
}

func TestCheckScores(t *testing.T) {
	Convey("Given participants", t, func() {
		ps := []Participant{{ID: "ok", Score: 1200}, {ID: "low", Score: 99}, {ID: "high", Score: 3001}}

		Convey("Then out-of-bounds scores are reported", func() {
			So(len(checkScores(ps)), ShouldEqual, 2)
		})
	})
}

func TestEdgeSet(t *testing.T) {
	Convey("Given accepted positive ratings", t, func() {
		e := &edgeSet{}
		e.add("a", "b")
		e.add("b", "a")
		e.add("a", "c")

		Convey("Then only reciprocated pairs are mutual, once each", func() {
			m := e.mutualPairs()
			So(len(m), ShouldEqual, 1)
			_, ok := m[[2]string{"a", "b"}]
			So(ok, ShouldBeTrue)
		})
	})
}
