package aggregate_test

import (
	"math"
	"testing"

	"github.com/okian/rankforge/internal/domain/aggregate"
	"github.com/okian/rankforge/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func scoresWithPP(pps ...float64) []*model.Score {
	scores := make([]*model.Score, len(pps))
	for i, pp := range pps {
		scores[i] = &model.Score{ID: int64(i + 1), PP: pp}
	}
	return scores
}

func TestPerformance(t *testing.T) {
	Convey("Given an empty score list", t, func() {
		Convey("Then weighted performance is zero", func() {
			So(aggregate.Performance(nil), ShouldEqual, 0)
		})
	})

	Convey("Given three scores sorted by pp", t, func() {
		scores := scoresWithPP(500, 300, 100)

		Convey("Then the decay ladder and bonus match the formula", func() {
			expected := 500*math.Pow(0.95, 0) +
				300*math.Pow(0.95, 1) +
				100*math.Pow(0.95, 2) +
				416.6667*(1-math.Pow(0.9994, 3))

			So(aggregate.Performance(scores), ShouldAlmostEqual, expected, 1e-9)
			So(aggregate.Performance(scores), ShouldAlmostEqual, 875.77, 0.01)
		})
	})

	Convey("Given a single score", t, func() {
		scores := scoresWithPP(250)

		Convey("Then it is weighted at full value plus the volume bonus", func() {
			expected := 250.0 + 416.6667*(1-math.Pow(0.9994, 1))
			So(aggregate.Performance(scores), ShouldAlmostEqual, expected, 1e-9)
		})
	})
}

func TestAccuracy(t *testing.T) {
	Convey("Given an empty score list", t, func() {
		Convey("Then weighted accuracy is zero", func() {
			So(aggregate.Accuracy(nil), ShouldEqual, 0)
		})
	})

	Convey("Given a single score with known accuracy", t, func() {
		scores := []*model.Score{{ID: 1, Acc: 0.9871}}

		Convey("Then the bonus normalizes it back to the raw value", func() {
			// With N=1 the bonus is 100/(20*(1-0.95)) = 100, so the
			// weighted accuracy equals the input accuracy.
			So(aggregate.Accuracy(scores), ShouldAlmostEqual, 0.9871, 1e-9)
		})
	})

	Convey("Given several scores with identical accuracy", t, func() {
		scores := []*model.Score{
			{ID: 1, Acc: 1.0},
			{ID: 2, Acc: 1.0},
			{ID: 3, Acc: 1.0},
		}

		Convey("Then the aggregate stays at that accuracy", func() {
			So(aggregate.Accuracy(scores), ShouldAlmostEqual, 1.0, 1e-9)
		})
	})
}

func TestLegacyLadder(t *testing.T) {
	Convey("Given legacy weights from the calculator", t, func() {
		values := []float64{100, 50}

		Convey("Then only the decay combination is applied", func() {
			So(aggregate.LegacyLadder(values), ShouldAlmostEqual, 100+50*0.95, 1e-9)
		})
	})

	Convey("Given no weights", t, func() {
		So(aggregate.LegacyLadder(nil), ShouldEqual, 0)
	})
}

func TestSplitByMods(t *testing.T) {
	Convey("Given scores across the three modifier pools", t, func() {
		scores := []*model.Score{
			{ID: 1, Mods: 0},
			{ID: 2, Mods: model.ModRelax},
			{ID: 3, Mods: model.ModAutopilot},
			{ID: 4, Mods: model.ModRelax | model.ModAutopilot},
			{ID: 5, Mods: 64}, // unrelated modifier
		}

		vn, rx, ap := aggregate.SplitByMods(scores)

		Convey("Then every score lands in exactly one pool", func() {
			So(len(vn)+len(rx)+len(ap), ShouldEqual, len(scores))
			So(len(vn), ShouldEqual, 2)
			So(len(rx), ShouldEqual, 2)
			So(len(ap), ShouldEqual, 1)
		})
	})
}

func TestRankedScore(t *testing.T) {
	Convey("Given best-by-score entries", t, func() {
		scores := []*model.Score{
			{ID: 1, TotalScore: 1000},
			{ID: 2, TotalScore: 2500},
		}

		So(aggregate.RankedScore(scores), ShouldEqual, 3500)
		So(aggregate.RankedScore(nil), ShouldEqual, 0)
	})
}
