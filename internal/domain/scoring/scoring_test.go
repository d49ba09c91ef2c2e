package scoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/patternwatch/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWindowScorer_Score(t *testing.T) {
	Convey("Given a window scorer with the default sample floor", t, func() {
		scorer := scoring.NewWindowScorer()
		ctx := context.Background()

		Convey("When the average halves", func() {
			res, err := scorer.Score(ctx, scoring.Input{
				UserID:   "u1",
				Recent:   []float64{40, 50, 60},
				Previous: []float64{90, 100, 110},
			})

			Convey("Then the drop is 50 percent", func() {
				So(err, ShouldBeNil)
				So(res.UserID, ShouldEqual, "u1")
				So(res.RecentAvg, ShouldEqual, 50.0)
				So(res.PreviousAvg, ShouldEqual, 100.0)
				So(res.DropPercent, ShouldAlmostEqual, 50.0, 1e-9)
				So(res.RecentSamples, ShouldEqual, 3)
				So(res.PreviousSamples, ShouldEqual, 3)
			})
		})

		Convey("When performance improves", func() {
			res, err := scorer.Score(ctx, scoring.Input{
				Recent:   []float64{120, 120, 120},
				Previous: []float64{100, 100, 100},
			})

			Convey("Then the drop is negative", func() {
				So(err, ShouldBeNil)
				So(res.DropPercent, ShouldAlmostEqual, -20.0, 1e-9)
			})
		})

		Convey("When one bucket has too few samples", func() {
			_, err := scorer.Score(ctx, scoring.Input{
				Recent:   []float64{10, 10},
				Previous: []float64{100, 100, 100},
			})

			Convey("Then ErrInsufficientSamples is returned", func() {
				So(errors.Is(err, scoring.ErrInsufficientSamples), ShouldBeTrue)
			})
		})

		Convey("When a bucket is empty", func() {
			_, err := scorer.Score(ctx, scoring.Input{Recent: []float64{1, 2, 3}})

			Convey("Then ErrInsufficientSamples is returned", func() {
				So(errors.Is(err, scoring.ErrInsufficientSamples), ShouldBeTrue)
			})
		})

		Convey("When the previous average is zero", func() {
			_, err := scorer.Score(ctx, scoring.Input{
				Recent:   []float64{0, 0, 0},
				Previous: []float64{0, 0, 0},
			})

			Convey("Then ErrNonPositiveBaseline is returned", func() {
				So(errors.Is(err, scoring.ErrNonPositiveBaseline), ShouldBeTrue)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := scorer.Score(cctx, scoring.Input{})

			Convey("Then the cancellation is reported", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})

	Convey("Given a scorer with a custom floor", t, func() {
		scorer := scoring.NewWindowScorer(scoring.WithMinSamples(1), scoring.WithMinSamples(0))
		res, err := scorer.Score(context.Background(), scoring.Input{
			UserID:   "u1",
			Recent:   []float64{30},
			Previous: []float64{60},
		})

		Convey("Then non-positive floors are ignored", func() {
			So(err, ShouldBeNil)
			So(res.DropPercent, ShouldEqual, 50.0)
		})
	})
}

func TestInput_Add(t *testing.T) {
	Convey("Given a boundary one week ago", t, func() {
		now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
		boundary := now.AddDate(0, 0, -7)
		var in scoring.Input

		in.Add(boundary, boundary, 10)
		in.Add(boundary.Add(-time.Second), boundary, 20)
		in.Add(now, boundary, 30)

		Convey("Then scores at the boundary count as recent", func() {
			So(in.Recent, ShouldResemble, []float64{10, 30})
			So(in.Previous, ShouldResemble, []float64{20})
		})
	})
}

func TestMeanAndRound(t *testing.T) {
	Convey("Given helper math", t, func() {
		So(scoring.Mean(nil), ShouldEqual, 0.0)
		So(scoring.Mean([]float64{1, 2, 3, 4}), ShouldEqual, 2.5)
		So(scoring.Round(2.5), ShouldEqual, 3.0)
		So(scoring.Round(33.333), ShouldEqual, 33.0)
		So(scoring.Round(66.6), ShouldEqual, 67.0)
	})
}
