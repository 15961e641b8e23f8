package analytics_test

import (
	"testing"

	analytics "github.com/okian/ascent/internal/domain/analytics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSynthesizeHighlights(t *testing.T) {
	Convey("Given a perfect final week that is also a new high", t, func() {
		in := analytics.InsightInput{
			Completion: sampleSeries(60, 70, 80, 100),
		}

		got := analytics.Synthesize(in)

		Convey("Then perfect-score outranks new-high outranks trend-shift", func() {
			So(len(got.Highlights), ShouldBeGreaterThanOrEqualTo, 2)
			So(got.Highlights[0].Kind, ShouldEqual, analytics.HighlightPerfectScore)
			So(got.Highlights[1].Kind, ShouldEqual, analytics.HighlightNewHigh)
		})

		Convey("And the synthesis is deterministic", func() {
			So(analytics.Synthesize(in), ShouldResemble, got)
		})
	})

	Convey("Given a metric with a long open streak and a fresh record", t, func() {
		in := analytics.InsightInput{
			Metrics: []analytics.MetricSeries{{
				ID:      "pushups",
				Name:    "Pushups",
				Target:  50,
				Samples: sampleSeries(55, 60, 65, 70, 80),
			}},
		}

		got := analytics.Synthesize(in)

		Convey("Then both the streak and the record surface, streak first", func() {
			So(got.Highlights, ShouldHaveLength, 2)
			So(got.Highlights[0].Kind, ShouldEqual, analytics.HighlightStreak)
			So(got.Highlights[0].MetricID, ShouldEqual, "pushups")
			So(got.Highlights[1].Kind, ShouldEqual, analytics.HighlightRecord)
		})
	})

	Convey("Given an empty input", t, func() {
		got := analytics.Synthesize(analytics.InsightInput{})
		So(got.Highlights, ShouldBeEmpty)
		So(got.Recommendations, ShouldBeEmpty)
	})
}

func TestSynthesizeRecommendations(t *testing.T) {
	Convey("Given a metric far behind pace and another in decline", t, func() {
		in := analytics.InsightInput{
			Metrics: []analytics.MetricSeries{{
				ID:      "reading",
				Name:    "Reading",
				Target:  10,
				Samples: sampleSeries(10, 10, 10, 5, 5, 5), // 50% windowed drop
			}},
			Paces: []analytics.MetricPace{{
				MetricID:   "savings",
				MetricName: "Savings",
				Pace:       analytics.Pace(30, 100, 5, 10), // 40% behind
			}},
		}

		got := analytics.Synthesize(in)

		Convey("Then pace outranks decline", func() {
			So(got.Recommendations, ShouldHaveLength, 2)
			So(got.Recommendations[0].Kind, ShouldEqual, analytics.RecommendationPace)
			So(got.Recommendations[0].MetricID, ShouldEqual, "savings")
			So(got.Recommendations[1].Kind, ShouldEqual, analytics.RecommendationDecline)
			So(got.Recommendations[1].MetricID, ShouldEqual, "reading")
		})
	})

	Convey("Given two metrics that move together", t, func() {
		in := analytics.InsightInput{
			Metrics: []analytics.MetricSeries{
				{ID: "sleep", Name: "Sleep", Target: 8, Samples: sampleSeries(6, 7, 8, 7, 6)},
				{ID: "mood", Name: "Mood", Target: 10, Samples: sampleSeries(3, 5, 7, 5, 3)},
			},
		}

		got := analytics.Synthesize(in)

		Convey("Then a correlation nudge is produced", func() {
			So(got.Recommendations, ShouldHaveLength, 1)
			So(got.Recommendations[0].Kind, ShouldEqual, analytics.RecommendationCorrelation)
			So(got.Recommendations[0].Message, ShouldContainSubstring, "Mood")
			So(got.Recommendations[0].Message, ShouldContainSubstring, "Sleep")
		})
	})
}

func TestSynthesizeCaps(t *testing.T) {
	Convey("Given more qualifying metrics than the output caps allow", t, func() {
		var metrics []analytics.MetricSeries
		var paces []analytics.MetricPace
		for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
			metrics = append(metrics, analytics.MetricSeries{
				ID:      id,
				Name:    id,
				Target:  1,
				Samples: sampleSeries(2, 2, 2, 2, 2), // open 5-week streak
			})
			paces = append(paces, analytics.MetricPace{
				MetricID:   id,
				MetricName: id,
				Pace:       analytics.Pace(10, 100, 5, 10),
			})
		}

		got := analytics.Synthesize(analytics.InsightInput{Metrics: metrics, Paces: paces})

		Convey("Then highlights cap at six and recommendations at five", func() {
			So(got.Highlights, ShouldHaveLength, 6)
			So(got.Recommendations, ShouldHaveLength, 5)
		})

		Convey("And ties break on metric id for a stable order", func() {
			So(got.Highlights[0].MetricID, ShouldEqual, "a")
			So(got.Recommendations[0].MetricID, ShouldEqual, "a")
		})
	})
}
