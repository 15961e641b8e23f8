package analytics_test

import (
	"testing"

	analytics "github.com/okian/ascent/internal/domain/analytics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDetectAnomalies(t *testing.T) {
	Convey("Given a mostly-flat series with one spike", t, func() {
		samples := sampleSeries(10, 10, 10, 10, 10, 10, 10, 50)

		Convey("Then the spike is flagged with its z-score", func() {
			got := analytics.DetectAnomalies(samples, 2)
			So(got, ShouldHaveLength, 1)
			So(got[0].Index, ShouldEqual, 7)
			So(got[0].Sample.Value, ShouldEqual, 50)
			So(got[0].ZScore, ShouldBeGreaterThan, 2)
		})

		Convey("Then a non-positive threshold falls back to the default", func() {
			So(analytics.DetectAnomalies(samples, 0), ShouldHaveLength, 1)
		})

		Convey("Then a very high threshold flags nothing", func() {
			So(analytics.DetectAnomalies(samples, 10), ShouldBeEmpty)
		})
	})

	Convey("Given degenerate input", t, func() {
		Convey("Then short series yield nothing", func() {
			So(analytics.DetectAnomalies(sampleSeries(10, 10, 50), 2), ShouldBeEmpty)
		})

		Convey("Then a constant series yields nothing", func() {
			So(analytics.DetectAnomalies(sampleSeries(5, 5, 5, 5, 5), 2), ShouldBeEmpty)
		})
	})
}
