package analytics_test

import (
	"testing"

	analytics "github.com/okian/ascent/internal/domain/analytics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSlope(t *testing.T) {
	Convey("Given value series of known shape", t, func() {
		Convey("Then a perfect line recovers its slope", func() {
			So(analytics.Slope([]float64{1, 3, 5, 7}), ShouldAlmostEqual, 2, 1e-9)
			So(analytics.Slope([]float64{10, 8, 6, 4}), ShouldAlmostEqual, -2, 1e-9)
		})

		Convey("Then a constant series has zero slope", func() {
			So(analytics.Slope([]float64{5, 5, 5, 5}), ShouldEqual, 0)
		})

		Convey("Then short series yield zero", func() {
			So(analytics.Slope([]float64{5}), ShouldEqual, 0)
			So(analytics.Slope(nil), ShouldEqual, 0)
		})
	})
}

func TestDirection(t *testing.T) {
	Convey("Given series with different trends", t, func() {
		Convey("Then a constant series is stable", func() {
			So(analytics.Direction([]float64{7, 7, 7, 7, 7}), ShouldEqual, analytics.TrendStable)
		})

		Convey("Then a steep climb is up", func() {
			So(analytics.Direction([]float64{1, 2, 4, 8, 16}), ShouldEqual, analytics.TrendUp)
		})

		Convey("Then a steep drop is down", func() {
			So(analytics.Direction([]float64{16, 8, 4, 2, 1}), ShouldEqual, analytics.TrendDown)
		})

		Convey("Then a barely-moving series is stable", func() {
			// Slope 0.1 against mean ~100: well under the 5% threshold.
			So(analytics.Direction([]float64{100, 100.1, 100.2, 100.3}), ShouldEqual, analytics.TrendStable)
		})

		Convey("Then degenerate input is stable", func() {
			So(analytics.Direction(nil), ShouldEqual, analytics.TrendStable)
			So(analytics.Direction([]float64{3}), ShouldEqual, analytics.TrendStable)
		})
	})
}

func TestPercentChange(t *testing.T) {
	Convey("Given current and previous values", t, func() {
		So(analytics.PercentChange(150, 100), ShouldEqual, 50)
		So(analytics.PercentChange(50, 100), ShouldEqual, -50)
		So(analytics.PercentChange(10, 0), ShouldEqual, 0) // no division error
	})
}

func TestWindowChange(t *testing.T) {
	Convey("Given a series with two comparable windows", t, func() {
		// prior window mean 10, recent window mean 15.
		values := []float64{10, 10, 10, 15, 15, 15}

		So(analytics.WindowChange(values, 3), ShouldEqual, 50)

		Convey("And a too-short series yields zero", func() {
			So(analytics.WindowChange([]float64{1, 2, 3}, 3), ShouldEqual, 0)
		})
	})
}

func TestRollingAverage(t *testing.T) {
	Convey("Given a series and a window of three", t, func() {
		values := []float64{3, 6, 9, 12, 15}
		avg := analytics.RollingAverage(values, 3)

		Convey("Then the window shrinks at the series start", func() {
			So(avg, ShouldResemble, []float64{3, 4.5, 6, 9, 12})
		})

		Convey("And degenerate input yields nil", func() {
			So(analytics.RollingAverage(nil, 3), ShouldBeNil)
			So(analytics.RollingAverage(values, 0), ShouldBeNil)
		})
	})
}
