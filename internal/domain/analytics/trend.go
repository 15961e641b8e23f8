package analytics

import "math"

// TrendDirection classifies where a series is heading.
type TrendDirection string

// Trend directions.
const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// stableSlopeRatio is the slope threshold, relative to the windowed mean,
// below which a trend counts as stable.
const stableSlopeRatio = 0.05

// Slope returns the ordinary-least-squares slope of value against index.
// Series shorter than two elements yield 0.
func Slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	meanX := float64(n-1) / 2
	meanY := Mean(values)
	var num, den float64
	for i, v := range values {
		dx := float64(i) - meanX
		num += dx * (v - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// PercentChange returns the relative change from previous to current, in
// percent. A zero previous value yields 0 rather than a division error.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / math.Abs(previous) * 100
}

// WindowChange compares the mean of the last window elements against the
// mean of the window before it, in percent. Series shorter than two full
// windows yield 0.
func WindowChange(values []float64, window int) float64 {
	if window < 1 || len(values) < 2*window {
		return 0
	}
	recent := Mean(values[len(values)-window:])
	prior := Mean(values[len(values)-2*window : len(values)-window])
	return PercentChange(recent, prior)
}

// Direction classifies the series trend: the OLS slope must exceed 5% of the
// series mean (in magnitude) to count as up or down.
func Direction(values []float64) TrendDirection {
	if len(values) < 2 {
		return TrendStable
	}
	slope := Slope(values)
	mean := math.Abs(Mean(values))
	if mean == 0 {
		// All-zero (or sign-cancelling) series: classify on the raw slope.
		if slope > 0 {
			return TrendUp
		}
		if slope < 0 {
			return TrendDown
		}
		return TrendStable
	}
	switch {
	case slope > stableSlopeRatio*mean:
		return TrendUp
	case slope < -stableSlopeRatio*mean:
		return TrendDown
	default:
		return TrendStable
	}
}

// RollingAverage returns the trailing mean over the given window. Near the
// start of the series the window shrinks instead of padding.
func RollingAverage(values []float64, window int) []float64 {
	if len(values) == 0 || window < 1 {
		return nil
	}
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
			out[i] = sum / float64(window)
			continue
		}
		out[i] = sum / float64(i+1)
	}
	return out
}
