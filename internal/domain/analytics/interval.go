package analytics

import "math"

// Interval is a symmetric confidence interval around the series mean.
type Interval struct {
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Margin float64 `json:"margin"`
}

// zValues holds the fixed normal-approximation critical values.
var zValues = map[float64]float64{
	0.90: 1.645,
	0.95: 1.960,
	0.99: 2.576,
}

// ConfidenceInterval returns the normal-approximation interval for the mean
// at the given confidence level (0.90, 0.95 or 0.99; anything else falls
// back to 0.95). Series with fewer than two samples return a zero-width
// interval at the single value (or at zero when empty).
func ConfidenceInterval(values []float64, confidence float64) Interval {
	if len(values) == 0 {
		return Interval{}
	}
	if len(values) == 1 {
		return Interval{Low: values[0], High: values[0]}
	}

	z, ok := zValues[confidence]
	if !ok {
		z = zValues[0.95]
	}
	mean := Mean(values)
	margin := z * StdDev(values) / math.Sqrt(float64(len(values)))
	return Interval{Low: mean - margin, High: mean + margin, Margin: margin}
}
