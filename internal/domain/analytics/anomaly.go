package analytics

import "math"

// Anomaly detection constants.
const (
	// DefaultAnomalyThreshold is the z-score magnitude used when the caller
	// passes a non-positive threshold.
	DefaultAnomalyThreshold = 2.0
	// minAnomalySamples is the smallest series worth flagging against.
	minAnomalySamples = 4
)

// Anomaly is one sample whose z-score exceeds the threshold.
type Anomaly struct {
	Index  int     `json:"index"`
	Sample Sample  `json:"sample"`
	ZScore float64 `json:"z_score"`
}

// DetectAnomalies flags samples whose z-score against the series' own mean
// and standard deviation is at least threshold in magnitude. Series shorter
// than four samples, or with zero deviation, yield nothing.
func DetectAnomalies(samples []Sample, threshold float64) []Anomaly {
	if len(samples) < minAnomalySamples {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}

	values := Values(samples)
	mean := Mean(values)
	dev := StdDev(values)
	if dev == 0 {
		return nil
	}

	var out []Anomaly
	for i, s := range samples {
		z := (s.Value - mean) / dev
		if math.Abs(z) >= threshold {
			out = append(out, Anomaly{Index: i, Sample: s, ZScore: z})
		}
	}
	return out
}
