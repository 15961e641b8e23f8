package analytics

import (
	"math"
	"sort"
)

// CorrelationStrength buckets the magnitude of a correlation coefficient.
type CorrelationStrength string

// Correlation strength buckets.
const (
	CorrelationStrong   CorrelationStrength = "strong"   // |r| >= 0.7
	CorrelationModerate CorrelationStrength = "moderate" // |r| >= 0.4
	CorrelationWeak     CorrelationStrength = "weak"     // |r| >= 0.2
	CorrelationNone     CorrelationStrength = "none"
)

// CorrelationDirection is the sign of a meaningful correlation.
type CorrelationDirection string

// Correlation directions.
const (
	CorrelationPositive CorrelationDirection = "positive"
	CorrelationNegative CorrelationDirection = "negative"
	CorrelationFlat     CorrelationDirection = "none" // |r| <= 0.1
)

// minOverlap is the smallest pairwise sample overlap that produces a
// matrix entry.
const minOverlap = 3

// CorrelationResult is the classified Pearson coefficient for one pair.
type CorrelationResult struct {
	Coefficient float64              `json:"coefficient"`
	Strength    CorrelationStrength  `json:"strength"`
	Direction   CorrelationDirection `json:"direction"`
	Samples     int                  `json:"samples"`
}

// PairCorrelation is one cell of the correlation matrix.
type PairCorrelation struct {
	A string `json:"a"` // metric id
	B string `json:"b"`
	CorrelationResult
}

// PearsonCorrelation returns the Pearson coefficient of two equal-length
// series. Mismatched lengths, short series or constant input yield 0.
func PearsonCorrelation(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}
	meanX := Mean(x)
	meanY := Mean(y)
	var num, denX, denY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		num += dx * dy
		denX += dx * dx
		denY += dy * dy
	}
	if denX == 0 || denY == 0 {
		return 0
	}
	return num / math.Sqrt(denX*denY)
}

// Classify buckets a coefficient into strength and direction.
func Classify(r float64, samples int) CorrelationResult {
	abs := math.Abs(r)
	res := CorrelationResult{Coefficient: r, Samples: samples, Strength: CorrelationNone, Direction: CorrelationFlat}
	switch {
	case abs >= 0.7:
		res.Strength = CorrelationStrong
	case abs >= 0.4:
		res.Strength = CorrelationModerate
	case abs >= 0.2:
		res.Strength = CorrelationWeak
	}
	if abs > 0.1 {
		if r > 0 {
			res.Direction = CorrelationPositive
		} else {
			res.Direction = CorrelationNegative
		}
	}
	return res
}

// CorrelationMatrix computes pairwise correlations between named series,
// aligning samples by date. Pairs with fewer than three overlapping samples
// are omitted. Output order is deterministic (sorted pair names).
func CorrelationMatrix(series map[string][]Sample) []PairCorrelation {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []PairCorrelation
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			x, y := overlap(series[names[i]], series[names[j]])
			if len(x) < minOverlap {
				continue
			}
			r := PearsonCorrelation(x, y)
			out = append(out, PairCorrelation{
				A:                 names[i],
				B:                 names[j],
				CorrelationResult: Classify(r, len(x)),
			})
		}
	}
	return out
}

// overlap aligns two sample series on matching dates (day granularity).
func overlap(a, b []Sample) ([]float64, []float64) {
	byDay := make(map[string]float64, len(b))
	for _, s := range b {
		byDay[s.Date.Format("2006-01-02")] = s.Value
	}
	var x, y []float64
	for _, s := range a {
		if v, ok := byDay[s.Date.Format("2006-01-02")]; ok {
			x = append(x, s.Value)
			y = append(y, v)
		}
	}
	return x, y
}
