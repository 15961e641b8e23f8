package analytics

import (
	"sort"
	"time"
)

// minStreakLength is the shortest run that counts as a streak.
const minStreakLength = 2

// Streak is a contiguous run of samples at or above a threshold.
type Streak struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Length  int       `json:"length"`
	Current bool      `json:"current"` // still open at the series end
}

// DetectStreaks finds runs where value >= threshold. Runs shorter than two
// samples are ignored. The trailing run, if it reaches the series end, is
// marked current. Results are sorted by length descending (ties: most
// recent first).
func DetectStreaks(samples []Sample, threshold float64) []Streak {
	var (
		out   []Streak
		start = -1
	)
	flush := func(end int, current bool) {
		if start < 0 {
			return
		}
		length := end - start + 1
		if length >= minStreakLength {
			out = append(out, Streak{
				Start:   samples[start].Date,
				End:     samples[end].Date,
				Length:  length,
				Current: current,
			})
		}
		start = -1
	}

	for i, s := range samples {
		if s.Value >= threshold {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i-1, false)
	}
	flush(len(samples)-1, true)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Length != out[j].Length {
			return out[i].Length > out[j].Length
		}
		return out[i].End.After(out[j].End)
	})
	return out
}

// CurrentStreak returns the open trailing streak, if any.
func CurrentStreak(samples []Sample, threshold float64) (Streak, bool) {
	for _, s := range DetectStreaks(samples, threshold) {
		if s.Current {
			return s, true
		}
	}
	return Streak{}, false
}
