package analytics

// PaceStatus buckets progress against the linear expected trajectory.
type PaceStatus string

// Pace statuses.
const (
	PaceAhead     PaceStatus = "ahead"      // >= +5%
	PaceOnTrack   PaceStatus = "on_track"   // [-5, +5)
	PaceBehind    PaceStatus = "behind"     // [-20, -5)
	PaceFarBehind PaceStatus = "far_behind" // < -20%
)

// PaceResult compares current progress against a linear trajectory toward
// a target over a fixed period.
type PaceResult struct {
	Expected    float64    `json:"expected"`     // (elapsed/total) * target
	PercentDiff float64    `json:"percent_diff"` // current vs expected, in percent
	Status      PaceStatus `json:"status"`
	Projection  float64    `json:"projection"` // (current/elapsed) * total
}

// Pace evaluates current progress after elapsed of total period units.
// Degenerate input (non-positive elapsed or total) yields an on-track zero
// result rather than an error.
func Pace(current, target float64, elapsed, total float64) PaceResult {
	if elapsed <= 0 || total <= 0 {
		return PaceResult{Status: PaceOnTrack}
	}
	expected := elapsed / total * target
	diff := PercentChange(current, expected)
	return PaceResult{
		Expected:    expected,
		PercentDiff: diff,
		Status:      paceStatus(diff),
		Projection:  current / elapsed * total,
	}
}

func paceStatus(percentDiff float64) PaceStatus {
	switch {
	case percentDiff >= 5:
		return PaceAhead
	case percentDiff >= -5:
		return PaceOnTrack
	case percentDiff >= -20:
		return PaceBehind
	default:
		return PaceFarBehind
	}
}
