package analytics

import (
	"fmt"
	"sort"
)

// Insight synthesis constants.
const (
	maxHighlights      = 6
	maxRecommendations = 5

	// trendShiftPercent is the windowed move that counts as a strong shift.
	trendShiftPercent = 10.0
	// declinePercent is the windowed drop that triggers a recommendation.
	declinePercent = -15.0
	// activeStreakMin is the shortest current streak worth surfacing.
	activeStreakMin = 4
	// trendWindow is the compare window (in samples) for shift detection.
	trendWindow = 3
)

// Highlight priorities, higher surfaces first.
const (
	priorityPerfect    = 90
	priorityNewHigh    = 80
	priorityStreak     = 70
	priorityTrendShift = 60
	priorityRecord     = 50
)

// Recommendation priorities.
const (
	priorityPace        = 90
	priorityDecline     = 80
	priorityCorrelation = 70
)

// HighlightKind tags the rule that produced a highlight.
type HighlightKind string

// Highlight kinds.
const (
	HighlightPerfectScore HighlightKind = "perfect_score"
	HighlightNewHigh      HighlightKind = "new_high"
	HighlightStreak       HighlightKind = "streak"
	HighlightTrendShift   HighlightKind = "trend_shift"
	HighlightRecord       HighlightKind = "personal_record"
)

// Highlight is one positive, advisory observation.
type Highlight struct {
	Kind     HighlightKind `json:"kind"`
	MetricID string        `json:"metric_id,omitempty"`
	Message  string        `json:"message"`
	Priority int           `json:"priority"`
}

// RecommendationKind tags the rule that produced a recommendation.
type RecommendationKind string

// Recommendation kinds.
const (
	RecommendationPace        RecommendationKind = "pace"
	RecommendationDecline     RecommendationKind = "decline"
	RecommendationCorrelation RecommendationKind = "correlation"
)

// Recommendation is one advisory nudge.
type Recommendation struct {
	Kind     RecommendationKind `json:"kind"`
	MetricID string             `json:"metric_id,omitempty"`
	Message  string             `json:"message"`
	Priority int                `json:"priority"`
}

// MetricSeries is one metric's dated history plus its weekly target.
type MetricSeries struct {
	ID      string
	Name    string
	Target  float64
	Samples []Sample
}

// MetricPace pairs a metric with its period pace evaluation.
type MetricPace struct {
	MetricID   string
	MetricName string
	Pace       PaceResult
}

// InsightInput bundles everything the synthesis rules look at.
type InsightInput struct {
	Completion []Sample // weekly completion percentages, ascending by date
	Metrics    []MetricSeries
	Paces      []MetricPace
}

// Insights is the synthesized, priority-sorted, capped output.
type Insights struct {
	Highlights      []Highlight      `json:"highlights"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Synthesize runs the rule set over the input. Deterministic: same input,
// same output, including ordering.
func Synthesize(in InsightInput) Insights {
	out := Insights{
		Highlights:      synthesizeHighlights(in),
		Recommendations: synthesizeRecommendations(in),
	}

	sortHighlights(out.Highlights)
	sortRecommendations(out.Recommendations)

	if len(out.Highlights) > maxHighlights {
		out.Highlights = out.Highlights[:maxHighlights]
	}
	if len(out.Recommendations) > maxRecommendations {
		out.Recommendations = out.Recommendations[:maxRecommendations]
	}
	return out
}

func synthesizeHighlights(in InsightInput) []Highlight {
	var out []Highlight

	if n := len(in.Completion); n > 0 {
		last := in.Completion[n-1].Value

		if last >= 100 {
			out = append(out, Highlight{
				Kind:     HighlightPerfectScore,
				Message:  "Perfect week: every metric hit its target",
				Priority: priorityPerfect,
			})
		}

		if n >= 2 && last > Max(Values(in.Completion[:n-1])) {
			out = append(out, Highlight{
				Kind:     HighlightNewHigh,
				Message:  fmt.Sprintf("New completion high: %.0f%%", last),
				Priority: priorityNewHigh,
			})
		}

		if change := WindowChange(Values(in.Completion), trendWindow); change > trendShiftPercent {
			out = append(out, Highlight{
				Kind:     HighlightTrendShift,
				Message:  fmt.Sprintf("Completion is trending up %.0f%% over recent weeks", change),
				Priority: priorityTrendShift,
			})
		}
	}

	for _, m := range in.Metrics {
		if streak, ok := CurrentStreak(m.Samples, m.Target); ok && streak.Length >= activeStreakMin {
			out = append(out, Highlight{
				Kind:     HighlightStreak,
				MetricID: m.ID,
				Message:  fmt.Sprintf("%s has hit its target %d weeks running", m.Name, streak.Length),
				Priority: priorityStreak,
			})
		}

		n := len(m.Samples)
		if n >= 2 && m.Samples[n-1].Value > Max(Values(m.Samples[:n-1])) {
			out = append(out, Highlight{
				Kind:     HighlightRecord,
				MetricID: m.ID,
				Message:  fmt.Sprintf("Personal record on %s: %.1f", m.Name, m.Samples[n-1].Value),
				Priority: priorityRecord,
			})
		}
	}

	return out
}

func synthesizeRecommendations(in InsightInput) []Recommendation {
	var out []Recommendation

	for _, p := range in.Paces {
		if p.Pace.Status == PaceFarBehind {
			out = append(out, Recommendation{
				Kind:     RecommendationPace,
				MetricID: p.MetricID,
				Message:  fmt.Sprintf("%s is %.0f%% behind its expected pace", p.MetricName, -p.Pace.PercentDiff),
				Priority: priorityPace,
			})
		}
	}

	series := make(map[string][]Sample, len(in.Metrics))
	names := make(map[string]string, len(in.Metrics))
	for _, m := range in.Metrics {
		series[m.ID] = m.Samples
		names[m.ID] = m.Name

		if change := WindowChange(Values(m.Samples), trendWindow); change < declinePercent {
			out = append(out, Recommendation{
				Kind:     RecommendationDecline,
				MetricID: m.ID,
				Message:  fmt.Sprintf("%s dropped %.0f%% over recent weeks", m.Name, -change),
				Priority: priorityDecline,
			})
		}
	}

	for _, pair := range CorrelationMatrix(series) {
		if pair.Strength == CorrelationStrong && pair.Direction == CorrelationPositive {
			out = append(out, Recommendation{
				Kind:     RecommendationCorrelation,
				MetricID: pair.A,
				Message:  fmt.Sprintf("%s and %s move together; improving one may lift the other", names[pair.A], names[pair.B]),
				Priority: priorityCorrelation,
			})
		}
	}

	return out
}

func sortHighlights(hs []Highlight) {
	sort.SliceStable(hs, func(i, j int) bool {
		if hs[i].Priority != hs[j].Priority {
			return hs[i].Priority > hs[j].Priority
		}
		return hs[i].MetricID < hs[j].MetricID
	})
}

func sortRecommendations(rs []Recommendation) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Priority != rs[j].Priority {
			return rs[i].Priority > rs[j].Priority
		}
		return rs[i].MetricID < rs[j].MetricID
	})
}
