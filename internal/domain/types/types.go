// Package types contains the domain entities shared across the engine layers.
package types

import "time"

// ScoringMode selects how a metric value is converted into progress.
type ScoringMode string

// Supported scoring modes.
const (
	// ModeNormal means higher values are better (progress = value/target).
	ModeNormal ScoringMode = "normal"
	// ModeReverse means lower values are better (at or below target is perfect).
	ModeReverse ScoringMode = "reverse"
	// ModeEqualIsBetter means values closest to the target are best.
	ModeEqualIsBetter ScoringMode = "equal_is_better"
)

// Valid reports whether the mode is one of the supported scoring modes.
func (m ScoringMode) Valid() bool {
	switch m {
	case ModeNormal, ModeReverse, ModeEqualIsBetter:
		return true
	default:
		return false
	}
}

// MetricDefinition describes a user-defined KPI and how it is scored.
// Definitions are never deleted, only deactivated.
type MetricDefinition struct {
	ID        string      // uuid
	Name      string      // display name, e.g. "Deep work hours"
	Target    float64     // weekly target; metrics with target <= 0 are not scored
	MinTarget *float64    // optional lower bound for display purposes
	Category  string      // free-form grouping, e.g. "health"
	Mode      ScoringMode // scoring mode
	// Weight is persisted but not consulted by the completion mean.
	// Reserved for a future weighted-completion extension.
	Weight float64
	Active bool
}

// WeeklyRecord holds the raw self-reported values for one ISO week.
// Created on first value entry; mutated in place for the same week.
type WeeklyRecord struct {
	WeekKey   WeekKey
	Values    map[string]float64 // metric id -> raw value
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can mutate values safely.
func (r WeeklyRecord) Clone() WeeklyRecord {
	out := r
	out.Values = make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		out.Values[k] = v
	}
	return out
}

// WeeklySubmission is the ingestion payload flowing through the queue.
type WeeklySubmission struct {
	SubmissionID string // unique id for idempotency
	UserID       string
	WeekKey      WeekKey
	Values       map[string]float64
	TS           time.Time
}

// RankState is the single persistent gamification state for a user.
type RankState struct {
	UserID        string
	Tier          Tier
	Points        int // always >= 0
	WeeksAssessed int // weeks that advanced the state
	CurrentStreak int // consecutive assessed weeks with positive delta
	BestStreak    int
	AssessedAt    time.Time
}

// RankChangeEvent is an immutable log entry recorded when the tier changes.
type RankChangeEvent struct {
	ID         string // uuid
	UserID     string
	WeekKey    WeekKey
	FromTier   Tier
	ToTier     Tier
	FromPoints int
	ToPoints   int
	Completion int // 0..100
	At         time.Time
}

// MetricBreakdown is the per-metric detail behind a completion score.
type MetricBreakdown struct {
	MetricID   string  `json:"metric_id"`
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Target     float64 `json:"target"`
	Percentage float64 `json:"percentage"` // 0..100+ (uncapped for display)
	Completed  bool    `json:"completed"`  // percentage >= 100
}

// WeeklyAssessment is the ephemeral result of scoring one week.
// It is derived on demand and never persisted as its own entity.
type WeeklyAssessment struct {
	WeekKey     WeekKey           `json:"week_key"`
	Completion  int               `json:"completion"` // 0..100
	Delta       int               `json:"delta"`      // signed points delta, after multipliers
	TierBefore  Tier              `json:"tier_before"`
	TierAfter   Tier              `json:"tier_after"`
	PointsAfter int               `json:"points_after"`
	CriticalHit bool              `json:"critical_hit"`
	Breakdown   []MetricBreakdown `json:"breakdown,omitempty"`
}

// TierChanged reports whether this week's assessment moved the tier.
func (a WeeklyAssessment) TierChanged() bool {
	return a.TierBefore != a.TierAfter
}

// Tier is one of the five ordered ranks.
type Tier int

// Tiers in ascending order. TierBronze is the canonical initial tier.
const (
	TierBronze Tier = iota
	TierSilver
	TierGold
	TierPlatinum
	TierDiamond
)

// tierNames is indexed by Tier.
var tierNames = [...]string{"bronze", "silver", "gold", "platinum", "diamond"}

// String returns the lowercase tier name, or "unknown" out of range.
func (t Tier) String() string {
	if t < TierBronze || t > TierDiamond {
		return "unknown"
	}
	return tierNames[t]
}

// Valid reports whether t is one of the five tiers.
func (t Tier) Valid() bool {
	return t >= TierBronze && t <= TierDiamond
}

// Entry represents a leaderboard row derived from rank points.
type Entry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Tier   string `json:"tier"`
	Points int    `json:"points"`
}
