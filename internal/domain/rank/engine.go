package rank

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ascent/internal/domain/types"
)

// InitialPoints is the canonical starting balance for a fresh RankState.
const InitialPoints = 100

// bucket is one step of the completion-to-delta function, with the
// critical-hit chance used by the optional gamification layer.
type bucket struct {
	minCompletion int
	delta         int
	critChance    float64
}

// buckets is evaluated top-down; the first matching bucket wins.
var buckets = [...]bucket{
	{100, 50, 0.25},
	{80, 35, 0.20},
	{50, 15, 0.15},
	{40, -10, 0.12},
	{30, -20, 0.10},
	{20, -30, 0.08},
	{0, -40, 0.05},
}

// BaseDelta returns the unscaled points delta for a completion score.
func BaseDelta(completion int) int {
	return bucketFor(completion).delta
}

func bucketFor(completion int) bucket {
	for _, b := range buckets {
		if completion >= b.minCompletion {
			return b
		}
	}
	return buckets[len(buckets)-1]
}

// Engine applies weekly completion scores to a RankState. The base step is
// fully deterministic; gamification (critical hits, streak bonus) is an
// optional strategy layered on top.
type Engine struct {
	gamification *Gamification
}

// NewEngine creates a rank engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// NewState returns the canonical initial state for a user:
// lowest tier, InitialPoints on the balance, nothing assessed yet.
func NewState(userID string) types.RankState {
	return types.RankState{
		UserID: userID,
		Tier:   TierFromPoints(InitialPoints),
		Points: InitialPoints,
	}
}

// Step applies one week's completion score deterministically and returns the
// advanced state plus the assessment describing what happened. The input
// state is not mutated.
func (e *Engine) Step(state types.RankState, weekKey types.WeekKey, completion int, now time.Time) (types.RankState, types.WeeklyAssessment) {
	return e.step(state, weekKey, completion, 0, false, now)
}

// StepWithGamification is the extended step: when the engine carries a
// gamification strategy it may roll a critical hit and apply the streak
// multiplier for streakDays. Without a strategy it behaves exactly like Step.
func (e *Engine) StepWithGamification(state types.RankState, weekKey types.WeekKey, completion int, streakDays int, now time.Time) (types.RankState, types.WeeklyAssessment) {
	return e.step(state, weekKey, completion, streakDays, e.gamification != nil, now)
}

func (e *Engine) step(state types.RankState, weekKey types.WeekKey, completion int, streakDays int, gamified bool, now time.Time) (types.RankState, types.WeeklyAssessment) {
	b := bucketFor(completion)
	delta := float64(b.delta) * Multiplier(state.Tier)

	critical := false
	if gamified {
		var factor float64
		factor, critical = e.gamification.roll(b.critChance)
		delta *= factor
		delta *= streakMultiplier(streakDays)
	}

	rounded := int(math.Round(delta))
	points := state.Points + rounded
	if points < 0 {
		points = 0
	}
	newTier := TierFromPoints(points)

	next := state
	next.Points = points
	next.Tier = newTier
	next.WeeksAssessed++
	if rounded > 0 {
		next.CurrentStreak++
		if next.CurrentStreak > next.BestStreak {
			next.BestStreak = next.CurrentStreak
		}
	} else {
		next.CurrentStreak = 0
	}
	next.AssessedAt = now

	assessment := types.WeeklyAssessment{
		WeekKey:     weekKey,
		Completion:  completion,
		Delta:       rounded,
		TierBefore:  state.Tier,
		TierAfter:   newTier,
		PointsAfter: points,
		CriticalHit: critical,
	}
	return next, assessment
}

// streakMultiplier grows 10% per streak day, capped at 2x.
func streakMultiplier(streakDays int) float64 {
	if streakDays <= 0 {
		return 1.0
	}
	return 1.0 + math.Min(float64(streakDays)*0.1, 1.0)
}

// eventNamespace seeds deterministic (v5) event IDs used during replay.
var eventNamespace = uuid.MustParse("7d9f4a52-6c1e-4b8f-9a3d-2e5b8c4f0a17")

// DeterministicEventID derives a stable event ID from the user and week, so
// regenerating history reproduces the exact same event list.
func DeterministicEventID(userID string, week types.WeekKey) string {
	return uuid.NewSHA1(eventNamespace, []byte(userID+"/"+week.String())).String()
}

// NewChangeEvent builds the immutable log entry for a tier move.
// Callers append it only when the assessment actually changed tiers.
func NewChangeEvent(userID string, before types.RankState, a types.WeeklyAssessment, at time.Time) types.RankChangeEvent {
	return types.RankChangeEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		WeekKey:    a.WeekKey,
		FromTier:   a.TierBefore,
		ToTier:     a.TierAfter,
		FromPoints: before.Points,
		ToPoints:   a.PointsAfter,
		Completion: a.Completion,
		At:         at,
	}
}
