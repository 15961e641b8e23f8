// Package completion converts raw weekly metric values into a 0-100 score.
package completion

import (
	"context"
	"math"

	"github.com/okian/ascent/internal/domain/types"
)

// Default scoring configuration constants.
const (
	// defaultEqualTolerance is the deviation (as a fraction of target)
	// still counted as perfect in equal_is_better mode.
	defaultEqualTolerance = 0.1
	// defaultEqualMaxDiff is the deviation (as a fraction of target)
	// at which equal_is_better progress reaches zero.
	defaultEqualMaxDiff = 0.5
	// defaultReverseDecay is the overshoot (as a fraction of target)
	// at which reverse progress reaches zero.
	defaultReverseDecay = 0.5

	maxPercentage = 100.0
)

// Result contains the aggregate completion score and its per-metric detail.
type Result struct {
	Completion int // 0..100, rounded to nearest integer
	Breakdown  []types.MetricBreakdown
}

// Calculator computes a weekly completion score from raw values.
type Calculator interface {
	// Complete scores one week's values against the active metric definitions.
	Complete(ctx context.Context, values map[string]float64, defs []types.MetricDefinition) Result
}

// StandardCalculator implements Calculator with the piecewise progress curves.
type StandardCalculator struct {
	equalTolerance float64
	equalMaxDiff   float64
	reverseDecay   float64
}

// NewStandardCalculator creates a calculator with configuration options.
func NewStandardCalculator(opts ...Option) *StandardCalculator {
	c := &StandardCalculator{
		equalTolerance: defaultEqualTolerance,
		equalMaxDiff:   defaultEqualMaxDiff,
		reverseDecay:   defaultReverseDecay,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete scores one week's values against the active metric definitions.
// Zero scoreable metrics or an empty value map yield a zero score, not an
// error; callers that require active metrics enforce that themselves.
func (c *StandardCalculator) Complete(_ context.Context, values map[string]float64, defs []types.MetricDefinition) Result {
	if len(values) == 0 || len(defs) == 0 {
		return Result{Completion: 0}
	}

	var (
		sum       float64
		counted   int
		breakdown = make([]types.MetricBreakdown, 0, len(defs))
	)
	for _, def := range defs {
		if !def.Active || def.Target <= 0 {
			continue
		}
		value := values[def.ID] // absent metrics score as zero value
		progress := c.progress(value, def)
		sum += progress
		counted++

		pct := c.percentage(value, def, progress)
		breakdown = append(breakdown, types.MetricBreakdown{
			MetricID:   def.ID,
			Name:       def.Name,
			Value:      value,
			Target:     def.Target,
			Percentage: pct,
			Completed:  pct >= maxPercentage,
		})
	}
	if counted == 0 {
		return Result{Completion: 0}
	}

	score := int(math.Round(sum / float64(counted) * maxPercentage))
	return Result{Completion: clampScore(score), Breakdown: breakdown}
}

// progress maps a raw value to [0,1] according to the metric's scoring mode.
func (c *StandardCalculator) progress(value float64, def types.MetricDefinition) float64 {
	switch def.Mode {
	case types.ModeEqualIsBetter:
		diff := math.Abs(value - def.Target)
		tolerance := c.equalTolerance * def.Target
		maxDiff := c.equalMaxDiff * def.Target
		if diff <= tolerance {
			return 1.0
		}
		if diff >= maxDiff {
			return 0.0
		}
		return 1.0 - (diff-tolerance)/(maxDiff-tolerance)
	case types.ModeReverse:
		if value <= def.Target {
			return 1.0
		}
		overshoot := (value - def.Target) / (c.reverseDecay * def.Target)
		return math.Max(0, 1.0-overshoot)
	default: // types.ModeNormal
		return math.Min(1.0, value/def.Target)
	}
}

// percentage is the display percentage shown in the breakdown. Normal-mode
// metrics keep the raw ratio uncapped so over-achievement is visible; the
// other modes report progress itself.
func (c *StandardCalculator) percentage(value float64, def types.MetricDefinition, progress float64) float64 {
	if def.Mode == types.ModeNormal {
		return value / def.Target * maxPercentage
	}
	return progress * maxPercentage
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
