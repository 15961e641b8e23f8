package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/okian/ascent/pkg/logger"
)

// Archetype indices drive how a simulated user's weekly attainment evolves.
const (
	archetypeConsistent = 0
	archetypeImprover   = 1
	archetypeSlacker    = 2
	archetypeErratic    = 3
	archetypeElite      = 4
	archetypeCount      = 5
)

// Attainment parameters per archetype.
const (
	consistentBase = 0.75
	consistentJit  = 0.15
	improverStart  = 0.30
	improverEnd    = 0.95
	slackerStart   = 0.90
	slackerEnd     = 0.25
	erraticMin     = 0.10
	erraticRange   = 0.90
	eliteBase      = 0.95
	eliteJit       = 0.05
)

// metricSpecs is the fixed metric set every simulated user tracks.
var metricSpecs = []Metric{
	{ID: "deep-work", Name: "deep work hours", Target: 10, Mode: "normal", Weight: 2, Active: true},
	{ID: "sleep", Name: "sleep hours", Target: 8, Mode: "normal", Weight: 1, Active: true},
	{ID: "screen-time", Name: "screen time hours", Target: 3, Mode: "reverse", Weight: 1, Active: true},
}

// weekKeys returns the last n ISO week keys ending at the week containing now.
func weekKeys(now time.Time, n int) []string {
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		t := now.AddDate(0, 0, -7*(n-1-i))
		year, week := t.ISOWeek()
		keys[i] = fmt.Sprintf("%04d-W%02d", year, week)
	}
	return keys
}

// generateHistories creates seeded weekly submissions for every simulated user.
// The same seed always produces the same histories, which makes regeneration
// checks reproducible across runs.
func generateHistories(ctx context.Context, config *Config, stats *Stats) ([]string, []Submission, error) {
	logger.Get().Info(ctx, "generating weekly histories",
		logger.Int("users", config.NumUsers),
		logger.Int("weeks", config.NumWeeks),
		logger.Any("seed", config.Seed))

	rng := rand.New(rand.NewSource(config.Seed)) //nolint:gosec // reproducibility is the point

	userIDs := make([]string, config.NumUsers)
	for i := range userIDs {
		userIDs[i] = fmt.Sprintf("sim-user-%04d", i)
	}

	weeks := weekKeys(time.Now().UTC(), config.NumWeeks)
	submissions := make([]Submission, 0, config.NumUsers*config.NumWeeks)

	for i, userID := range userIDs {
		archetype := i % archetypeCount
		for w, week := range weeks {
			select {
			case <-ctx.Done():
				return nil, nil, fmt.Errorf("context cancelled during history generation: %w", ctx.Err())
			default:
			}

			attainment := attainmentFor(rng, archetype, w, config.NumWeeks)
			values := make(map[string]float64, len(metricSpecs))
			for _, spec := range metricSpecs {
				values[spec.ID] = valueFor(rng, spec, attainment)
			}

			submissions = append(submissions, Submission{
				SubmissionID: fmt.Sprintf("%s/%s", userID, week),
				UserID:       userID,
				Week:         week,
				Values:       values,
				TS:           time.Now().UTC().Format(time.RFC3339),
			})
		}
	}

	stats.UsersSimulated = len(userIDs)
	stats.SubmissionsGenerated = len(submissions)
	logger.Get().Info(ctx, "generated histories",
		logger.Int("users", len(userIDs)),
		logger.Int("submissions", len(submissions)))

	return userIDs, submissions, nil
}

// attainmentFor returns the fraction of target a user hits in a given week.
func attainmentFor(rng *rand.Rand, archetype, week, numWeeks int) float64 {
	progress := 0.0
	if numWeeks > 1 {
		progress = float64(week) / float64(numWeeks-1)
	}

	var a float64
	switch archetype {
	case archetypeConsistent:
		a = consistentBase + (rng.Float64()-0.5)*consistentJit
	case archetypeImprover:
		a = improverStart + (improverEnd-improverStart)*progress + (rng.Float64()-0.5)*consistentJit
	case archetypeSlacker:
		a = slackerStart + (slackerEnd-slackerStart)*progress + (rng.Float64()-0.5)*consistentJit
	case archetypeErratic:
		a = erraticMin + rng.Float64()*erraticRange
	case archetypeElite:
		a = eliteBase + rng.Float64()*eliteJit
	default:
		a = erraticMin + rng.Float64()*erraticRange
	}

	if a < 0 {
		a = 0
	}
	if a > 1.2 {
		a = 1.2
	}
	return a
}

// valueFor converts an attainment fraction into a raw metric value.
func valueFor(rng *rand.Rand, spec Metric, attainment float64) float64 {
	if spec.Mode == "reverse" {
		// Lower is better: perfect attainment lands at or below target.
		over := (1 - attainment) * spec.Target
		return roundTenth(spec.Target + over + rng.Float64()*0.5)
	}
	return roundTenth(spec.Target * attainment)
}

func roundTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
