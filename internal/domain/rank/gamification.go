package rank

import "math/rand"

// Default gamification constants.
const (
	defaultRandomSeed = 42
	critFactorMin     = 1.5
	critFactorSpan    = 0.5 // factor drawn uniformly from [1.5, 2.0)
)

// Gamification holds the probabilistic bonus layer: critical hits multiply a
// week's delta by a random factor, with a chance that rises with completion.
// The random source is injected so assessments stay reproducible in tests.
type Gamification struct {
	rng *rand.Rand
}

// GamificationOption applies a configuration option to Gamification.
type GamificationOption func(*Gamification)

// WithRand sets the random source used for critical-hit rolls.
func WithRand(rng *rand.Rand) GamificationOption {
	return func(g *Gamification) {
		if rng != nil {
			g.rng = rng
		}
	}
}

// NewGamification creates the bonus layer. Without WithRand it uses a fixed
// seed, mirroring the deterministic default used elsewhere in the codebase.
func NewGamification(opts ...GamificationOption) *Gamification {
	g := &Gamification{
		rng: rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // deterministic seed for reproducible assessments
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// roll samples a critical hit with the given chance. It returns the factor to
// multiply the delta by (1.0 when no hit) and whether the hit landed.
func (g *Gamification) roll(chance float64) (float64, bool) {
	if g.rng.Float64() >= chance {
		return 1.0, false
	}
	return critFactorMin + g.rng.Float64()*critFactorSpan, true
}
