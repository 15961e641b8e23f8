// Package completion converts raw weekly metric values into a 0-100 score.
package completion

// Option applies a configuration option to the StandardCalculator.
type Option func(*StandardCalculator)

// WithEqualTolerance sets the perfect-score tolerance for equal_is_better
// metrics, as a fraction of the target.
func WithEqualTolerance(fraction float64) Option {
	return func(c *StandardCalculator) {
		if fraction > 0 {
			c.equalTolerance = fraction
		}
	}
}

// WithEqualMaxDiff sets the zero-score deviation for equal_is_better
// metrics, as a fraction of the target.
func WithEqualMaxDiff(fraction float64) Option {
	return func(c *StandardCalculator) {
		if fraction > 0 {
			c.equalMaxDiff = fraction
		}
	}
}

// WithReverseDecay sets the overshoot fraction at which reverse metrics
// fully decay to zero.
func WithReverseDecay(fraction float64) Option {
	return func(c *StandardCalculator) {
		if fraction > 0 {
			c.reverseDecay = fraction
		}
	}
}
