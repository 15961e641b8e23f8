package replay

import (
	"github.com/okian/ascent/internal/domain/completion"
	"github.com/okian/ascent/internal/domain/rank"
	"github.com/okian/ascent/pkg/logger"
)

// Option applies a configuration option to the Regenerator.
type Option func(*Regenerator)

// WithMerger sets the supplemental value merger applied before scoring.
func WithMerger(m Merger) Option {
	return func(r *Regenerator) {
		r.merger = m
	}
}

// WithCalculator overrides the completion calculator.
func WithCalculator(c completion.Calculator) Option {
	return func(r *Regenerator) {
		if c != nil {
			r.calc = c
		}
	}
}

// WithEngine overrides the rank engine. Replay requires a deterministic
// engine; passing one with gamification enabled breaks idempotence.
func WithEngine(e *rank.Engine) Option {
	return func(r *Regenerator) {
		if e != nil {
			r.engine = e
		}
	}
}

// WithLogger sets a custom logger for the regenerator.
func WithLogger(l logger.Logger) Option {
	return func(r *Regenerator) {
		if l != nil {
			r.logger = l
		}
	}
}
