package rank

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithGamification enables the critical-hit and streak bonus layer.
// Engines without it are fully deterministic.
func WithGamification(g *Gamification) Option {
	return func(e *Engine) {
		e.gamification = g
	}
}
