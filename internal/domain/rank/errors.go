package rank

import "errors"

// Sentinel kinds for rank engine errors.
var (
	// ErrNoActiveMetrics means an assessment was requested with no active
	// metric definitions configured (a configuration error, not a zero score).
	ErrNoActiveMetrics = errors.New("no active metrics configured")
)
