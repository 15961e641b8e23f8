package types

import "errors"

// Sentinel kinds for validation errors.
var (
	ErrInvalidWeekKey = errors.New("invalid week key")
	ErrInvalidValue   = errors.New("invalid metric value")
)
