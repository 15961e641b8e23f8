package supplemental

import "errors"

// Sentinel kinds for registry errors.
var (
	ErrDuplicateSource = errors.New("duplicate source")
	ErrInvalidSource   = errors.New("invalid source")
)
