package replay

import "errors"

// Sentinel kinds for regeneration errors.
var (
	// ErrRegenerationInProgress means a regeneration for the same user is
	// already running; callers must retry after it completes.
	ErrRegenerationInProgress = errors.New("regeneration already in progress")
)
