package buddy

import "errors"

var (
	// ErrExhausted indicates no free block of a sufficient order exists.
	// Not a failure in itself: it is the signal that triggers pool growth.
	ErrExhausted = errors.New("buddy: no free block of sufficient order")

	// ErrTooLarge indicates a request above the maximum block size (2 MiB).
	// Growth cannot help; such requests must be capped or rejected upstream.
	ErrTooLarge = errors.New("buddy: request exceeds maximum block size")
)
