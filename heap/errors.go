package heap

import "errors"

var (
	// ErrOutOfMemory indicates an allocation that could not be satisfied
	// even after attempting to grow the pool.
	ErrOutOfMemory = errors.New("heap: out of memory")

	// ErrAlreadyInitialized indicates a second InitHeap call.
	ErrAlreadyInitialized = errors.New("heap: already initialized")

	// ErrNotInitialized indicates use of the global allocator before InitHeap.
	ErrNotInitialized = errors.New("heap: not initialized")
)
