// Package paging defines the virtual-memory collaborator consumed by the heap
// allocator: a Mapper that establishes present+writable mappings one page at a
// time, combined with the mem.Arena byte view over whatever has been mapped.
//
// Two implementations are provided. SimMapper simulates the collaborator in
// process memory and is the one used by tests and tooling. MmapMemory (linux)
// reserves a real virtual address range with mmap and makes pages usable with
// mprotect, so heap addresses are genuine virtual addresses and views never
// move as the pool grows.
package paging

import (
	"errors"
	"fmt"

	"github.com/osdevkit/heapkit/mem"
)

var (
	// ErrOutOfReservation indicates a page outside the reserved virtual range.
	ErrOutOfReservation = errors.New("paging: page outside reserved range")

	// ErrNoFrame indicates no physical frame was available to back the page.
	ErrNoFrame = errors.New("paging: no frame available")
)

// MapError reports a failed attempt to map a single virtual page.
type MapError struct {
	Page  mem.Page
	Cause error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("paging: map page at %#x: %v", uint64(e.Page.Address()), e.Cause)
}

func (e *MapError) Unwrap() error {
	return e.Cause
}

// Mapper establishes mappings for individual virtual pages.
type Mapper interface {
	// MapPage makes one page-aligned virtual page present and writable,
	// backed by a freshly obtained frame. A failure maps nothing for that
	// page; callers treat any single failure in a range as total failure
	// for that range.
	MapPage(p mem.Page) error
}

// Memory is the full collaborator surface the heap needs: page mapping plus
// byte-level access to the mapped range.
type Memory interface {
	Mapper
	mem.Arena
}
