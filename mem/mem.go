// Package mem defines the address and page value types shared by the heap
// allocator layers, and the Arena view through which they touch pool bytes.
package mem

import "github.com/osdevkit/heapkit/internal/format"

// Address is a virtual address inside the heap pool. The zero value is the
// nil address; no allocation is ever placed at address zero.
type Address uint64

// NilAddress is returned by allocators when no block could be reserved.
const NilAddress = Address(0)

// IsNil reports whether a is the nil address.
func (a Address) IsNil() bool {
	return a == NilAddress
}

// PageBase returns the base address of the page containing a.
func (a Address) PageBase() Address {
	return a &^ Address(format.PageMask)
}

// IsAligned reports whether a is a multiple of align.
// align must be a power of two.
func (a Address) IsAligned(align uint64) bool {
	return uint64(a)&(align-1) == 0
}

// Page describes a virtual memory page index.
type Page uint64

// Address returns the base virtual address of this page.
func (p Page) Address() Address {
	return Address(p << format.PageShift)
}

// PageFromAddress returns the Page containing virtAddr. Addresses that are
// not page-aligned are rounded down to the page that contains them.
func PageFromAddress(virtAddr Address) Page {
	return Page((uint64(virtAddr) &^ uint64(format.PageMask)) >> format.PageShift)
}

// PageSpan returns the first and last page of the range [start, start+size).
// size must be non-zero.
func PageSpan(start Address, size uint64) (first, last Page) {
	return PageFromAddress(start), PageFromAddress(start + Address(size) - 1)
}

// Arena provides byte-level access to the mapped heap range.
//
// View returns the bytes backing [addr, addr+size). The returned slice
// aliases the pool itself: writes through it are writes into heap memory.
// Implementations fault on addresses outside the mapped range; the allocator
// layers only dereference addresses they know to be inside the pool.
type Arena interface {
	View(addr Address, size uint64) []byte
}
