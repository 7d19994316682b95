// Package format holds the compile-time layout constants shared by the heap
// allocator layers, plus the alignment and power-of-two helpers built on them.
//
// Nothing in this package is runtime-configurable. The buddy order range, the
// slab size classes and the default heap placement are fixed properties of the
// heap layout; changing them changes the on-page layout of every intrusive
// structure the allocator maintains.
package format

import (
	"encoding/binary"
	"math/bits"
)

const (
	// PageSize is the granularity of the paging collaborator and the smallest
	// block the buddy layer manages.
	PageSize  = 4096
	PageShift = 12
	PageMask  = PageSize - 1

	// MinOrder and MaxOrder bound the buddy block sizes: 2^12 (one page) up
	// to 2^21 (one 2 MiB super-block).
	MinOrder  = 12
	MaxOrder  = 21
	NumOrders = MaxOrder - MinOrder + 1

	// MaxBlockSize is the largest single allocation the buddy layer serves.
	MaxBlockSize = 1 << MaxOrder

	// LinkSize is the width of an intrusive free-list link: a little-endian
	// address stored in the first eight bytes of a free block or slot.
	LinkSize = 8

	// SlabHeaderSize is the bookkeeping prefix of a slab page: next-slab
	// link, free-slot head, free count and object size, eight bytes each.
	SlabHeaderSize = 32

	// MaxSlabSize is the routing boundary between the slab and buddy layers.
	// Requests above it go straight to the buddy allocator.
	MaxSlabSize = 2048

	// NumClasses is the number of slab size classes.
	NumClasses = 9

	// DefaultHeapStart and DefaultHeapSize fix the initial heap placement.
	// DefaultHeapSize must be a power of two, at least one page, and aligned
	// to itself so that the initial pool seeds as whole buddy blocks.
	DefaultHeapStart = 0x4444_4442_0000
	DefaultHeapSize  = 128 * 1024
)

// ClassSizes lists the slab object sizes in ascending order. A request routes
// to the smallest class whose size covers it.
var ClassSizes = [NumClasses]uint64{8, 16, 32, 64, 128, 256, 512, 1024, 2048}

// AlignPage returns n aligned up to the next page boundary.
func AlignPage(n uint64) uint64 {
	return (n + PageMask) &^ uint64(PageMask)
}

// AlignUp returns n aligned up to the next multiple of align.
// align must be a power of two.
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// IsAligned reports whether n is a multiple of align.
// align must be a power of two.
func IsAligned(n, align uint64) bool {
	return n&(align-1) == 0
}

// NextPow2 returns the smallest power of two >= n. NextPow2(0) == 1.
func NextPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len64(n-1)
}

// SizeToOrder returns the buddy order of the smallest power-of-two block that
// covers size, i.e. ceil(log2(size)).
func SizeToOrder(size uint64) int {
	if size <= 1 {
		return 0
	}
	return bits.Len64(size - 1)
}

// OrderFloor returns the largest order whose block fits entirely within size,
// capped at MaxOrder. size must be at least one page.
func OrderFloor(size uint64) int {
	o := bits.Len64(size) - 1
	if o > MaxOrder {
		o = MaxOrder
	}
	return o
}

// OrderToSize returns the block size of the given buddy order.
func OrderToSize(order int) uint64 {
	return 1 << order
}

// ReadU64 decodes a little-endian intrusive link at off.
func ReadU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off:])
}

// PutU64 encodes a little-endian intrusive link at off.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:], v)
}
