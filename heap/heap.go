package heap

import (
	"github.com/osdevkit/heapkit/heap/buddy"
	"github.com/osdevkit/heapkit/heap/slab"
	"github.com/osdevkit/heapkit/internal/format"
	"github.com/osdevkit/heapkit/mem"
)

// Constants re-exported for callers that size their requests against the
// heap layout without reaching into internal packages.
const (
	PageSize         = format.PageSize
	MinOrder         = format.MinOrder
	MaxOrder         = format.MaxOrder
	MaxSlabSize      = format.MaxSlabSize
	DefaultHeapStart = format.DefaultHeapStart
	DefaultHeapSize  = format.DefaultHeapSize
)

// ClassSizes returns the slab size classes in ascending order.
func ClassSizes() []uint64 {
	sizes := make([]uint64, len(format.ClassSizes))
	copy(sizes, format.ClassSizes[:])
	return sizes
}

// Allocator routes requests between the slab caches and the buddy allocator.
// It owns exactly nine caches (one per size class) and one buddy instance,
// and carries no other state. It is not safe for concurrent use; the
// LockedAllocator provides the locking discipline.
type Allocator struct {
	caches [format.NumClasses]*slab.Cache
	buddy  *buddy.Allocator
}

// New returns an allocator with an empty pool over arena. Seed it with Init
// before allocating.
func New(arena mem.Arena) *Allocator {
	a := &Allocator{buddy: buddy.New(arena)}
	for i, cs := range format.ClassSizes {
		a.caches[i] = slab.NewCache(arena, cs)
	}
	return a
}

// Init seeds the backing pool. See buddy.Allocator.Init for preconditions.
func (a *Allocator) Init(start mem.Address, size uint64) {
	a.buddy.Init(start, size)
}

// AddMemory registers a freshly mapped range with the backing pool.
func (a *Allocator) AddMemory(start mem.Address, size uint64) {
	a.buddy.AddMemory(start, size)
}

// Start returns the fixed base address of the backing pool.
func (a *Allocator) Start() mem.Address {
	return a.buddy.Start()
}

// Size returns the current byte size of the backing pool.
func (a *Allocator) Size() uint64 {
	return a.buddy.Size()
}

// Allocate reserves memory for a request of the given size and power-of-two
// alignment. The effective size is max(size, align): rounding the request up
// to its alignment guarantees the placement is aligned, since both slab
// classes and buddy blocks are naturally aligned to their own size.
func (a *Allocator) Allocate(size, align uint64) (mem.Address, error) {
	effective := max(size, align)

	if effective <= format.MaxSlabSize {
		return a.caches[classIndex(effective)].Allocate(a.buddy)
	}
	return a.buddy.Allocate(effective)
}

// Deallocate releases an allocation. size and align must be exactly the
// values passed to the matching Allocate call: the routing decision is
// reconstructed from them alone, with no stored per-allocation metadata.
func (a *Allocator) Deallocate(addr mem.Address, size, align uint64) {
	effective := max(size, align)

	if effective <= format.MaxSlabSize {
		a.caches[classIndex(effective)].Deallocate(addr)
		return
	}
	a.buddy.Deallocate(addr, effective)
}

// BuddyStats returns the buddy layer's counters.
func (a *Allocator) BuddyStats() buddy.Stats {
	return a.buddy.Stats()
}

// CacheStats returns the slab counters keyed by class size.
func (a *Allocator) CacheStats() map[uint64]slab.Stats {
	stats := make(map[uint64]slab.Stats, format.NumClasses)
	for _, c := range a.caches {
		stats[c.ObjectSize()] = c.Stats()
	}
	return stats
}

// classIndex returns the smallest class covering size. Ascending linear scan;
// callers guarantee size <= MaxSlabSize so a match always exists.
func classIndex(size uint64) int {
	for i, cs := range format.ClassSizes {
		if size <= cs {
			return i
		}
	}
	panic("heap: no slab class for size") // unreachable given the 2048 ceiling
}
