// Package buddy implements the page-granularity binary buddy allocator that
// forms the bottom tier of the heap.
//
// # Overview
//
// The allocator manages the pool in power-of-two blocks from one 4 KiB page
// (order 12) up to one 2 MiB super-block (order 21). It keeps one intrusive
// free list per order: a free block's first eight bytes hold the address of
// the next free block of the same order, so the bookkeeping lives inside the
// free memory itself. Once a block is handed out the allocator never touches
// it again until it is freed.
//
// # Buddy rule
//
// For a block at relative offset r (from pool start) of size s = 2^o, its
// buddy sits at relative offset r XOR s. Two free buddies of the same order
// are always merged into one free block of order o+1 the moment either one
// is freed, so no coalescible pair is ever left resident in the free lists.
//
// # Failure semantics
//
// Allocate never panics. Exhaustion and over-sized requests are ordinary
// return values (ErrExhausted, ErrTooLarge); the growth wrapper in package
// heap consumes ErrExhausted to extend the pool and retry.
package buddy

import (
	"github.com/osdevkit/heapkit/internal/format"
	"github.com/osdevkit/heapkit/mem"
)

// Stats holds allocator counters for instrumentation and tests.
type Stats struct {
	AllocCalls     int   // Allocate calls
	FreeCalls      int   // Deallocate calls
	Splits         int   // block splits performed while allocating
	Coalesces      int   // buddy merges performed while freeing
	AddMemoryCalls int   // Init/AddMemory invocations
	BytesAdded     int64 // total bytes absorbed into the pool
	PagesSkipped   int   // fragment pages skipped for misalignment in AddMemory
}

// Allocator is a binary buddy allocator over a contiguous pool of mapped
// memory. The zero value is unusable; construct with New and seed the pool
// with Init or AddMemory.
type Allocator struct {
	arena     mem.Arena
	start     mem.Address
	size      uint64
	freeLists [format.NumOrders]mem.Address
	stats     Stats
}

// New returns an empty allocator whose intrusive lists live in arena.
func New(arena mem.Arena) *Allocator {
	return &Allocator{arena: arena}
}

// Start returns the fixed base address of the pool. It is set by the first
// Init/AddMemory call and never changes afterwards.
func (a *Allocator) Start() mem.Address {
	return a.start
}

// Size returns the number of bytes currently under the allocator's control.
// It only ever grows.
func (a *Allocator) Size() uint64 {
	return a.size
}

// Stats returns a snapshot of the allocator counters.
func (a *Allocator) Stats() Stats {
	return a.stats
}

// Init seeds the pool with its initial memory range. The caller must have
// ensured [start, start+size) is valid, mapped and unused. Equivalent to a
// single AddMemory call.
func (a *Allocator) Init(start mem.Address, size uint64) {
	a.AddMemory(start, size)
}

// AddMemory incorporates the range [start, start+size) into the pool. The
// range need not be a power of two in size nor aligned beyond page bounds:
// the cursor walks the range inserting the largest block the current address
// alignment and remaining size allow, and skips one page at a time when no
// block of at least minimum order fits the alignment. Growth regions can
// therefore be handed over exactly as mapped.
func (a *Allocator) AddMemory(start mem.Address, size uint64) {
	if a.start.IsNil() {
		a.start = start
	}
	a.stats.AddMemoryCalls++

	cur := start
	remaining := size
	for remaining >= format.PageSize {
		order := format.OrderFloor(remaining)
		for order >= format.MinOrder && !cur.IsAligned(format.OrderToSize(order)) {
			order--
		}
		if order < format.MinOrder {
			// No aligned block fits here; sacrifice one fragment page.
			cur += format.PageSize
			remaining -= format.PageSize
			a.stats.PagesSkipped++
			continue
		}

		block := format.OrderToSize(order)
		a.push(cur, order)
		cur += mem.Address(block)
		remaining -= block
		a.size += block
		a.stats.BytesAdded += int64(block)
	}
}

// Allocate reserves one block of at least size bytes, rounded up to a whole
// power-of-two block of at least one page. It scans the free lists from the
// target order upward, splitting the first block found back down to the
// target order. ErrExhausted signals the caller to grow the pool; ErrTooLarge
// rejects requests above the maximum block size.
func (a *Allocator) Allocate(size uint64) (mem.Address, error) {
	a.stats.AllocCalls++

	if size < format.PageSize {
		size = format.PageSize
	}
	order := format.SizeToOrder(size)
	if order > format.MaxOrder {
		return mem.NilAddress, ErrTooLarge
	}

	for cur := order; cur <= format.MaxOrder; cur++ {
		head := a.freeLists[cur-format.MinOrder]
		if head.IsNil() {
			continue
		}
		a.freeLists[cur-format.MinOrder] = a.next(head)
		a.split(head, cur, order)
		return head, nil
	}
	return mem.NilAddress, ErrExhausted
}

// Deallocate returns the block at addr to the pool. size must be the size
// passed to the matching Allocate call; it is rounded identically. The block
// is coalesced with its free buddy repeatedly, up to the maximum order, and
// the result is pushed onto the free list of the final order.
func (a *Allocator) Deallocate(addr mem.Address, size uint64) {
	a.stats.FreeCalls++

	if size < format.PageSize {
		size = format.PageSize
	}
	a.free(addr, format.SizeToOrder(size))
}

// split pushes the unused upper halves of a block of order from onto the
// intermediate free lists until the block is cut down to order to.
func (a *Allocator) split(addr mem.Address, from, to int) {
	for order := from; order > to; order-- {
		half := order - 1
		upper := addr + mem.Address(format.OrderToSize(half))
		a.push(upper, half)
		a.stats.Splits++
	}
}

// free inserts the block at addr of the given order, merging with its buddy
// as long as the buddy is itself free and inside the pool.
func (a *Allocator) free(addr mem.Address, order int) {
	for order < format.MaxOrder {
		bud := a.buddyOf(addr, format.OrderToSize(order))
		if bud < a.start || uint64(bud-a.start) >= a.size {
			break
		}
		if !a.remove(bud, order) {
			break
		}
		if bud < addr {
			addr = bud
		}
		order++
		a.stats.Coalesces++
	}
	a.push(addr, order)
}

// buddyOf applies the XOR rule on pool-relative offsets.
func (a *Allocator) buddyOf(addr mem.Address, blockSize uint64) mem.Address {
	return a.start + mem.Address(uint64(addr-a.start)^blockSize)
}

// push makes addr the head of the order's free list, writing the previous
// head into the block's link word.
func (a *Allocator) push(addr mem.Address, order int) {
	idx := order - format.MinOrder
	a.setNext(addr, a.freeLists[idx])
	a.freeLists[idx] = addr
}

// remove unlinks addr from the order's free list, reporting whether it was
// present. Linear scan; the lists stay short relative to the order range.
func (a *Allocator) remove(addr mem.Address, order int) bool {
	idx := order - format.MinOrder
	cur := a.freeLists[idx]
	if cur == addr {
		a.freeLists[idx] = a.next(cur)
		return true
	}
	for !cur.IsNil() {
		nxt := a.next(cur)
		if nxt == addr {
			a.setNext(cur, a.next(nxt))
			return true
		}
		cur = nxt
	}
	return false
}

func (a *Allocator) next(addr mem.Address) mem.Address {
	return mem.Address(format.ReadU64(a.arena.View(addr, format.LinkSize), 0))
}

func (a *Allocator) setNext(addr, next mem.Address) {
	format.PutU64(a.arena.View(addr, format.LinkSize), 0, uint64(next))
}

// FreeBlocks returns the addresses currently on the free list of the given
// order, in list order. Intended for tests and diagnostics.
func (a *Allocator) FreeBlocks(order int) []mem.Address {
	var blocks []mem.Address
	for cur := a.freeLists[order-format.MinOrder]; !cur.IsNil(); cur = a.next(cur) {
		blocks = append(blocks, cur)
	}
	return blocks
}

// FreeBytes returns the total number of free bytes across all orders.
func (a *Allocator) FreeBytes() uint64 {
	var total uint64
	for order := format.MinOrder; order <= format.MaxOrder; order++ {
		total += uint64(len(a.FreeBlocks(order))) * format.OrderToSize(order)
	}
	return total
}
