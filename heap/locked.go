package heap

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/osdevkit/heapkit/heap/buddy"
	"github.com/osdevkit/heapkit/internal/format"
	"github.com/osdevkit/heapkit/irq"
	"github.com/osdevkit/heapkit/mem"
	"github.com/osdevkit/heapkit/paging"
)

// Runtime debug flag for growth logging - controlled by HEAP_LOG_ALLOC env var.
var logAlloc = os.Getenv("HEAP_LOG_ALLOC") != ""

// GrowthStats holds counters for the growth path.
type GrowthStats struct {
	GrowAttempts int   // exhaustion events that entered the growth path
	GrowSuccess  int   // growth attempts whose whole range mapped
	PagesMapped  int   // pages successfully mapped during growth
	BytesGrown   int64 // bytes registered with the pool by growth
}

// LockedAllocator is the process-wide entry point: one Allocator behind a
// mutual-exclusion lock, with on-demand pool growth through the paging
// collaborator.
//
// Every entry point masks interrupts before taking the lock and restores the
// prior state on exit, error paths included. Interrupt handlers and
// cooperative tasks share one core and may themselves allocate; without the
// mask, a handler arriving while the lock is held would spin on a lock its
// own core can never release.
type LockedAllocator struct {
	mu     sync.Mutex
	gate   irq.Gate
	mapper paging.Mapper
	inner  *Allocator
	growth GrowthStats
}

// NewLocked wraps a fresh Allocator over memory. The pool starts empty; seed
// it with Init, or use Bootstrap to map and seed in one step.
func NewLocked(memory paging.Memory, gate irq.Gate) *LockedAllocator {
	return &LockedAllocator{
		gate:   gate,
		mapper: memory,
		inner:  New(memory),
	}
}

// Bootstrap maps the range [start, start+size) page by page and returns a
// LockedAllocator seeded with it. This is the one-time setup path used at
// boot: it must run after the paging collaborator is initialized and before
// any allocation.
func Bootstrap(memory paging.Memory, gate irq.Gate, start mem.Address, size uint64) (*LockedAllocator, error) {
	first, last := mem.PageSpan(start, size)
	for p := first; p <= last; p++ {
		if err := memory.MapPage(p); err != nil {
			return nil, fmt.Errorf("heap: map initial range: %w", err)
		}
	}
	l := NewLocked(memory, gate)
	l.Init(start, size)
	return l, nil
}

// Init seeds the backing pool under the lock.
func (l *LockedAllocator) Init(start mem.Address, size uint64) {
	st := l.gate.Disable()
	defer l.gate.Restore(st)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inner.Init(start, size)
}

// Alloc reserves memory for the given size and power-of-two alignment. On
// pool exhaustion it grows the pool by mapping fresh pages immediately after
// the current end and retries once; if mapping any page fails, or the retry
// still fails, the caller sees ErrOutOfMemory.
func (l *LockedAllocator) Alloc(size, align uint64) (mem.Address, error) {
	st := l.gate.Disable()
	defer l.gate.Restore(st)
	l.mu.Lock()
	defer l.mu.Unlock()

	addr, err := l.inner.Allocate(size, align)
	if err == nil {
		return addr, nil
	}
	if !errors.Is(err, buddy.ErrExhausted) {
		// Requests above the maximum block size cannot be helped by growth.
		return mem.NilAddress, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}

	if growErr := l.grow(size, align); growErr != nil {
		return mem.NilAddress, growErr
	}

	addr, err = l.inner.Allocate(size, align)
	if err != nil {
		return mem.NilAddress, fmt.Errorf("%w: retry after growth failed: %v", ErrOutOfMemory, err)
	}
	return addr, nil
}

// Free releases an allocation. size and align must match the Alloc call.
func (l *LockedAllocator) Free(addr mem.Address, size, align uint64) {
	st := l.gate.Disable()
	defer l.gate.Restore(st)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inner.Deallocate(addr, size, align)
}

// Start returns the fixed base address of the backing pool.
func (l *LockedAllocator) Start() mem.Address {
	st := l.gate.Disable()
	defer l.gate.Restore(st)
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.inner.Start()
}

// Size returns the current byte size of the backing pool.
func (l *LockedAllocator) Size() uint64 {
	st := l.gate.Disable()
	defer l.gate.Restore(st)
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.inner.Size()
}

// GrowthStats returns a snapshot of the growth counters.
func (l *LockedAllocator) GrowthStats() GrowthStats {
	st := l.gate.Disable()
	defer l.gate.Restore(st)
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.growth
}

// BuddyStats returns the buddy layer's counters.
func (l *LockedAllocator) BuddyStats() buddy.Stats {
	st := l.gate.Disable()
	defer l.gate.Restore(st)
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.inner.BuddyStats()
}

// grow extends the pool by one power-of-two block sized to cover the failed
// request, mapped immediately after the current pool end. Called with the
// lock held. Any single page failing to map fails the whole attempt; pages
// mapped before the failure stay mapped but are never registered with the
// pool (see the package documentation on growth).
func (l *LockedAllocator) grow(size, align uint64) error {
	l.growth.GrowAttempts++

	blockSize := format.NextPow2(max(size, align))
	if blockSize < format.PageSize {
		blockSize = format.PageSize
	}
	end := l.inner.Start() + mem.Address(l.inner.Size())

	if logAlloc {
		fmt.Fprintf(os.Stderr, "[HEAP] grow #%d: need=%d -> mapping %d bytes at %#x\n",
			l.growth.GrowAttempts, size, blockSize, uint64(end))
	}

	first, last := mem.PageSpan(end, blockSize)
	for p := first; p <= last; p++ {
		if err := l.mapper.MapPage(p); err != nil {
			if logAlloc {
				fmt.Fprintf(os.Stderr, "[HEAP] grow failed: %v\n", err)
			}
			return fmt.Errorf("%w: grow pool: %v", ErrOutOfMemory, err)
		}
		l.growth.PagesMapped++
	}

	l.inner.AddMemory(end, blockSize)
	l.growth.GrowSuccess++
	l.growth.BytesGrown += int64(blockSize)
	return nil
}
