package heap

import (
	"sync"

	"github.com/osdevkit/heapkit/irq"
	"github.com/osdevkit/heapkit/mem"
	"github.com/osdevkit/heapkit/paging"
)

// The process-wide allocator singleton. Created once by InitHeap during boot
// and never torn down. All ambient access goes through the package-level
// Alloc/Free entry points below; nothing outside this file touches the
// variable directly.
var (
	globalMu sync.Mutex
	global   *LockedAllocator
)

// InitHeap performs the one-time heap setup: it maps the fixed initial range
// [DefaultHeapStart, DefaultHeapStart+DefaultHeapSize) through the paging
// collaborator and installs the allocator singleton. It must be called after
// the paging collaborator is initialized and before any dynamic allocation.
// A mapping failure is fatal to boot; a second call returns
// ErrAlreadyInitialized.
func InitHeap(memory paging.Memory, gate irq.Gate) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		return ErrAlreadyInitialized
	}
	l, err := Bootstrap(memory, gate, DefaultHeapStart, DefaultHeapSize)
	if err != nil {
		return err
	}
	global = l
	return nil
}

// Global returns the process-wide allocator handle, or nil before InitHeap.
func Global() *LockedAllocator {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// Alloc reserves memory from the process-wide allocator.
func Alloc(size, align uint64) (mem.Address, error) {
	l := Global()
	if l == nil {
		return mem.NilAddress, ErrNotInitialized
	}
	return l.Alloc(size, align)
}

// Free releases memory to the process-wide allocator. size and align must
// match the Alloc call. Freeing through an uninitialized heap is a no-op;
// nothing can have been allocated from it.
func Free(addr mem.Address, size, align uint64) {
	if l := Global(); l != nil {
		l.Free(addr, size, align)
	}
}
