// Package heap provides the kernel's two-tier heap allocator: a nine-class
// slab allocator for small objects layered over a binary buddy allocator for
// page-granularity blocks, with a locked, growable entry point on top.
//
// # Overview
//
// A request enters the LockedAllocator, which serializes access and masks
// interrupts for the duration of the call. The inner Allocator routes it by
// effective size (max of size and alignment): requests of at most 2048 bytes
// go to the smallest slab class that covers them, larger requests go straight
// to the buddy layer. When the buddy pool is exhausted the LockedAllocator
// asks the paging collaborator to map fresh pages immediately after the
// current end of the pool, registers them with the buddy allocator, and
// retries the request exactly once.
//
// # Layers
//
//	LockedAllocator   lock + interrupt gate + growth
//	Allocator         size-class routing
//	slab.Cache ×9     8 B .. 2048 B object classes
//	buddy.Allocator   4 KiB .. 2 MiB power-of-two blocks
//
// # Usage
//
// Kernel code uses the process-wide singleton, initialized exactly once
// during boot after the paging collaborator is ready:
//
//	if err := heap.InitHeap(memory, gate); err != nil {
//	    // fatal: no dynamic memory available
//	}
//	addr, err := heap.Alloc(64, 8)
//	...
//	heap.Free(addr, 64, 8)
//
// Free must receive the exact size and alignment used at allocation time;
// the routing decision is reconstructed from them and nothing else.
//
// # Failure semantics
//
// Exhaustion of the current pool is not an error: it triggers growth. Only
// when the paging collaborator cannot map the needed range, or the retry
// still fails, does Alloc return ErrOutOfMemory. The allocator never panics
// on exhaustion and never corrupts state on a failed allocation.
package heap
