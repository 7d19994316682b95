// Package slab implements the fixed-size-class object allocator layered on
// top of the buddy allocator.
//
// # Overview
//
// Each cache serves one object size. It carves whole pages obtained from the
// buddy layer into slabs: a 32-byte header followed by as many object slots
// as fit on the page. Free slots form an intrusive list through their first
// eight bytes, and the slabs of a cache sit on exactly one of two lists,
// partial (slots still free) or full (none free). A slab that becomes
// entirely free stays with its cache; pages are never handed back to the
// buddy layer.
//
// # Slab header
//
//	Offset  Size  Field
//	0x00    8     next slab address (partial/full list link)
//	0x08    8     free-slot list head address
//	0x10    8     free slot count
//	0x18    8     object size
//
// Object slots start at the first object-size boundary at or after the
// header, so every slot is naturally aligned to its class size.
//
// # Ownership of freed objects
//
// Deallocate infers the owning slab purely from the pointer's page base.
// Passing an address that was not returned by the same cache corrupts the
// slab; that misuse is a precondition violation the layer cannot detect.
package slab

import (
	"github.com/osdevkit/heapkit/internal/format"
	"github.com/osdevkit/heapkit/mem"
)

// Header field offsets within a slab page.
const (
	offNext       = 0
	offFreeHead   = 8
	offFreeCount  = 16
	offObjectSize = 24
)

// PageSource supplies the single pages backing new slabs. The buddy allocator
// satisfies it; tests substitute fakes.
type PageSource interface {
	Allocate(size uint64) (mem.Address, error)
}

// SlotsPerPage returns the number of object slots a slab page of the given
// class size holds.
func SlotsPerPage(objectSize uint64) uint64 {
	dataStart := format.AlignUp(format.SlabHeaderSize, objectSize)
	return (format.PageSize - dataStart) / objectSize
}

// Stats holds per-cache counters for instrumentation and tests.
type Stats struct {
	AllocCalls   int // Allocate calls
	FreeCalls    int // Deallocate calls
	SlabsCreated int // pages requested from the buddy layer
	Promotions   int // partial -> full moves
	Demotions    int // full -> partial moves
}

// Cache allocates objects of one fixed size from a set of slabs.
type Cache struct {
	arena      mem.Arena
	objectSize uint64
	partial    mem.Address // head of the partial slab list
	full       mem.Address // head of the full slab list
	stats      Stats
}

// NewCache returns an empty cache for the given object size. objectSize must
// be one of the configured class sizes: a power of two between 8 and 2048.
func NewCache(arena mem.Arena, objectSize uint64) *Cache {
	return &Cache{arena: arena, objectSize: objectSize}
}

// ObjectSize returns the fixed object size served by this cache.
func (c *Cache) ObjectSize() uint64 {
	return c.objectSize
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

// Allocate returns one object slot. The partial list head is tried first; if
// the cache has no partial slab, a fresh page is requested from pages and
// laid out as a new slab. Errors from the page source (notably buddy
// exhaustion) propagate unchanged so the growth wrapper can react.
func (c *Cache) Allocate(pages PageSource) (mem.Address, error) {
	c.stats.AllocCalls++

	if !c.partial.IsNil() {
		s := c.view(c.partial)
		if obj := s.popSlot(); !obj.IsNil() {
			if s.freeCount() == 0 {
				c.partial = s.next()
				s.setNext(c.full)
				c.full = s.base
				c.stats.Promotions++
			}
			return obj, nil
		}
	}

	page, err := pages.Allocate(format.PageSize)
	if err != nil {
		return mem.NilAddress, err
	}
	s := c.initSlab(page)
	c.stats.SlabsCreated++

	obj := s.popSlot()
	if s.freeCount() == 0 {
		// Single-slot slab (the 2048-byte class): already full.
		s.setNext(c.full)
		c.full = s.base
		c.stats.Promotions++
	} else {
		s.setNext(c.partial)
		c.partial = s.base
	}
	return obj, nil
}

// Deallocate returns an object slot to its owning slab, located from the
// slot's page base. A slab that was full moves back to the partial list.
func (c *Cache) Deallocate(addr mem.Address) {
	c.stats.FreeCalls++

	s := c.view(addr.PageBase())
	wasFull := s.freeCount() == 0
	s.pushSlot(addr)

	if wasFull {
		c.removeSlab(&c.full, s.base)
		s.setNext(c.partial)
		c.partial = s.base
		c.stats.Demotions++
	}
}

// PartialSlabs returns the page bases on the partial list, in list order.
// Intended for tests and diagnostics.
func (c *Cache) PartialSlabs() []mem.Address {
	return c.slabList(c.partial)
}

// FullSlabs returns the page bases on the full list, in list order.
func (c *Cache) FullSlabs() []mem.Address {
	return c.slabList(c.full)
}

// FreeObjects returns the total number of free slots across all slabs.
func (c *Cache) FreeObjects() uint64 {
	var total uint64
	for _, base := range c.PartialSlabs() {
		total += c.view(base).freeCount()
	}
	return total
}

func (c *Cache) slabList(head mem.Address) []mem.Address {
	var bases []mem.Address
	for cur := head; !cur.IsNil(); cur = c.view(cur).next() {
		bases = append(bases, cur)
	}
	return bases
}

// removeSlab unlinks target from the list rooted at *head. A miss is a no-op.
func (c *Cache) removeSlab(head *mem.Address, target mem.Address) {
	if *head == target {
		*head = c.view(target).next()
		return
	}
	for cur := *head; !cur.IsNil(); {
		s := c.view(cur)
		if s.next() == target {
			s.setNext(c.view(target).next())
			return
		}
		cur = s.next()
	}
}

// initSlab lays a fresh slab out over one page: header first, then the free
// slot list threaded through every slot in ascending address order.
func (c *Cache) initSlab(base mem.Address) slabView {
	s := slabView{arena: c.arena, base: base}

	dataStart := base + mem.Address(format.AlignUp(format.SlabHeaderSize, c.objectSize))
	dataEnd := base + format.PageSize
	count := uint64(dataEnd-dataStart) / c.objectSize

	free := mem.NilAddress
	for i := count; i > 0; i-- {
		obj := dataStart + mem.Address((i-1)*c.objectSize)
		format.PutU64(c.arena.View(obj, format.LinkSize), 0, uint64(free))
		free = obj
	}

	s.setNext(mem.NilAddress)
	s.setFreeHead(free)
	s.setFreeCount(count)
	s.setObjectSize(c.objectSize)
	return s
}

func (c *Cache) view(base mem.Address) slabView {
	return slabView{arena: c.arena, base: base}
}

// slabView is a typed view over the header embedded at the start of a slab
// page. It owns no memory; all state lives in the page bytes.
type slabView struct {
	arena mem.Arena
	base  mem.Address
}

func (s slabView) next() mem.Address {
	return mem.Address(s.read(offNext))
}

func (s slabView) setNext(next mem.Address) {
	s.write(offNext, uint64(next))
}

func (s slabView) freeHead() mem.Address {
	return mem.Address(s.read(offFreeHead))
}

func (s slabView) setFreeHead(head mem.Address) {
	s.write(offFreeHead, uint64(head))
}

func (s slabView) freeCount() uint64 {
	return s.read(offFreeCount)
}

func (s slabView) setFreeCount(n uint64) {
	s.write(offFreeCount, n)
}

func (s slabView) objectSize() uint64 {
	return s.read(offObjectSize)
}

func (s slabView) setObjectSize(n uint64) {
	s.write(offObjectSize, n)
}

// popSlot takes the head of the slab's free-slot list, or nil if none left.
func (s slabView) popSlot() mem.Address {
	head := s.freeHead()
	if head.IsNil() {
		return mem.NilAddress
	}
	next := mem.Address(format.ReadU64(s.arena.View(head, format.LinkSize), 0))
	s.setFreeHead(next)
	s.setFreeCount(s.freeCount() - 1)
	return head
}

// pushSlot returns a slot to the head of the slab's free-slot list.
func (s slabView) pushSlot(obj mem.Address) {
	format.PutU64(s.arena.View(obj, format.LinkSize), 0, uint64(s.freeHead()))
	s.setFreeHead(obj)
	s.setFreeCount(s.freeCount() + 1)
}

func (s slabView) read(off int) uint64 {
	return format.ReadU64(s.arena.View(s.base+mem.Address(off), format.LinkSize), 0)
}

func (s slabView) write(off int, v uint64) {
	format.PutU64(s.arena.View(s.base+mem.Address(off), format.LinkSize), 0, v)
}
