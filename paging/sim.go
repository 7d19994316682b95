package paging

import (
	"fmt"

	"github.com/osdevkit/heapkit/internal/format"
	"github.com/osdevkit/heapkit/mem"
)

// SimMapper simulates the paging collaborator in process memory. It reserves
// a fixed virtual range [base, base+reservation) and hands out pages from it
// on demand. The backing bytes for the whole reservation are allocated up
// front, so views returned for already-mapped pages stay valid and unmoved
// when later pages are mapped — the same guarantee real page mappings give.
type SimMapper struct {
	base    mem.Address
	backing []byte
	mapped  []bool

	// FailPage, when non-nil, is consulted before mapping; a non-nil return
	// fails the mapping with that cause. Used by tests to simulate frame
	// exhaustion at chosen points.
	FailPage func(p mem.Page) error
}

// NewSim reserves a simulated virtual range of reservation bytes starting at
// base. base must be page-aligned and non-nil; reservation must be a non-zero
// multiple of the page size.
func NewSim(base mem.Address, reservation uint64) *SimMapper {
	if base.IsNil() || !base.IsAligned(format.PageSize) {
		panic(fmt.Sprintf("paging: sim base %#x not page-aligned", uint64(base)))
	}
	if reservation == 0 || !format.IsAligned(reservation, format.PageSize) {
		panic(fmt.Sprintf("paging: sim reservation %#x not page-aligned", reservation))
	}
	return &SimMapper{
		base:    base,
		backing: make([]byte, reservation),
		mapped:  make([]bool, reservation/format.PageSize),
	}
}

// Base returns the first address of the reserved range.
func (m *SimMapper) Base() mem.Address {
	return m.base
}

// MapPage marks one page of the reservation as present and writable.
// Mapping an already-mapped page succeeds and leaves its contents intact.
func (m *SimMapper) MapPage(p mem.Page) error {
	idx, ok := m.pageIndex(p)
	if !ok {
		return &MapError{Page: p, Cause: ErrOutOfReservation}
	}
	if m.FailPage != nil {
		if cause := m.FailPage(p); cause != nil {
			return &MapError{Page: p, Cause: cause}
		}
	}
	m.mapped[idx] = true
	return nil
}

// Mapped reports whether page p is currently mapped.
func (m *SimMapper) Mapped(p mem.Page) bool {
	idx, ok := m.pageIndex(p)
	return ok && m.mapped[idx]
}

// MappedPages returns the number of currently mapped pages.
func (m *SimMapper) MappedPages() int {
	n := 0
	for _, ok := range m.mapped {
		if ok {
			n++
		}
	}
	return n
}

// View returns the bytes backing [addr, addr+size). Every page the range
// touches must be mapped; touching an unmapped page is the simulated
// equivalent of a page fault and panics.
func (m *SimMapper) View(addr mem.Address, size uint64) []byte {
	if size == 0 {
		return nil
	}
	first, last := mem.PageSpan(addr, size)
	for p := first; p <= last; p++ {
		idx, ok := m.pageIndex(p)
		if !ok || !m.mapped[idx] {
			panic(fmt.Sprintf("paging: fault at %#x: page %#x not mapped",
				uint64(addr), uint64(p.Address())))
		}
	}
	off := uint64(addr - m.base)
	return m.backing[off : off+size : off+size]
}

func (m *SimMapper) pageIndex(p mem.Page) (int, bool) {
	a := p.Address()
	if a < m.base || uint64(a-m.base) >= uint64(len(m.backing)) {
		return 0, false
	}
	return int(uint64(a-m.base) >> format.PageShift), true
}
