//go:build linux

package paging

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/osdevkit/heapkit/internal/format"
	"github.com/osdevkit/heapkit/mem"
)

// MmapMemory backs the paging collaborator with a real virtual address range.
// The whole reservation is mmap'd PROT_NONE up front, so the kernel commits
// no frames until MapPage flips individual pages to read/write with mprotect.
// Heap addresses handed out by the allocator are then genuine addresses into
// this region, and a view obtained before a growth event stays valid after it.
type MmapMemory struct {
	base   mem.Address
	data   []byte
	mapped []bool
}

// NewMmap reserves a virtual range of reservation bytes. reservation must be
// a non-zero multiple of the page size.
func NewMmap(reservation uint64) (*MmapMemory, error) {
	if reservation == 0 || !format.IsAligned(reservation, format.PageSize) {
		return nil, fmt.Errorf("paging: mmap reservation %#x not page-aligned", reservation)
	}
	data, err := unix.Mmap(-1, 0, int(reservation),
		unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("paging: reserve %d bytes: %w", reservation, err)
	}
	base := mem.Address(uintptr(unsafe.Pointer(unsafe.SliceData(data))))
	return &MmapMemory{
		base:   base,
		data:   data,
		mapped: make([]bool, reservation/format.PageSize),
	}, nil
}

// Base returns the first address of the reserved range. mmap chooses the
// placement, so unlike SimMapper the base is only known after reservation.
func (m *MmapMemory) Base() mem.Address {
	return m.base
}

// MapPage makes one page of the reservation present and writable.
func (m *MmapMemory) MapPage(p mem.Page) error {
	idx, ok := m.pageIndex(p)
	if !ok {
		return &MapError{Page: p, Cause: ErrOutOfReservation}
	}
	if m.mapped[idx] {
		return nil
	}
	off := idx * format.PageSize
	if err := unix.Mprotect(m.data[off:off+format.PageSize], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return &MapError{Page: p, Cause: err}
	}
	m.mapped[idx] = true
	return nil
}

// View returns the bytes backing [addr, addr+size). The range must lie inside
// the reservation; touching an unmapped page faults, as it would in a kernel.
func (m *MmapMemory) View(addr mem.Address, size uint64) []byte {
	if size == 0 {
		return nil
	}
	off := uint64(addr - m.base)
	if addr < m.base || off+size > uint64(len(m.data)) {
		panic(fmt.Sprintf("paging: view [%#x,+%#x) outside reservation", uint64(addr), size))
	}
	return m.data[off : off+size : off+size]
}

// Close releases the reservation. The heap allocator never calls this; it
// exists for tooling that tears down a heap it created.
func (m *MmapMemory) Close() error {
	data := m.data
	m.data = nil
	m.mapped = nil
	return unix.Munmap(data)
}

func (m *MmapMemory) pageIndex(p mem.Page) (int, bool) {
	a := p.Address()
	if a < m.base || uint64(a-m.base) >= uint64(len(m.data)) {
		return 0, false
	}
	return int(uint64(a-m.base) >> format.PageShift), true
}
