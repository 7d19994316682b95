package heap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osdevkit/heapkit/internal/format"
	"github.com/osdevkit/heapkit/mem"
	"github.com/osdevkit/heapkit/paging"
)

// newHeap maps a pool at base and returns a seeded routing allocator.
func newHeap(t *testing.T, base mem.Address, size uint64) (*Allocator, *paging.SimMapper) {
	t.Helper()
	m := paging.NewSim(base, size)
	first, last := mem.PageSpan(base, size)
	for p := first; p <= last; p++ {
		require.NoError(t, m.MapPage(p))
	}
	a := New(m)
	a.Init(base, size)
	return a, m
}

func Test_Allocate_RoutesToSmallestCoveringClass(t *testing.T) {
	a, _ := newHeap(t, 0x100000, 64*format.PageSize)

	// Two back-to-back allocations of 9 bytes must come from the 16-byte
	// class: consecutive slots of a fresh slab are exactly 16 bytes apart.
	first, err := a.Allocate(9, 1)
	require.NoError(t, err)
	second, err := a.Allocate(9, 1)
	require.NoError(t, err)
	require.Equal(t, first.PageBase(), second.PageBase())
	require.EqualValues(t, 16, second-first,
		"9-byte requests belong to the 16-byte class, not 8 or 32")
}

func Test_Allocate_AlignmentRaisesEffectiveSize(t *testing.T) {
	a, _ := newHeap(t, 0x100000, 64*format.PageSize)

	// An 8-byte request with 256-byte alignment routes to the 256 class.
	first, err := a.Allocate(8, 256)
	require.NoError(t, err)
	require.True(t, first.IsAligned(256))
	second, err := a.Allocate(8, 256)
	require.NoError(t, err)
	require.EqualValues(t, 256, second-first)

	// Page alignment forces the request past the slab ceiling to the buddy.
	page, err := a.Allocate(8, format.PageSize)
	require.NoError(t, err)
	require.True(t, page.IsAligned(format.PageSize))
}

func Test_Allocate_RoutingBoundaryAt2048(t *testing.T) {
	a, _ := newHeap(t, 0x100000, 64*format.PageSize)

	// 2048 bytes is slab territory; its slot sits past the slab header.
	slabObj, err := a.Allocate(2048, 1)
	require.NoError(t, err)
	require.False(t, slabObj.IsAligned(format.PageSize),
		"2048-byte allocations come from a slab slot, not a raw page")
	a.Deallocate(slabObj, 2048, 1)

	// 4096 bytes must be served by the buddy layer directly.
	buddyBlock, err := a.Allocate(4096, 1)
	require.NoError(t, err)
	require.True(t, buddyBlock.IsAligned(format.PageSize))
	require.NotEqual(t, slabObj.PageBase(), buddyBlock,
		"the slab page stays with its cache and cannot back a buddy block")
}

func Test_Deallocate_MirrorsRouting(t *testing.T) {
	a, _ := newHeap(t, 0x100000, 64*format.PageSize)

	obj, err := a.Allocate(9, 1)
	require.NoError(t, err)
	a.Deallocate(obj, 9, 1)

	// The freed slot is reused immediately, proving the free reached the
	// same class the allocation came from.
	again, err := a.Allocate(9, 1)
	require.NoError(t, err)
	require.Equal(t, obj, again)
}

func Test_Allocate_NoOverlapAcrossLayers(t *testing.T) {
	a, _ := newHeap(t, 0x800000, 512*format.PageSize)

	rng := rand.New(rand.NewSource(42))
	type allocation struct {
		addr     mem.Address
		size, al uint64
		lo, hi   uint64
	}
	var live []allocation

	footprint := func(addr mem.Address, size, align uint64) (uint64, uint64) {
		effective := max(size, align)
		if effective <= format.MaxSlabSize {
			for _, cs := range ClassSizes() {
				if effective <= cs {
					effective = cs
					break
				}
			}
		} else {
			effective = format.NextPow2(effective)
		}
		return uint64(addr), uint64(addr) + effective
	}

	for i := 0; i < 800; i++ {
		if rng.Intn(3) != 0 || len(live) == 0 {
			size := uint64(1 + rng.Intn(6000))
			align := uint64(1) << rng.Intn(4)
			addr, err := a.Allocate(size, align)
			if err != nil {
				continue
			}
			lo, hi := footprint(addr, size, align)
			for _, other := range live {
				require.False(t, lo < other.hi && other.lo < hi,
					"allocation [%#x,%#x) overlaps [%#x,%#x)", lo, hi, other.lo, other.hi)
			}
			live = append(live, allocation{addr, size, align, lo, hi})
		} else {
			idx := rng.Intn(len(live))
			al := live[idx]
			a.Deallocate(al.addr, al.size, al.al)
			live = append(live[:idx], live[idx+1:]...)
		}
	}
}

func Test_CacheStats_TracksPerClassTraffic(t *testing.T) {
	a, _ := newHeap(t, 0x100000, 64*format.PageSize)

	for i := 0; i < 5; i++ {
		_, err := a.Allocate(100, 1) // 128 class
		require.NoError(t, err)
	}
	stats := a.CacheStats()
	require.Equal(t, 5, stats[128].AllocCalls)
	require.Equal(t, 1, stats[128].SlabsCreated)
	require.Zero(t, stats[64].AllocCalls)
}
