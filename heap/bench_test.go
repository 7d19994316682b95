package heap

import (
	"testing"

	"github.com/osdevkit/heapkit/internal/format"
	"github.com/osdevkit/heapkit/irq"
	"github.com/osdevkit/heapkit/mem"
	"github.com/osdevkit/heapkit/paging"
)

func newBenchHeap(b *testing.B) *LockedAllocator {
	b.Helper()
	m := paging.NewSim(0x100000, 1<<24)
	l, err := Bootstrap(m, irq.NopGate{}, 0x100000, 1<<22)
	if err != nil {
		b.Fatal(err)
	}
	return l
}

func Benchmark_AllocFree_SmallObject(b *testing.B) {
	l := newBenchHeap(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		addr, err := l.Alloc(64, 8)
		if err != nil {
			b.Fatal(err)
		}
		l.Free(addr, 64, 8)
	}
}

func Benchmark_AllocFree_Page(b *testing.B) {
	l := newBenchHeap(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		addr, err := l.Alloc(format.PageSize, 1)
		if err != nil {
			b.Fatal(err)
		}
		l.Free(addr, format.PageSize, 1)
	}
}

func Benchmark_Alloc_MixedClasses(b *testing.B) {
	l := newBenchHeap(b)
	sizes := []uint64{8, 24, 100, 500, 1500, 4096}
	live := make([]mem.Address, 0, 64)
	liveSizes := make([]uint64, 0, 64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		size := sizes[i%len(sizes)]
		addr, err := l.Alloc(size, 8)
		if err != nil {
			b.Fatal(err)
		}
		live = append(live, addr)
		liveSizes = append(liveSizes, size)
		if len(live) == cap(live) {
			for j, a := range live {
				l.Free(a, liveSizes[j], 8)
			}
			live = live[:0]
			liveSizes = liveSizes[:0]
		}
	}
}
