package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/osdevkit/heapkit/heap"
	"github.com/osdevkit/heapkit/irq"
	"github.com/osdevkit/heapkit/mem"
	"github.com/osdevkit/heapkit/paging"
)

var (
	stressOps         int
	stressSeed        int64
	stressMaxLive     int
	stressMaxSize     uint64
	stressReservation uint64
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVar(&stressOps, "ops", 50000, "Number of allocator operations to run")
	cmd.Flags().Int64Var(&stressSeed, "seed", 42, "RNG seed (runs are deterministic per seed)")
	cmd.Flags().IntVar(&stressMaxLive, "max-live", 512, "Maximum concurrently live allocations")
	cmd.Flags().Uint64Var(&stressMaxSize, "max-size", 8192, "Largest request size in bytes")
	cmd.Flags().Uint64Var(&stressReservation, "reservation", 64<<20, "Virtual reservation for pool growth (bytes)")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Run a randomized alloc/free workload with content verification",
		Long: `The stress command drives the allocator with a deterministic random mix of
allocations and frees. Every allocation is filled with a per-allocation byte
pattern that is verified just before the matching free, so any overlap or
corruption between live allocations is detected immediately.

Example:
  heapctl stress --ops 200000 --seed 7
  heapctl stress --max-live 64 --max-size 2048`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
}

type stressAllocation struct {
	addr  mem.Address
	size  uint64
	align uint64
	fill  byte
}

type stressStats struct {
	allocs         int
	frees          int
	failures       int
	bytesAllocated int64
	bytesFreed     int64
	peakLive       int
}

func runStress() error {
	if stressMaxSize < 16 {
		return fmt.Errorf("max-size must be at least 16, got %d", stressMaxSize)
	}
	m := paging.NewSim(heap.DefaultHeapStart, stressReservation)
	l, err := heap.Bootstrap(m, irq.NopGate{}, heap.DefaultHeapStart, heap.DefaultHeapSize)
	if err != nil {
		return fmt.Errorf("bootstrap heap: %w", err)
	}

	rng := rand.New(rand.NewSource(stressSeed))
	live := make([]stressAllocation, 0, stressMaxLive)
	var stats stressStats

	printVerbose("stress: %d ops, seed %d, pool %d bytes at %#x\n",
		stressOps, stressSeed, l.Size(), uint64(l.Start()))

	for i := 0; i < stressOps; i++ {
		if rng.Intn(10) < 7 && len(live) < stressMaxLive {
			size := 8 + uint64(rng.Int63n(int64(stressMaxSize-7)))
			align := uint64(1) << rng.Intn(4)
			addr, allocErr := l.Alloc(size, align)
			if allocErr != nil {
				stats.failures++
				continue
			}
			fill := byte(rng.Intn(256))
			payload := m.View(addr, size)
			for j := range payload {
				payload[j] = fill
			}
			live = append(live, stressAllocation{addr, size, align, fill})
			stats.allocs++
			stats.bytesAllocated += int64(size)
			if len(live) > stats.peakLive {
				stats.peakLive = len(live)
			}
		} else if len(live) > 0 {
			idx := rng.Intn(len(live))
			al := live[idx]
			payload := m.View(al.addr, al.size)
			for j, b := range payload {
				if b != al.fill {
					return fmt.Errorf("corruption at %#x+%d: got %#x, want %#x",
						uint64(al.addr), j, b, al.fill)
				}
			}
			l.Free(al.addr, al.size, al.align)
			live = append(live[:idx], live[idx+1:]...)
			stats.frees++
			stats.bytesFreed += int64(al.size)
		}
	}

	for _, al := range live {
		l.Free(al.addr, al.size, al.align)
		stats.frees++
		stats.bytesFreed += int64(al.size)
	}

	printSummary(l, &stats)
	return nil
}

func printSummary(l *heap.LockedAllocator, stats *stressStats) {
	p := message.NewPrinter(language.English)
	growth := l.GrowthStats()
	buddyStats := l.BuddyStats()

	p.Printf("=== Heap stress results ===\n")
	p.Printf("  Allocations:     %d\n", stats.allocs)
	p.Printf("  Frees:           %d\n", stats.frees)
	p.Printf("  Failed allocs:   %d\n", stats.failures)
	p.Printf("  Bytes allocated: %d\n", stats.bytesAllocated)
	p.Printf("  Bytes freed:     %d\n", stats.bytesFreed)
	p.Printf("  Peak live:       %d\n", stats.peakLive)
	p.Printf("  Pool size:       %d bytes (grew %d times, +%d bytes)\n",
		l.Size(), growth.GrowSuccess, growth.BytesGrown)
	p.Printf("  Buddy splits:    %d, coalesces: %d\n",
		buddyStats.Splits, buddyStats.Coalesces)
}
