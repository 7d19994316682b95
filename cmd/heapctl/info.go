package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/osdevkit/heapkit/heap"
	"github.com/osdevkit/heapkit/heap/slab"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the heap layout constants",
		Long: `The info command prints the compile-time layout of the heap: the buddy
order range, the slab size classes with their per-page slot counts, and the
default heap placement.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
}

func runInfo() error {
	fmt.Printf("Heap layout\n")
	fmt.Printf("  Page size:          %d bytes\n", heap.PageSize)
	fmt.Printf("  Buddy orders:       %d..%d (%d bytes .. %d bytes per block)\n",
		heap.MinOrder, heap.MaxOrder, 1<<heap.MinOrder, 1<<heap.MaxOrder)
	fmt.Printf("  Slab ceiling:       %d bytes\n", heap.MaxSlabSize)
	fmt.Printf("  Default heap:       %#x (+%d bytes)\n",
		uint64(heap.DefaultHeapStart), heap.DefaultHeapSize)

	fmt.Printf("\nSlab classes\n")
	fmt.Printf("  %8s  %8s  %8s\n", "size", "slots", "waste")
	for _, cs := range heap.ClassSizes() {
		slots := slab.SlotsPerPage(cs)
		waste := heap.PageSize - slots*cs
		fmt.Printf("  %8d  %8d  %8d\n", cs, slots, waste)
	}
	return nil
}
