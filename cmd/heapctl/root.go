package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Inspect and stress the heapkit two-tier allocator",
	Long: `heapctl hosts the heapkit kernel heap allocator on a simulated paging
collaborator and drives workloads against it.

The allocator under test is the real production stack: the buddy page
allocator, the nine slab size classes, the routing combinator and the locked
growth wrapper, exactly as a kernel would use them.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Printf(format, args...)
	}
}
