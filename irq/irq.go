// Package irq abstracts interrupt masking for the heap's critical sections.
//
// On a single core, interrupt handlers can interleave with any in-progress
// allocator call and may themselves allocate. The allocator therefore holds
// its lock with interrupt delivery disabled, restoring the prior enable state
// on exit; otherwise a handler arriving mid-allocation would spin on a lock
// its own core already holds. On hosted targets there is no interrupt
// delivery to mask and NopGate stands in for the real thing.
package irq

import "sync/atomic"

// State is the saved interrupt-enable state captured by Gate.Disable and
// passed back to Gate.Restore.
type State uint64

// Gate disables and restores interrupt delivery around a critical section.
//
// Usage:
//
//	st := gate.Disable()
//	defer gate.Restore(st)
//
// Restore must be reached on every path out of the section, error paths
// included.
type Gate interface {
	// Disable masks interrupt delivery and returns the state to restore.
	Disable() State

	// Restore re-establishes the interrupt-enable state captured by the
	// matching Disable call. Disable/Restore pairs nest.
	Restore(s State)
}

// NopGate is the Gate for hosted environments without interrupt delivery.
type NopGate struct{}

func (NopGate) Disable() State { return 0 }
func (NopGate) Restore(State)  {}

// CountingGate tracks Disable/Restore nesting depth. Tests use it to assert
// that every allocator entry point masks interrupts for its whole body and
// unwinds the mask on every exit path.
type CountingGate struct {
	depth    atomic.Int64
	disables atomic.Int64
}

// Disable increments the nesting depth and returns the previous depth.
func (g *CountingGate) Disable() State {
	g.disables.Add(1)
	return State(g.depth.Add(1) - 1)
}

// Restore decrements the nesting depth back toward the saved state.
func (g *CountingGate) Restore(State) {
	g.depth.Add(-1)
}

// Depth returns the current nesting depth. Zero means interrupts would be
// deliverable again.
func (g *CountingGate) Depth() int64 {
	return g.depth.Load()
}

// Disables returns the total number of Disable calls observed.
func (g *CountingGate) Disables() int64 {
	return g.disables.Load()
}
