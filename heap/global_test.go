package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osdevkit/heapkit/internal/format"
	"github.com/osdevkit/heapkit/irq"
	"github.com/osdevkit/heapkit/paging"
)

// The singleton can only be initialized once per process, so its whole
// lifecycle is exercised in a single ordered test.
func Test_InitHeap_SingletonLifecycle(t *testing.T) {
	// Before InitHeap the package-level entry points refuse to allocate.
	require.Nil(t, Global())
	_, err := Alloc(64, 8)
	require.ErrorIs(t, err, ErrNotInitialized)

	m := paging.NewSim(DefaultHeapStart, 1<<20)
	require.NoError(t, InitHeap(m, irq.NopGate{}))

	l := Global()
	require.NotNil(t, l)
	require.EqualValues(t, DefaultHeapStart, l.Start())
	require.EqualValues(t, DefaultHeapSize, l.Size())
	require.Equal(t, format.DefaultHeapSize/format.PageSize, m.MappedPages())

	addr, err := Alloc(64, 8)
	require.NoError(t, err)
	require.True(t, addr.IsAligned(8))
	Free(addr, 64, 8)

	// The heap lives for the rest of the process; a second init is a bug.
	require.ErrorIs(t, InitHeap(m, irq.NopGate{}), ErrAlreadyInitialized)
}
