package irq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_CountingGate_Nesting(t *testing.T) {
	var g CountingGate

	s1 := g.Disable()
	require.Equal(t, State(0), s1)
	require.Equal(t, int64(1), g.Depth())

	s2 := g.Disable()
	require.Equal(t, State(1), s2)
	require.Equal(t, int64(2), g.Depth())

	g.Restore(s2)
	g.Restore(s1)
	require.Equal(t, int64(0), g.Depth())
	require.Equal(t, int64(2), g.Disables())
}

func Test_NopGate_Implements(t *testing.T) {
	var _ Gate = NopGate{}
	var _ Gate = &CountingGate{}
}
