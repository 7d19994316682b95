package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_AlignPage_Boundaries(t *testing.T) {
	require.Equal(t, uint64(0), AlignPage(0))
	require.Equal(t, uint64(PageSize), AlignPage(1))
	require.Equal(t, uint64(PageSize), AlignPage(PageSize))
	require.Equal(t, uint64(2*PageSize), AlignPage(PageSize+1))
}

func Test_AlignUp_PowersOfTwo(t *testing.T) {
	require.Equal(t, uint64(32), AlignUp(32, 8))
	require.Equal(t, uint64(40), AlignUp(33, 8))
	require.Equal(t, uint64(2048), AlignUp(32, 2048))
	require.Equal(t, uint64(64), AlignUp(33, 64))
}

func Test_NextPow2_Values(t *testing.T) {
	cases := map[uint64]uint64{
		0: 1, 1: 1, 2: 2, 3: 4, 4: 4, 5: 8,
		4095: 4096, 4096: 4096, 4097: 8192,
	}
	for in, want := range cases {
		require.Equal(t, want, NextPow2(in), "NextPow2(%d)", in)
	}
}

func Test_SizeToOrder_CeilLog2(t *testing.T) {
	require.Equal(t, MinOrder, SizeToOrder(PageSize))
	require.Equal(t, MinOrder+1, SizeToOrder(PageSize+1))
	require.Equal(t, MaxOrder, SizeToOrder(MaxBlockSize))
	require.Equal(t, MaxOrder+1, SizeToOrder(MaxBlockSize+1))
}

func Test_OrderFloor_CapsAtMaxOrder(t *testing.T) {
	require.Equal(t, MinOrder, OrderFloor(PageSize))
	require.Equal(t, MinOrder, OrderFloor(2*PageSize-1))
	require.Equal(t, MaxOrder, OrderFloor(MaxBlockSize))
	require.Equal(t, MaxOrder, OrderFloor(4*MaxBlockSize))
}

func Test_OrderRoundTrip(t *testing.T) {
	for o := MinOrder; o <= MaxOrder; o++ {
		require.Equal(t, o, SizeToOrder(OrderToSize(o)))
	}
}

func Test_LinkEncoding_RoundTrip(t *testing.T) {
	b := make([]byte, 16)
	PutU64(b, 4, 0x4444_4442_0000)
	require.Equal(t, uint64(0x4444_4442_0000), ReadU64(b, 4))
}

func Test_ClassSizes_AscendingAndPageDivisible(t *testing.T) {
	var prev uint64
	for _, cs := range ClassSizes {
		require.Greater(t, cs, prev)
		require.Zero(t, uint64(PageSize)%cs, "class %d must divide the page size", cs)
		prev = cs
	}
	require.Equal(t, uint64(MaxSlabSize), ClassSizes[NumClasses-1])
}
