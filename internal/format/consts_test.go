package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassIndex(t *testing.T) {
	cases := []struct {
		n    int
		size int
	}{
		{0, 16},
		{1, 16},
		{15, 16},
		{16, 16},
		{17, 32},
		{32, 32},
		{33, 64},
		{100, 128},
		{1024, 1024},
		{1025, 2048},
		{2048, 2048},
	}

	for _, tc := range cases {
		idx, ok := ClassIndex(tc.n)
		require.True(t, ok, "ClassIndex(%d) should be in range", tc.n)
		assert.Equal(t, tc.size, ClassSize(idx), "ClassIndex(%d)", tc.n)
	}
}

func TestClassIndex_OutOfRange(t *testing.T) {
	_, ok := ClassIndex(2049)
	assert.False(t, ok, "2049 exceeds the largest slot size")

	_, ok = ClassIndex(1 << 20)
	assert.False(t, ok)
}

func TestSlotSizes_Table(t *testing.T) {
	require.Len(t, SlotSizes, NumClasses)
	assert.Equal(t, MinSlotSize, SlotSizes[0])
	assert.Equal(t, MaxSlotSize, SlotSizes[NumClasses-1])

	for i, size := range SlotSizes {
		assert.True(t, IsPowerOfTwo(uintptr(size)), "class %d size %d", i, size)
		if i > 0 {
			assert.Equal(t, SlotSizes[i-1]*2, size, "classes must double")
		}
		assert.Zero(t, PageSize%size, "slot size %d must divide the page size", size)
	}
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uintptr(16), AlignUp(1, 16))
	assert.Equal(t, uintptr(16), AlignUp(16, 16))
	assert.Equal(t, uintptr(32), AlignUp(17, 16))
	assert.Equal(t, uintptr(0), AlignUp(0, 4096))
	assert.Equal(t, uintptr(4096), AlignUp(1, 4096))
}

func TestPageHelpers(t *testing.T) {
	assert.Equal(t, uintptr(0), PageBase(4095))
	assert.Equal(t, uintptr(4096), PageBase(4096))
	assert.Equal(t, uintptr(4096), PageBase(8191))

	assert.Equal(t, 1, PagesFor(1))
	assert.Equal(t, 1, PagesFor(4096))
	assert.Equal(t, 2, PagesFor(4097))
}
