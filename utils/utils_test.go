package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUtils(t *testing.T) {

	t.Run("BitReverse64", func(t *testing.T) {
		require.Equal(t, uint64(0b100), BitReverse64(0b001, 3))
		require.Equal(t, uint64(0b011), BitReverse64(0b110, 3))
		require.Equal(t, uint64(0), BitReverse64(0, 10))
	})

	t.Run("BitReverseInPlaceSlice", func(t *testing.T) {
		s := []int{0, 1, 2, 3, 4, 5, 6, 7}
		BitReverseInPlaceSlice(s, len(s))
		require.Equal(t, []int{0, 4, 2, 6, 1, 5, 3, 7}, s)
	})

	t.Run("RotateSlice", func(t *testing.T) {
		s := []int{0, 1, 2, 3, 4}
		require.Equal(t, []int{2, 3, 4, 0, 1}, RotateSlice(s, 2))
		require.Equal(t, []int{4, 0, 1, 2, 3}, RotateSlice(s, -1))
		require.Equal(t, s, RotateSlice(s, 10))
		require.Equal(t, []int{1, 2, 3, 0, 5, 6, 7, 4}, RotateSlotsNew([]int{0, 1, 2, 3, 4, 5, 6, 7}, 1))
	})

	t.Run("Integer", func(t *testing.T) {
		require.Equal(t, 6, GCD(12, 18))
		require.True(t, IsPowerOfTwo(uint64(1024)))
		require.False(t, IsPowerOfTwo(12))
		require.False(t, IsPowerOfTwo(0))
		require.Equal(t, 7, MaxSlice([]int{3, 7, 1}))
		require.True(t, AllDistinct([]uint64{1, 2, 3}))
		require.False(t, AllDistinct([]uint64{1, 2, 1}))
	})

	t.Run("GetSortedKeys", func(t *testing.T) {
		m := map[int]bool{5: true, 1: false, 3: true}
		require.Equal(t, []int{1, 3, 5}, GetSortedKeys(m))
	})
}
