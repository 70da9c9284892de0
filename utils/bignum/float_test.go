package bignum

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBignum(t *testing.T) {

	t.Run("Log2", func(t *testing.T) {
		require.InDelta(t, 10.0, Log2(big.NewInt(1024)), 1e-12)
		require.InDelta(t, math.Log2(12345), Log2(big.NewInt(12345)), 1e-12)
		huge := new(big.Int).Lsh(big.NewInt(3), 2000)
		require.InDelta(t, 2000+math.Log2(3), Log2(huge), 1e-9)
	})

	t.Run("Round", func(t *testing.T) {
		require.Equal(t, int64(3), Round(NewFloat(2.5, 64)).Int64())
		require.Equal(t, int64(-3), Round(NewFloat(-2.5, 64)).Int64())
		require.Equal(t, int64(2), Round(NewFloat(2.49, 64)).Int64())
	})

	t.Run("DivRound", func(t *testing.T) {
		for _, c := range [][3]int64{{7, 2, 4}, {-7, 2, -4}, {5, 3, 2}, {-5, 3, -2}, {4, 3, 1}} {
			require.Equal(t, c[2], DivRound(big.NewInt(c[0]), big.NewInt(c[1]), new(big.Int)).Int64())
		}
	})

	t.Run("Center", func(t *testing.T) {
		Q := big.NewInt(17)
		require.Equal(t, int64(-1), Center(big.NewInt(16), Q).Int64())
		require.Equal(t, int64(8), Center(big.NewInt(8), Q).Int64())
		require.Equal(t, int64(-8), Center(big.NewInt(9), Q).Int64())
	})
}
