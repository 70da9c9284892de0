package hebase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/hetile/core/rlwe"
)

func TestConfigRequirement(t *testing.T) {

	t.Run("Default/CKKS", func(t *testing.T) {
		lit, err := LiteralFromRequirement(rlwe.CKKS, DefaultConfigRequirement())
		require.NoError(t, err)
		require.Equal(t, 1<<14, lit.M)
		require.Equal(t, []int{48, 38, 38, 38}, lit.LogQ)
		require.Equal(t, []int{61}, lit.LogSpecial)
		require.Equal(t, 38, lit.LogDefaultScale)
		require.GreaterOrEqual(t, rlwe.EstimateSecurity(lit.M>>1, 48+3*38+61), 128.0)

		ctx, err := rlwe.NewContextFromLiteral(lit)
		require.NoError(t, err)
		require.True(t, (&HeContext{ctx: ctx}).IsSecure())
	})

	t.Run("Default/BGV", func(t *testing.T) {
		lit, err := LiteralFromRequirement(rlwe.BGV, DefaultConfigRequirement())
		require.NoError(t, err)
		require.Equal(t, 1<<15, lit.M)
		require.Equal(t, uint64(65537), lit.P)
		require.Equal(t, []int{50, 49, 49, 49}, lit.LogQ)
	})

	t.Run("Infeasible", func(t *testing.T) {
		req := DefaultConfigRequirement()
		req.PlaintextPrime = 257
		require.False(t, IsConfigRequirementFeasible(rlwe.BGV, req))

		req.PlaintextPrime = 65536
		require.False(t, IsConfigRequirementFeasible(rlwe.BGV, req))

		req = DefaultConfigRequirement()
		req.FractionalPartPrecision = 5
		require.False(t, IsConfigRequirementFeasible(rlwe.CKKS, req))

		req = DefaultConfigRequirement()
		req.SecurityLevel = 10000
		_, err := LiteralFromRequirement(rlwe.CKKS, req)
		require.ErrorIs(t, err, rlwe.ErrConfiguration)
	})

	t.Run("NewHeContextFromRequirement", func(t *testing.T) {
		req := ConfigRequirement{
			IntegerPartPrecision:    10,
			FractionalPartPrecision: 30,
			NumSlots:                8,
			MultiplicationDepth:     2,
		}

		he, err := NewHeContextFromRequirement(rlwe.CKKS, req)
		require.NoError(t, err)
		require.Equal(t, 8, he.SlotCount())
		require.Equal(t, 2, he.TopChainIndex())
		require.Equal(t, float64(1<<30), he.DefaultScale())

		enc := NewEncoder(he)
		values := []float64{0.5, -0.25, 0.125}
		c, err := enc.EncodeEncrypt(values)
		require.NoError(t, err)
		require.NoError(t, c.Multiply(c.CopyNew()))
		require.NoError(t, enc.AssertEquals(c, "square", []float64{0.25, 0.0625, 0.015625}, 1e-3))
	})
}
