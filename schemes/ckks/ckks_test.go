package ckks

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/utils"
)

var flagParamString = flag.String("params", "", "specify the test cryptographic parameters as a JSON rlwe.ContextLiteral. Overrides the default test parameters.")

var testLiterals = []rlwe.ContextLiteral{
	{Scheme: rlwe.CKKS, M: 64, LogQ: []int{55, 40, 40, 40}, LogSpecial: []int{60}},
	{Scheme: rlwe.CKKS, M: 128, LogQ: []int{55, 45, 45, 45}, LogSpecial: []int{60, 60}, C: 2},
}

// testRotations are the rotations exercised by the tests.
var testRotations = []int{1, 3, 5, -1}

func name(op string, tc *TestContext, lvl int) string {
	return fmt.Sprintf("%s/%s/lvl=%d", op, tc, lvl)
}

func TestCKKS(t *testing.T) {

	literals := testLiterals

	if *flagParamString != "" {
		var lit rlwe.ContextLiteral
		if err := json.Unmarshal([]byte(*flagParamString), &lit); err != nil {
			t.Fatal(err)
		}
		literals = []rlwe.ContextLiteral{lit}
	}

	for _, lit := range literals {

		tc, err := NewTestContext(lit, testRotations...)
		require.NoError(t, err)

		for _, testSet := range []func(tc *TestContext, t *testing.T){
			testEncryptedArray,
			testEvaluator,
			testRotate,
			testScale,
		} {
			testSet(tc, t)
			runtime.GC()
		}

		testRotateAll(lit, t)
	}

	testEncryptedArrayErrors(t)
	testPrecisionStats(t)
}

func addSlots(a, b []complex128) (c []complex128) {
	c = make([]complex128, len(a))
	for i := range a {
		c[i] = a[i] + b[i]
	}
	return
}

func mulSlots(a, b []complex128) (c []complex128) {
	c = make([]complex128, len(a))
	for i := range a {
		c[i] = a[i] * b[i]
	}
	return
}

func testEncryptedArray(tc *TestContext, t *testing.T) {

	lvl := tc.Ctx.MaxLevel()

	t.Run(name("EncryptedArray/FFT", tc, lvl), func(t *testing.T) {
		values, _, _ := tc.NewTestVector(t, lvl, false)
		have := make([]complex128, len(values))
		copy(have, values)
		tc.EA.ifft(have)
		tc.EA.fft(have)
		prec, err := GetPrecisionStats(values, have)
		require.NoError(t, err)
		require.GreaterOrEqual(t, prec.MINLog2Prec.L2, 40.0)
	})

	t.Run(name("EncryptedArray/Encode", tc, lvl), func(t *testing.T) {
		values, pt, _ := tc.NewTestVector(t, lvl, false)
		require.Equal(t, lvl, pt.Level())
		require.Equal(t, tc.Ctx.DefaultScale(), pt.Scale)
		tc.VerifyTestVectors(t, pt, values, 30)
	})

	t.Run(name("EncryptedArray/Encrypt", tc, lvl), func(t *testing.T) {
		values, _, ct := tc.NewTestVector(t, lvl, true)
		require.Equal(t, tc.Ctx.DefaultScale(), ct.Scale)
		tc.VerifyTestVectors(t, ct, values, 20)
	})

	t.Run(name("EncryptedArray/Float64", tc, lvl), func(t *testing.T) {
		values := make([]float64, tc.EA.Slots()/2)
		for i := range values {
			values[i] = tc.RandFloat64(-8, 8)
		}
		pt, err := tc.EA.EncodeNew(values, lvl, tc.Ctx.DefaultScale())
		require.NoError(t, err)

		have, err := tc.EA.DecodeReal(pt)
		require.NoError(t, err)
		require.Len(t, have, tc.EA.Slots())

		for i := range have {
			var want float64
			if i < len(values) {
				want = values[i]
			}
			require.InDelta(t, want, have[i], 1e-6)
		}
	})

	t.Run(name("EncryptedArray/SlotOverflow", tc, lvl), func(t *testing.T) {
		_, err := tc.EA.EncodeNew(make([]float64, tc.EA.Slots()+1), lvl, tc.Ctx.DefaultScale())
		require.True(t, errors.Is(err, rlwe.ErrSlotOverflow))
	})

	t.Run(name("EncryptedArray/Overflow", tc, 0), func(t *testing.T) {
		_, err := tc.EA.EncodeNew([]float64{1 << 40}, 0, tc.Ctx.DefaultScale())
		require.True(t, errors.Is(err, rlwe.ErrCapacityExhausted))
	})

	t.Run(name("EncryptedArray/NotFinite", tc, lvl), func(t *testing.T) {
		_, err := tc.EA.EncodeNew([]float64{1, math.NaN()}, lvl, tc.Ctx.DefaultScale())
		require.Error(t, err)
	})

	t.Run(name("EncryptedArray/InvalidLevel", tc, lvl), func(t *testing.T) {
		_, err := tc.EA.EncodeNew([]float64{1}, lvl+1, tc.Ctx.DefaultScale())
		require.True(t, errors.Is(err, rlwe.ErrLevelMismatch))
	})
}

func testEncryptedArrayErrors(t *testing.T) {
	ctx, err := rlwe.NewContextFromLiteral(rlwe.ContextLiteral{Scheme: rlwe.BGV, M: 64, P: 257, LogQ: []int{40, 40}, LogSpecial: []int{45}})
	require.NoError(t, err)
	_, err = NewEncryptedArray(ctx)
	require.True(t, errors.Is(err, rlwe.ErrConfiguration))
}

func testEvaluator(tc *TestContext, t *testing.T) {

	lvl := tc.Ctx.MaxLevel()

	t.Run(name("Evaluator/Add", tc, lvl), func(t *testing.T) {
		v0, _, ct0 := tc.NewTestVector(t, lvl, true)
		v1, _, ct1 := tc.NewTestVector(t, lvl, true)
		ct, err := tc.Evl.AddNew(ct0, ct1)
		require.NoError(t, err)
		tc.VerifyTestVectors(t, ct, addSlots(v0, v1), 20)
	})

	t.Run(name("Evaluator/MulRelinRescale", tc, lvl), func(t *testing.T) {
		v0, _, ct0 := tc.NewTestVector(t, lvl, true)
		v1, _, ct1 := tc.NewTestVector(t, lvl, true)
		ct, err := tc.Evl.MulRelinRescaleNew(ct0, ct1)
		require.NoError(t, err)
		require.Equal(t, lvl-1, ct.Level())
		require.True(t, ct.IsCanonical())
		tc.VerifyTestVectors(t, ct, mulSlots(v0, v1), 15)
	})

	t.Run(name("Evaluator/MulRelinRescale/Level0", tc, 0), func(t *testing.T) {
		_, _, ct0 := tc.NewTestVector(t, 0, true)
		_, err := tc.Evl.MulRelinRescaleNew(ct0, ct0)
		require.True(t, errors.Is(err, rlwe.ErrCapacityExhausted))
	})

	t.Run(name("Evaluator/MultiplyScalar", tc, lvl), func(t *testing.T) {
		c := complex(0.5, -0.25)
		values, _, ct := tc.NewTestVector(t, lvl, true)
		res, err := tc.Evl.MultiplyScalarNew(ct, c)
		require.NoError(t, err)
		require.Equal(t, lvl-1, res.Level())
		require.Equal(t, ct.Scale, res.Scale)
		want := make([]complex128, len(values))
		for i := range values {
			want[i] = values[i] * c
		}
		tc.VerifyTestVectors(t, res, want, 15)
	})

	t.Run(name("Evaluator/AddConst", tc, lvl), func(t *testing.T) {
		c := complex(-1.5, 2)
		values, _, ct := tc.NewTestVector(t, lvl, true)
		res, err := tc.Evl.AddConstNew(ct, c)
		require.NoError(t, err)
		require.Equal(t, lvl, res.Level())
		want := make([]complex128, len(values))
		for i := range values {
			want[i] = values[i] + c
		}
		tc.VerifyTestVectors(t, res, want, 20)
	})

	t.Run(name("Evaluator/MultiplyByChangingScale", tc, lvl), func(t *testing.T) {
		values, _, ct := tc.NewTestVector(t, lvl, true)
		res := &rlwe.Ciphertext{}
		require.NoError(t, tc.Evl.MultiplyByChangingScale(ct, 4, res))
		require.Equal(t, ct.Scale/4, res.Scale)
		want := make([]complex128, len(values))
		for i := range values {
			want[i] = values[i] * 4
		}
		tc.VerifyTestVectors(t, res, want, 15)
		require.Error(t, tc.Evl.MultiplyByChangingScale(ct, 0, res))
	})
}

// testRotateAll checks every rotation k in [-N, 2N) against the plain
// rotation of the N slots, with the keys of all the rotations.
func testRotateAll(lit rlwe.ContextLiteral, t *testing.T) {

	ctx, err := rlwe.NewContextFromLiteral(lit)
	require.NoError(t, err)
	ea, err := NewEncryptedArray(ctx)
	require.NoError(t, err)

	N := ea.Slots()
	all := make([]int, N)
	for k := range all {
		all[k] = k
	}

	tc, err := NewTestContext(lit, all...)
	require.NoError(t, err)

	lvl := tc.Ctx.MaxLevel()

	t.Run(name("Evaluator/Rotate/All", tc, lvl), func(t *testing.T) {
		values, _, ct := tc.NewTestVector(t, lvl, true)
		for k := -N; k < 2*N; k++ {
			res, err := tc.Evl.RotateNew(ct, k)
			require.NoError(t, err, "k=%d", k)
			tc.VerifyTestVectors(t, res, utils.RotateSlice(values, k), 20)
		}
	})
}

func testRotate(tc *TestContext, t *testing.T) {

	lvl := tc.Ctx.MaxLevel()

	for _, k := range testRotations {
		t.Run(name(fmt.Sprintf("Evaluator/Rotate/k=%d", k), tc, lvl), func(t *testing.T) {
			values, _, ct := tc.NewTestVector(t, lvl, true)
			res, err := tc.Evl.RotateNew(ct, k)
			require.NoError(t, err)
			tc.VerifyTestVectors(t, res, utils.RotateSlice(values, k), 20)
		})
	}

	t.Run(name("Evaluator/Rotate/k=0", tc, lvl), func(t *testing.T) {
		values, _, ct := tc.NewTestVector(t, lvl, true)
		res, err := tc.Evl.RotateNew(ct, tc.EA.Slots())
		require.NoError(t, err)
		tc.VerifyTestVectors(t, res, values, 20)
	})

	t.Run(name("Evaluator/Rotate/MissingKey", tc, lvl), func(t *testing.T) {
		_, _, ct := tc.NewTestVector(t, lvl, true)
		_, err := tc.Evl.RotateNew(ct, 2)
		require.True(t, errors.Is(err, rlwe.ErrKeyMaterial))
	})

	t.Run(name("Evaluator/Conjugate", tc, lvl), func(t *testing.T) {
		values, _, ct := tc.NewTestVector(t, lvl, true)
		res, err := tc.Evl.ConjugateNew(ct)
		require.NoError(t, err)
		want := make([]complex128, len(values))
		for i := range values {
			want[i] = complex(real(values[i]), -imag(values[i]))
		}
		tc.VerifyTestVectors(t, res, want, 20)
	})
}

func testScale(tc *TestContext, t *testing.T) {

	lvl := tc.Ctx.MaxLevel()

	t.Run(name("Evaluator/SetScale", tc, lvl), func(t *testing.T) {
		values, _, ct := tc.NewTestVector(t, lvl, true)
		scale := math.Exp2(35)
		res, err := tc.Evl.SetScaleNew(ct, scale, lvl-2)
		require.NoError(t, err)
		require.Equal(t, lvl-2, res.Level())
		require.InEpsilon(t, scale, res.Scale, 1e-6)
		tc.VerifyTestVectors(t, res, values, 15)

		_, err = tc.Evl.SetScaleNew(ct, scale, lvl)
		require.True(t, errors.Is(err, rlwe.ErrLevelMismatch))
	})

	t.Run(name("Evaluator/Align/Levels", tc, lvl), func(t *testing.T) {
		v0, _, ct0 := tc.NewTestVector(t, lvl, true)
		v1, _, ct1 := tc.NewTestVector(t, lvl, true)
		prod, err := tc.Evl.MulRelinRescaleNew(ct1, ct1)
		require.NoError(t, err)

		a, b, err := tc.Evl.Align(ct0, prod)
		require.NoError(t, err)
		require.Equal(t, a.Level(), b.Level())
		require.InEpsilon(t, a.Scale, b.Scale, rlwe.ScaleTolerance)

		res := &rlwe.Ciphertext{}
		require.NoError(t, tc.Evl.AddAligned(ct0, prod, res))
		tc.VerifyTestVectors(t, res, addSlots(v0, mulSlots(v1, v1)), 15)

		require.NoError(t, tc.Evl.SubAligned(prod, ct0, res))
		want := make([]complex128, len(v0))
		for i := range want {
			want[i] = v1[i]*v1[i] - v0[i]
		}
		tc.VerifyTestVectors(t, res, want, 15)
	})

	t.Run(name("Evaluator/Align/Scales", tc, lvl), func(t *testing.T) {
		v0, _, ct0 := tc.NewTestVector(t, lvl, true)
		v1, _, ct1 := tc.NewTestVector(t, lvl, true)
		require.NoError(t, tc.Evl.MultiplyByChangingScale(ct1, 2, ct1))

		a, b, err := tc.Evl.Align(ct0, ct1)
		require.NoError(t, err)
		require.Equal(t, lvl-1, a.Level())
		require.Equal(t, lvl-1, b.Level())

		res := &rlwe.Ciphertext{}
		require.NoError(t, tc.Evl.Add(a, b, res))
		want := make([]complex128, len(v0))
		for i := range want {
			want[i] = v0[i] + 2*v1[i]
		}
		tc.VerifyTestVectors(t, res, want, 15)
	})

	t.Run(name("Evaluator/Align/Level0", tc, 0), func(t *testing.T) {
		_, _, ct0 := tc.NewTestVector(t, 0, true)
		_, _, ct1 := tc.NewTestVector(t, 0, true)
		require.NoError(t, tc.Evl.MultiplyByChangingScale(ct1, 2, ct1))
		_, _, err := tc.Evl.Align(ct0, ct1)
		require.True(t, errors.Is(err, rlwe.ErrScaleMismatch))
	})
}

func testPrecisionStats(t *testing.T) {

	t.Run("PrecisionStats/Exact", func(t *testing.T) {
		v := []complex128{1, 2i, 3}
		prec, err := GetPrecisionStats(v, v)
		require.NoError(t, err)
		require.Equal(t, float64(maxLog2Prec), prec.MINLog2Prec.L2)
		require.Equal(t, 0.0, prec.MAXAbsErr)
	})

	t.Run("PrecisionStats/Error", func(t *testing.T) {
		prec, err := GetPrecisionStats([]complex128{1, 1}, []complex128{1 + 1.0/1024, 1 - 1.0/1024})
		require.NoError(t, err)
		require.InDelta(t, 10, prec.AVGLog2Prec.Real, 1e-9)
		require.InDelta(t, 1.0/1024, prec.MAXAbsErr, 1e-12)
	})

	t.Run("PrecisionStats/Length", func(t *testing.T) {
		_, err := GetPrecisionStats([]complex128{1}, []complex128{1, 2})
		require.Error(t, err)
	})
}
