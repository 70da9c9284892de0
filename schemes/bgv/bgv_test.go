package bgv

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/utils"
)

var flagParamString = flag.String("params", "", "specify the test cryptographic parameters as a JSON rlwe.ContextLiteral. Overrides the default test parameters.")

var testLiterals = []rlwe.ContextLiteral{
	{Scheme: rlwe.BGV, M: 64, P: 257, LogQ: []int{50, 40, 40, 40, 40}, LogSpecial: []int{60}},
	{Scheme: rlwe.BGV, M: 64, P: 257, R: 2, LogQ: []int{50, 45, 45, 45}, LogSpecial: []int{60, 60}, C: 2},
}

func name(op string, tc *TestContext, lvl int) string {
	return fmt.Sprintf("%s/%s/lvl=%d", op, tc, lvl)
}

// testRotations are the rotations exercised by the tests, for M=64 (N=32 slots).
var testRotations = []int{1, 3, 15, 16, 17, 31, -1, -5}

func TestBGV(t *testing.T) {

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
			testPower,
		} {
			testSet(tc, t)
			runtime.GC()
		}

		testRotateAll(lit, t)
	}

	testEncryptedArrayErrors(t)
}

func mulSlots(a, b []uint64, T uint64) (c []uint64) {
	c = make([]uint64, len(a))
	for i := range a {
		c[i] = new(big.Int).Mod(new(big.Int).Mul(new(big.Int).SetUint64(a[i]), new(big.Int).SetUint64(b[i])), new(big.Int).SetUint64(T)).Uint64()
	}
	return
}

func addSlots(a, b []uint64, T uint64) (c []uint64) {
	c = make([]uint64, len(a))
	for i := range a {
		c[i] = (a[i] + b[i]) % T
	}
	return
}

func testEncryptedArray(tc *TestContext, t *testing.T) {

	T := tc.EA.PlaintextModulus()

	for _, lvl := range []int{0, tc.Ctx.MaxLevel()} {

		t.Run(name("EncryptedArray/Uint", tc, lvl), func(t *testing.T) {
			values, pt, _ := tc.NewTestVector(t, lvl, false)
			require.Equal(t, lvl, pt.Level())
			tc.VerifyTestVectors(t, pt, values)
		})

		t.Run(name("EncryptedArray/Int", tc, lvl), func(t *testing.T) {
			values := make([]int64, tc.EA.Slots())
			for i := range values {
				values[i] = int64(uint64(i*i*7)%T) - int64(T/2)
			}
			pt, err := tc.EA.EncodeNew(values, lvl)
			require.NoError(t, err)
			have, err := tc.EA.DecodeInt(pt)
			require.NoError(t, err)
			require.Equal(t, values, have)
		})

		t.Run(name("EncryptedArray/Encrypt", tc, lvl), func(t *testing.T) {
			values, _, ct := tc.NewTestVector(t, lvl, true)
			tc.VerifyTestVectors(t, ct, values)
		})
	}

	t.Run(name("EncryptedArray/Padding", tc, 0), func(t *testing.T) {
		pt, err := tc.EA.EncodeNew([]uint64{1, 2, 3}, 0)
		require.NoError(t, err)
		want := make([]uint64, tc.EA.Slots())
		want[0], want[1], want[2] = 1, 2, 3
		tc.VerifyTestVectors(t, pt, want)
	})

	t.Run(name("EncryptedArray/Constant", tc, 0), func(t *testing.T) {
		// the constant polynomial c has c in every slot
		pt, err := tc.EA.EncodeNew([]uint64{}, tc.Ctx.MaxLevel())
		require.NoError(t, err)
		pt.Value.AddScalar(pt.Value, 42)
		want := make([]uint64, tc.EA.Slots())
		for i := range want {
			want[i] = 42
		}
		tc.VerifyTestVectors(t, pt, want)
	})

	t.Run(name("EncryptedArray/SlotOverflow", tc, 0), func(t *testing.T) {
		_, err := tc.EA.EncodeNew(make([]uint64, tc.EA.Slots()+1), 0)
		require.True(t, errors.Is(err, rlwe.ErrSlotOverflow))
		_, err = tc.EA.EncodeNew([]float64{1}, 0)
		require.Error(t, err)
		_, err = tc.EA.EncodeNew([]uint64{1}, tc.Ctx.MaxLevel()+1)
		require.Error(t, err)
	})

	t.Run(name("EncryptedArray/Hensel", tc, 0), func(t *testing.T) {
		require.Equal(t, tc.Ctx.PlaintextModulus(), T)
		psi, err := henselRoot(tc.Ctx.PlaintextPrime(), tc.Ctx.HenselLifting(), tc.Ctx.M())
		require.NoError(t, err)
		TBig := new(big.Int).SetUint64(T)
		x := new(big.Int).Exp(psi, big.NewInt(int64(tc.Ctx.N())), TBig)
		require.Equal(t, T-1, x.Uint64())
	})

	t.Run(name("EncryptedArray/NTT", tc, 0), func(t *testing.T) {
		p := make([]uint64, tc.EA.Slots())
		for i := range p {
			p[i] = uint64(i*31+5) % T
		}
		q := append([]uint64{}, p...)
		tc.EA.slots.ntt(q)
		tc.EA.slots.intt(q)
		require.Equal(t, p, q)
	})

	t.Run(name("EncryptedArray/GaloisElements", tc, 0), func(t *testing.T) {
		r := tc.Ctx.Ring()
		half := tc.EA.RowSize()
		require.Empty(t, tc.EA.GaloisElementsForRotation(0, tc.EA.Slots()))
		require.Equal(t, []uint64{r.GaloisElementForConjugate()}, tc.EA.GaloisElementsForRotation(half))
		require.ElementsMatch(t, []uint64{r.GaloisElement(1), r.GaloisElementForConjugate()}, tc.EA.GaloisElementsForRotation(1, half+1))
		require.Equal(t, []uint64{r.GaloisElement(3)}, tc.EA.GaloisElementsForRowRotation(3, 3, half))
	})
}

func testEncryptedArrayErrors(t *testing.T) {

	t.Run("EncryptedArray/Errors", func(t *testing.T) {

		ctx, err := rlwe.NewContextFromLiteral(rlwe.ContextLiteral{Scheme: rlwe.CKKS, M: 64, LogQ: []int{50, 40}, LogSpecial: []int{55}})
		require.NoError(t, err)
		_, err = NewEncryptedArray(ctx)
		require.True(t, errors.Is(err, rlwe.ErrConfiguration))

		// 127 = -1 mod 64, so t = 127^2 = 1 mod 64 but the slots do not split
		ctx, err = rlwe.NewContextFromLiteral(rlwe.ContextLiteral{Scheme: rlwe.BGV, M: 64, P: 127, R: 2, LogQ: []int{50, 40}, LogSpecial: []int{55}})
		require.NoError(t, err)
		_, err = NewEncryptedArray(ctx)
		require.True(t, errors.Is(err, rlwe.ErrConfiguration))
	})
}

func testEvaluator(tc *TestContext, t *testing.T) {

	T := tc.EA.PlaintextModulus()
	lvl := tc.Ctx.MaxLevel()

	t.Run(name("Evaluator/Add", tc, lvl), func(t *testing.T) {
		v0, _, ct0 := tc.NewTestVector(t, lvl, true)
		v1, _, ct1 := tc.NewTestVector(t, lvl, true)
		ct, err := tc.Evl.AddNew(ct0, ct1)
		require.NoError(t, err)
		tc.VerifyTestVectors(t, ct, addSlots(v0, v1, T))
	})

	t.Run(name("Evaluator/AddPlain", tc, lvl), func(t *testing.T) {
		v0, _, ct0 := tc.NewTestVector(t, lvl, true)
		v1, pt1, _ := tc.NewTestVector(t, lvl, false)
		ct, err := tc.Evl.AddPlainNew(ct0, pt1)
		require.NoError(t, err)
		tc.VerifyTestVectors(t, ct, addSlots(v0, v1, T))
	})

	t.Run(name("Evaluator/MulPlain", tc, lvl), func(t *testing.T) {
		v0, _, ct0 := tc.NewTestVector(t, lvl, true)
		v1, pt1, _ := tc.NewTestVector(t, lvl, false)
		ct, err := tc.Evl.MulPlainNew(ct0, pt1)
		require.NoError(t, err)
		tc.VerifyTestVectors(t, ct, mulSlots(v0, v1, T))
	})

	t.Run(name("Evaluator/Scalar", tc, lvl), func(t *testing.T) {
		v0, _, ct0 := tc.NewTestVector(t, lvl, true)
		ct, err := tc.Evl.MulScalarNew(ct0, big.NewInt(3))
		require.NoError(t, err)
		require.NoError(t, tc.Evl.AddScalar(ct, big.NewInt(-1), ct))
		want := make([]uint64, len(v0))
		for i := range want {
			want[i] = (3*v0[i] + T - 1) % T
		}
		tc.VerifyTestVectors(t, ct, want)
	})

	t.Run(name("Evaluator/MulRelinRescale", tc, lvl), func(t *testing.T) {
		v0, _, ct0 := tc.NewTestVector(t, lvl, true)
		v1, _, ct1 := tc.NewTestVector(t, lvl-1, true)
		ct, err := tc.Evl.MulRelinRescaleNew(ct0, ct1)
		require.NoError(t, err)
		require.Equal(t, lvl-2, ct.Level())
		require.True(t, ct.IsCanonical())
		tc.VerifyTestVectors(t, ct, mulSlots(v0, v1, T))
	})

	t.Run(name("Evaluator/Rescale/Add", tc, lvl), func(t *testing.T) {
		// the factors of ciphertexts rescaled along different paths are aligned by Add
		v0, _, ct0 := tc.NewTestVector(t, lvl, true)
		v1, _, ct1 := tc.NewTestVector(t, lvl, true)
		r0, err := tc.Evl.RescaleNew(ct0)
		require.NoError(t, err)
		r1, err := tc.Evl.ReduceChainIndexNew(ct1, lvl-1)
		require.NoError(t, err)
		ct, err := tc.Evl.AddNew(r0, r1)
		require.NoError(t, err)
		tc.VerifyTestVectors(t, ct, addSlots(v0, v1, T))
	})

	t.Run(name("Evaluator/Align", tc, lvl), func(t *testing.T) {
		_, _, ct0 := tc.NewTestVector(t, lvl, true)
		_, _, ct1 := tc.NewTestVector(t, 1, true)
		a, b, err := tc.Evl.Align(ct0, ct1)
		require.NoError(t, err)
		require.Equal(t, 1, a.Level())
		require.Equal(t, 1, b.Level())
		require.True(t, b == ct1)
	})
}

func testRotate(tc *TestContext, t *testing.T) {

	lvl := tc.Ctx.MaxLevel()

	for _, k := range testRotations {
		t.Run(name(fmt.Sprintf("Evaluator/Rotate/k=%d", k), tc, lvl), func(t *testing.T) {
			values, _, ct := tc.NewTestVector(t, lvl, true)
			res, err := tc.Evl.RotateNew(ct, k)
			require.NoError(t, err)
			require.Equal(t, lvl, res.Level())
			tc.VerifyTestVectors(t, res, utils.RotateSlice(values, k))
		})
	}

	t.Run(name("Evaluator/Rotate/k=0", tc, lvl), func(t *testing.T) {
		values, _, ct := tc.NewTestVector(t, lvl, true)
		res, err := tc.Evl.RotateNew(ct, tc.EA.Slots())
		require.NoError(t, err)
		tc.VerifyTestVectors(t, res, values)
	})

	t.Run(name("Evaluator/Rotate/Inplace", tc, lvl), func(t *testing.T) {
		values, _, ct := tc.NewTestVector(t, lvl, true)
		require.NoError(t, tc.Evl.Rotate(ct, 3, ct))
		tc.VerifyTestVectors(t, ct, utils.RotateSlice(values, 3))
	})

	t.Run(name("Evaluator/RotateRows", tc, lvl), func(t *testing.T) {
		values, _, ct := tc.NewTestVector(t, lvl, true)
		res, err := tc.Evl.RotateRowsNew(ct, 3)
		require.NoError(t, err)
		tc.VerifyTestVectors(t, res, utils.RotateSlotsNew(values, 3))
	})

	t.Run(name("Evaluator/SwapRows", tc, lvl), func(t *testing.T) {
		values, _, ct := tc.NewTestVector(t, lvl, true)
		res, err := tc.Evl.SwapRowsNew(ct)
		require.NoError(t, err)
		half := tc.EA.RowSize()
		tc.VerifyTestVectors(t, res, append(append([]uint64{}, values[half:]...), values[:half]...))
	})

	t.Run(name("Evaluator/Rotate/MissingKey", tc, lvl), func(t *testing.T) {
		_, _, ct := tc.NewTestVector(t, lvl, true)
		_, err := tc.Evl.RotateNew(ct, 2)
		require.True(t, errors.Is(err, rlwe.ErrKeyMaterial))
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
			require.Equal(t, tc.EA.GaloisElementsForRotation(k), tc.EA.GaloisElementsForRotation(k+N), "k=%d", k)
			tc.VerifyTestVectors(t, res, utils.RotateSlice(values, k))
		}
	})
}

func testPower(tc *TestContext, t *testing.T) {

	T := tc.EA.PlaintextModulus()
	lvl := tc.Ctx.MaxLevel()

	for _, e := range []int{1, 2, 3, 5} {
		t.Run(name(fmt.Sprintf("Evaluator/Power/e=%d", e), tc, lvl), func(t *testing.T) {
			values, _, ct := tc.NewTestVector(t, lvl, true)
			res, err := tc.Evl.PowerNew(ct, e)
			require.NoError(t, err)
			want := make([]uint64, len(values))
			TBig := new(big.Int).SetUint64(T)
			for i, v := range values {
				want[i] = new(big.Int).Exp(new(big.Int).SetUint64(v), big.NewInt(int64(e)), TBig).Uint64()
			}
			tc.VerifyTestVectors(t, res, want)
		})
	}

	t.Run(name("Evaluator/Power/Invalid", tc, lvl), func(t *testing.T) {
		_, _, ct := tc.NewTestVector(t, lvl, true)
		_, err := tc.Evl.PowerNew(ct, 0)
		require.Error(t, err)
	})

	t.Run(name("Evaluator/TotalProduct", tc, lvl), func(t *testing.T) {
		v0, _, ct0 := tc.NewTestVector(t, lvl, true)
		v1, _, ct1 := tc.NewTestVector(t, lvl, true)
		v2, _, ct2 := tc.NewTestVector(t, lvl, true)
		res, err := tc.Evl.TotalProduct([]*rlwe.Ciphertext{ct0, ct1, ct2})
		require.NoError(t, err)
		require.Equal(t, lvl-2, res.Level())
		tc.VerifyTestVectors(t, res, mulSlots(mulSlots(v0, v1, T), v2, T))
		_, err = tc.Evl.TotalProduct(nil)
		require.Error(t, err)
	})
}
