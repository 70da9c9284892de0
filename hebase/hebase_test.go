package hebase

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/utils"
	"github.com/tuneinsight/hetile/utils/sampling"
)

var testLiterals = []rlwe.ContextLiteral{
	{Scheme: rlwe.BGV, M: 64, P: 257, LogQ: []int{50, 40, 40, 40, 40}, LogSpecial: []int{60}},
	{Scheme: rlwe.CKKS, M: 64, LogQ: []int{55, 40, 40, 40}, LogSpecial: []int{60}},
}

type testContext struct {
	he   *HeContext
	enc  *Encoder
	prng sampling.PRNG
}

func newTestContext(t *testing.T, lit rlwe.ContextLiteral) *testContext {
	ctx, err := rlwe.NewContextFromLiteral(lit)
	require.NoError(t, err)
	he, err := NewHeContext(ctx)
	require.NoError(t, err)
	prng, err := sampling.NewKeyedPRNG([]byte("hebase-test"))
	require.NoError(t, err)
	return &testContext{he: he, enc: NewEncoder(he), prng: prng}
}

func testString(op string, tc *testContext) string {
	return fmt.Sprintf("%s/%s/M=%d/Slots=%d", op, tc.he.SchemeName(), tc.he.Context().M(), tc.he.SlotCount())
}

// tolerance of the comparisons after a few multiplications.
func (tc *testContext) tolerance() float64 {
	if tc.he.Scheme() == rlwe.BGV {
		return 0
	}
	return 1e-3
}

// newValues returns random slot values: integers in [-8, 8] for BGV and
// reals in [-1, 1] for CKKS.
func (tc *testContext) newValues() (values []float64) {
	values = make([]float64, tc.he.SlotCount())
	for i := range values {
		r := sampling.ReadUint64(tc.prng)
		if tc.he.Scheme() == rlwe.BGV {
			values[i] = float64(int64(r%17) - 8)
		} else {
			values[i] = 2*float64(r>>11)/float64(1<<53) - 1
		}
	}
	return
}

func (tc *testContext) newTile(t *testing.T) ([]float64, *CTile) {
	values := tc.newValues()
	c, err := tc.enc.EncodeEncrypt(values)
	require.NoError(t, err)
	return values, c
}

// reduce maps the values to the slot domain of the context.
func (tc *testContext) reduce(values []float64) []float64 {
	if tc.he.Scheme() != rlwe.BGV {
		return values
	}
	t := float64(tc.he.Traits().ArithmeticModulus)
	out := make([]float64, len(values))
	for i, v := range values {
		v = math.Mod(v, t)
		if v < 0 {
			v += t
		}
		if v > t/2 {
			v -= t
		}
		out[i] = v
	}
	return out
}

func (tc *testContext) assert(t *testing.T, c *CTile, want []float64) {
	require.NoError(t, tc.enc.AssertEquals(c, t.Name(), tc.reduce(want), tc.tolerance()))
}

func mapValues(a, b []float64, f func(x, y float64) float64) []float64 {
	c := make([]float64, len(a))
	for i := range a {
		c[i] = f(a[i], b[i])
	}
	return c
}

func TestHebase(t *testing.T) {
	for _, lit := range testLiterals {
		tc := newTestContext(t, lit)
		for _, testSet := range []func(tc *testContext, t *testing.T){
			testHeContext,
			testEncoder,
			testCTile,
			testRotations,
			testFunctionEvaluator,
			testSaveLoad,
		} {
			testSet(tc, t)
		}
	}
}

func testHeContext(tc *testContext, t *testing.T) {

	he := tc.he

	t.Run(testString("HeContext/Metadata", tc), func(t *testing.T) {
		require.Equal(t, LibraryName+"_"+he.SchemeName(), he.HeaderCode())
		require.Equal(t, he.Context().MaxLevel(), he.TopChainIndex())
		require.Len(t, he.ModulusChain(), he.TopChainIndex()+1)
		require.True(t, he.HasSecretKey())

		var buf bytes.Buffer
		require.NoError(t, he.PrintSignature(&buf))
		require.Contains(t, buf.String(), he.SchemeName())

		// the test parameters are toy parameters
		require.False(t, he.IsSecure())
		require.Contains(t, buf.String(), "WARNING")

		switch he.Scheme() {
		case rlwe.BGV:
			require.Equal(t, 32, he.SlotCount())
			require.True(t, he.Traits().IsModularArithmetic)
			require.Equal(t, uint64(257), he.Traits().ArithmeticModulus)
			require.Equal(t, 1.0, he.DefaultScale())
			require.Error(t, he.SetDefaultScale(2))
			require.NotNil(t, he.BGV())
			require.Nil(t, he.CKKS())
		case rlwe.CKKS:
			require.Equal(t, 16, he.SlotCount())
			require.True(t, he.Traits().SupportsComplexNumbers)
			require.Equal(t, he.Context().DefaultScale(), he.DefaultScale())
			require.NotNil(t, he.CKKS())
			require.Nil(t, he.BGV())
		}
	})

	t.Run(testString("HeContext/PublicView", tc), func(t *testing.T) {
		pub := he.PublicView()
		require.False(t, pub.HasSecretKey())
		require.True(t, he.HasSecretKey())

		_, err := pub.SecretKey()
		require.ErrorIs(t, err, rlwe.ErrKeyMaterial)

		values := tc.newValues()
		c, err := NewEncoder(pub).EncodeEncrypt(values)
		require.NoError(t, err)

		_, err = NewEncoder(pub).Decrypt(c)
		require.ErrorIs(t, err, rlwe.ErrKeyMaterial)

		// the tile encrypted with the public view decrypts under the full context
		c.he = he
		tc.assert(t, c, values)
	})

	t.Run(testString("HeContext/Traits/Intersect", tc), func(t *testing.T) {
		tr := he.Traits()
		tr.Intersect(Traits{SupportsExplicitRescale: true})
		require.True(t, tr.SupportsExplicitRescale)
		require.False(t, tr.SupportsExplicitChainIndices)
		require.Zero(t, tr.ArithmeticModulus)
	})
}

func testEncoder(tc *testContext, t *testing.T) {

	t.Run(testString("Encoder/EncodeDecode", tc), func(t *testing.T) {
		values := tc.newValues()
		p, err := tc.enc.Encode(values)
		require.NoError(t, err)
		require.Equal(t, tc.he.TopChainIndex(), p.ChainIndex())

		have, err := tc.enc.DecodeDouble(p)
		require.NoError(t, err)
		for i := range values {
			require.InDelta(t, values[i], have[i], 1e-6)
		}

		ints, err := tc.enc.DecodeInt(p)
		require.NoError(t, err)
		for i := range values {
			require.Equal(t, int64(math.Round(values[i])), ints[i])
		}
	})

	t.Run(testString("Encoder/EncodeAt", tc), func(t *testing.T) {
		values := tc.newValues()
		c, err := tc.enc.EncodeEncryptAt(values, 1)
		require.NoError(t, err)
		require.Equal(t, 1, c.ChainIndex())
		tc.assert(t, c, values)

		_, err = tc.enc.EncodeAt(values, tc.he.TopChainIndex()+1)
		require.Error(t, err)
	})

	t.Run(testString("Encoder/SlotOverflow", tc), func(t *testing.T) {
		_, err := tc.enc.Encode(make([]float64, tc.he.SlotCount()+1))
		require.ErrorIs(t, err, rlwe.ErrSlotOverflow)
	})

	t.Run(testString("Encoder/Empty", tc), func(t *testing.T) {
		_, err := tc.enc.Encrypt(NewPTile(tc.he))
		require.ErrorIs(t, err, ErrEmptyTile)
		_, err = tc.enc.Decrypt(NewCTile(tc.he))
		require.ErrorIs(t, err, ErrEmptyTile)
	})

	t.Run(testString("Encoder/ErrorStats", tc), func(t *testing.T) {
		values, c := tc.newTile(t)
		want := make([]complex128, len(values))
		for i := range values {
			want[i] = complex(values[i], 0)
		}
		es, err := tc.enc.ErrorStats(c, want)
		require.NoError(t, err)
		require.LessOrEqual(t, es.Max, 1e-5)
		require.LessOrEqual(t, es.Mean, es.Max)

		_, err = tc.enc.ErrorStats(c, nil)
		require.Error(t, err)
	})

	t.Run(testString("Encoder/AssertEquals", tc), func(t *testing.T) {
		values, c := tc.newTile(t)
		want := make([]float64, len(values))
		copy(want, values)
		want[0] += 1
		require.Error(t, tc.enc.AssertEquals(c, "shifted", want, 0.5))
	})

	if tc.he.Scheme() == rlwe.BGV {
		t.Run(testString("Encoder/NotInteger", tc), func(t *testing.T) {
			_, err := tc.enc.Encode([]float64{0.5})
			require.Error(t, err)
		})
	}
}

func testCTile(tc *testContext, t *testing.T) {

	add := func(x, y float64) float64 { return x + y }
	sub := func(x, y float64) float64 { return x - y }
	mul := func(x, y float64) float64 { return x * y }

	t.Run(testString("CTile/Add", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		v1, c1 := tc.newTile(t)
		require.NoError(t, c0.Add(c1))
		tc.assert(t, c0, mapValues(v0, v1, add))
		require.NoError(t, c0.SubRaw(c1))
		tc.assert(t, c0, v0)
	})

	t.Run(testString("CTile/Sub", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		v1, c1 := tc.newTile(t)
		require.NoError(t, c1.ReduceChainIndex())
		require.NoError(t, c0.Sub(c1))
		require.Equal(t, tc.he.TopChainIndex()-1, c0.ChainIndex())
		tc.assert(t, c0, mapValues(v0, v1, sub))
	})

	t.Run(testString("CTile/Multiply", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		v1, c1 := tc.newTile(t)
		require.NoError(t, c0.Multiply(c1))
		require.Equal(t, tc.he.TopChainIndex()-1, c0.ChainIndex())
		require.True(t, c0.Ciphertext().IsCanonical())
		tc.assert(t, c0, mapValues(v0, v1, mul))
	})

	t.Run(testString("CTile/MultiplyRaw", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		v1, c1 := tc.newTile(t)
		require.NoError(t, c0.MultiplyRaw(c1))
		require.Equal(t, 2, c0.Ciphertext().Degree())
		require.NoError(t, c0.Relinearize())
		require.NoError(t, c0.Rescale())
		tc.assert(t, c0, mapValues(v0, v1, mul))
	})

	t.Run(testString("CTile/Square", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		require.NoError(t, c0.Square())
		tc.assert(t, c0, mapValues(v0, v0, mul))

		_, c1 := tc.newTile(t)
		require.NoError(t, c1.SquareRaw())
		require.Equal(t, 2, c1.Ciphertext().Degree())
	})

	t.Run(testString("CTile/Plain", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		v1 := tc.newValues()

		p, err := tc.enc.EncodeFor(v1, c0)
		require.NoError(t, err)
		require.NoError(t, c0.AddPlain(p))
		tc.assert(t, c0, mapValues(v0, v1, add))

		require.NoError(t, c0.SubPlainRaw(p))
		tc.assert(t, c0, v0)

		p, err = tc.enc.Encode(v1)
		require.NoError(t, err)
		require.NoError(t, c0.MultiplyPlain(p))
		tc.assert(t, c0, mapValues(v0, v1, mul))
	})

	t.Run(testString("CTile/Scalar", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)

		require.NoError(t, c0.AddScalarInt(3))
		require.NoError(t, c0.MultiplyScalarInt(-2))
		require.Equal(t, tc.he.TopChainIndex(), c0.ChainIndex())

		want := make([]float64, len(v0))
		for i := range v0 {
			want[i] = (v0[i] + 3) * -2
		}
		tc.assert(t, c0, want)

		require.NoError(t, c0.Negate())
		for i := range want {
			want[i] = -want[i]
		}
		tc.assert(t, c0, want)

		if tc.he.Scheme() == rlwe.BGV {
			require.Error(t, c0.MultiplyScalar(0.5))
			require.Error(t, c0.AddScalar(0.25))
		} else {
			require.NoError(t, c0.MultiplyScalar(0.5))
			require.NoError(t, c0.AddScalar(0.25))
			for i := range want {
				want[i] = want[i]*0.5 + 0.25
			}
			tc.assert(t, c0, want)
		}
	})

	t.Run(testString("CTile/ChainIndex", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		_, c1 := tc.newTile(t)

		require.NoError(t, c1.SetChainIndexTo(1))
		require.Equal(t, 1, c1.ChainIndex())

		require.NoError(t, c0.SetChainIndex(c1))
		require.Equal(t, 1, c0.ChainIndex())
		tc.assert(t, c0, v0)

		require.NoError(t, c0.SetChainIndexTo(0))
		require.Error(t, c0.Rescale())
		require.ErrorIs(t, c0.Rescale(), rlwe.ErrCapacityExhausted)
		require.Greater(t, c0.Capacity(), 0.0)
	})

	t.Run(testString("CTile/RescaleRaw", tc), func(t *testing.T) {
		_, c0 := tc.newTile(t)
		scale := c0.Scale()
		require.NoError(t, c0.RescaleRaw())
		require.Equal(t, tc.he.TopChainIndex()-1, c0.ChainIndex())
		require.Equal(t, scale, c0.Scale())
	})

	t.Run(testString("CTile/Empty", tc), func(t *testing.T) {
		c := NewCTile(tc.he)
		require.True(t, c.IsEmpty())
		require.Equal(t, -1, c.ChainIndex())
		_, c1 := tc.newTile(t)
		require.ErrorIs(t, c.Add(c1), ErrEmptyTile)
		require.ErrorIs(t, c1.Add(c), ErrEmptyTile)
		require.ErrorIs(t, c.Rotate(1), ErrEmptyTile)
	})

	t.Run(testString("CTile/CopyNew", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		c1 := c0.CopyNew()
		require.NoError(t, c1.AddScalarInt(1))
		tc.assert(t, c0, v0)

		c2 := NewCTile(tc.he)
		c2.Copy(c0)
		require.True(t, c2.Ciphertext().Equal(c0.Ciphertext()))
	})

	t.Run(testString("CTile/Scale", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		if tc.he.Scheme() == rlwe.BGV {
			require.Equal(t, 1.0, c0.Scale())
			require.Error(t, c0.SetScale(2))
			require.Error(t, c0.MultiplyByChangingScale(2))
			return
		}
		require.NoError(t, c0.MultiplyByChangingScale(2))
		tc.assert(t, c0, mapValues(v0, v0, add))
		require.NoError(t, c0.SetScale(c0.Scale()*2))
		tc.assert(t, c0, v0)
		require.Error(t, c0.SetScale(-1))
	})

	t.Run(testString("CTile/DebugPrint", tc), func(t *testing.T) {
		_, c0 := tc.newTile(t)
		var buf bytes.Buffer
		require.NoError(t, c0.DebugPrint(&buf, "tile", 4))
		require.Contains(t, buf.String(), "CTile tile")
		require.Contains(t, buf.String(), "[3]")
		require.NotContains(t, buf.String(), "[4]")

		buf.Reset()
		require.NoError(t, NewCTile(tc.he).DebugPrint(&buf, "none", -1))
		require.Contains(t, buf.String(), "empty")
	})
}

func testRotations(tc *testContext, t *testing.T) {

	n := tc.he.SlotCount()

	for _, k := range []int{1, 2, 3, 5, n - 1, -1, -3} {
		t.Run(testString(fmt.Sprintf("CTile/Rotate/k=%d", k), tc), func(t *testing.T) {
			v0, c0 := tc.newTile(t)
			require.NoError(t, c0.Rotate(k))
			tc.assert(t, c0, utils.RotateSlice(v0, k))
		})
	}

	t.Run(testString("CTile/Conjugate", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		require.NoError(t, c0.Conjugate())
		if tc.he.Scheme() == rlwe.CKKS {
			tc.assert(t, c0, v0)
		} else {
			// swaps the two rows
			tc.assert(t, c0, utils.RotateSlice(v0, n/2))
		}
	})

	t.Run(testString("CTile/InnerSum", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		require.NoError(t, c0.InnerSum(1, n, false))
		var sum float64
		for _, v := range v0 {
			sum += v
		}
		want := make([]float64, n)
		for i := range want {
			want[i] = sum
		}
		tc.assert(t, c0, want)

		require.Error(t, c0.InnerSum(0, n, false))
	})

	t.Run(testString("CTile/InnerSum/Reverse", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		require.NoError(t, c0.InnerSum(2, 8, true))
		want := make([]float64, n)
		for i := range want {
			for _, k := range []int{0, 2, 4, 6} {
				want[i] += v0[((i-k)%n+n)%n]
			}
		}
		tc.assert(t, c0, want)
	})

	for _, m := range []int{1, 3, 5, 6} {

		want := func(v []float64) []float64 {
			w := make([]float64, n)
			for i := range w {
				for j := 0; j < m; j++ {
					w[i] += v[(i+j)%n]
				}
			}
			return w
		}

		t.Run(testString(fmt.Sprintf("CTile/SumExpBySquaringLeftToRight/n=%d", m), tc), func(t *testing.T) {
			v0, c0 := tc.newTile(t)
			require.NoError(t, c0.SumExpBySquaringLeftToRight(m))
			tc.assert(t, c0, want(v0))
		})

		t.Run(testString(fmt.Sprintf("CTile/SumExpBySquaringRightToLeft/n=%d", m), tc), func(t *testing.T) {
			v0, c0 := tc.newTile(t)
			require.NoError(t, c0.SumExpBySquaringRightToLeft(m))
			tc.assert(t, c0, want(v0))
		})
	}

	t.Run(testString("CTile/Rotate/MissingKeys", tc), func(t *testing.T) {
		evk := rlwe.NewEvaluationKeySet()
		pub, err := NewHeContextWithKeys(tc.he.Context(), tc.he.PublicKey(), evk, nil)
		require.NoError(t, err)
		c, err := NewEncoder(pub).EncodeEncrypt(tc.newValues())
		require.NoError(t, err)
		require.ErrorIs(t, c.Rotate(1), rlwe.ErrKeyMaterial)
	})

	t.Run(testString("CTile/Rotate/PartialKeys", tc), func(t *testing.T) {
		sk, err := tc.he.SecretKey()
		require.NoError(t, err)

		// only the keys of the rotation by one: 3 = 1 + 2 fails on the second step
		ksm, err := rlwe.NewKeyGenerator(tc.he.Context()).GenGaloisKeysNew(tc.he.be.galoisElementsForRotation(1), sk)
		require.NoError(t, err)
		pub, err := NewHeContextWithKeys(tc.he.Context(), tc.he.PublicKey(), rlwe.NewEvaluationKeySet(ksm...), nil)
		require.NoError(t, err)

		c, err := NewEncoder(pub).EncodeEncrypt(tc.newValues())
		require.NoError(t, err)
		backup := c.Ciphertext().CopyNew()

		require.ErrorIs(t, c.Rotate(3), rlwe.ErrKeyMaterial)
		require.True(t, backup.Equal(c.Ciphertext()))

		require.NoError(t, c.Rotate(1))
		require.False(t, backup.Equal(c.Ciphertext()))
	})
}

func testFunctionEvaluator(tc *testContext, t *testing.T) {

	fe := NewFunctionEvaluator(tc.he)

	t.Run(testString("FunctionEvaluator/Power", tc), func(t *testing.T) {
		for _, e := range []int{1, 2, 3} {
			v0, c0 := tc.newTile(t)
			c1, err := fe.Power(c0, e)
			require.NoError(t, err)
			want := make([]float64, len(v0))
			for i := range v0 {
				want[i] = math.Pow(v0[i], float64(e))
			}
			tc.assert(t, c1, want)
		}

		_, c0 := tc.newTile(t)
		_, err := fe.Power(c0, 0)
		require.Error(t, err)
	})

	t.Run(testString("FunctionEvaluator/TotalProduct", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		v1, c1 := tc.newTile(t)
		v2, c2 := tc.newTile(t)
		res, err := fe.TotalProduct([]*CTile{c0, c1, c2})
		require.NoError(t, err)
		want := make([]float64, len(v0))
		for i := range want {
			want[i] = v0[i] * v1[i] * v2[i]
		}
		tc.assert(t, res, want)

		_, err = fe.TotalProduct(nil)
		require.Error(t, err)
	})

	t.Run(testString("FunctionEvaluator/TotalSum", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		v1, c1 := tc.newTile(t)
		res, err := fe.TotalSum([]*CTile{c0, c1})
		require.NoError(t, err)
		tc.assert(t, res, mapValues(v0, v1, func(x, y float64) float64 { return x + y }))
	})

	t.Run(testString("FunctionEvaluator/InnerProduct", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		v1, c1 := tc.newTile(t)
		v2, c2 := tc.newTile(t)
		v3, c3 := tc.newTile(t)
		res, err := fe.InnerProduct([]*CTile{c0, c1}, []*CTile{c2, c3})
		require.NoError(t, err)
		want := make([]float64, len(v0))
		for i := range want {
			want[i] = v0[i]*v2[i] + v1[i]*v3[i]
		}
		tc.assert(t, res, want)

		_, err = fe.InnerProduct([]*CTile{c0}, nil)
		require.Error(t, err)
	})
}

func testSaveLoad(tc *testContext, t *testing.T) {

	t.Run(testString("SaveLoad/CTile", tc), func(t *testing.T) {
		v0, c0 := tc.newTile(t)
		data, err := c0.MarshalBinary()
		require.NoError(t, err)

		c1 := NewCTile(tc.he)
		require.NoError(t, c1.UnmarshalBinary(data))
		require.True(t, c0.Ciphertext().Equal(c1.Ciphertext()))
		tc.assert(t, c1, v0)

		require.Error(t, c1.UnmarshalBinary(data[:len(data)-1]))
		require.True(t, c0.Ciphertext().Equal(c1.Ciphertext()))
	})

	t.Run(testString("SaveLoad/PTile", tc), func(t *testing.T) {
		p0, err := tc.enc.Encode(tc.newValues())
		require.NoError(t, err)
		data, err := p0.MarshalBinary()
		require.NoError(t, err)

		p1 := NewPTile(tc.he)
		require.NoError(t, p1.UnmarshalBinary(data))
		require.True(t, p0.Plaintext().Value.Equal(p1.Plaintext().Value))
		require.Equal(t, p0.Scale(), p1.Scale())

		require.NoError(t, p1.ReduceChainIndex(0))
		require.Equal(t, 0, p1.ChainIndex())
		require.Error(t, p1.ReduceChainIndex(1))
	})

	for _, withSecretKey := range []bool{false, true} {
		t.Run(testString(fmt.Sprintf("SaveLoad/HeContext/sk=%t", withSecretKey), tc), func(t *testing.T) {

			var buf bytes.Buffer
			require.NoError(t, tc.he.Save(&buf, withSecretKey))

			he, err := LoadHeContext(&buf)
			require.NoError(t, err)
			require.Equal(t, withSecretKey, he.HasSecretKey())
			require.Equal(t, tc.he.HeaderCode(), he.HeaderCode())
			require.Equal(t, tc.he.DefaultScale(), he.DefaultScale())
			require.True(t, tc.he.Context().Equal(he.Context()))
			require.Equal(t, tc.he.EvaluationKeys().GaloisElements(), he.EvaluationKeys().GaloisElements())

			v0, c0 := tc.newTile(t)
			data, err := c0.MarshalBinary()
			require.NoError(t, err)

			c1 := NewCTile(he)
			require.NoError(t, c1.UnmarshalBinary(data))
			require.NoError(t, c1.Rotate(1))

			if !withSecretKey {
				_, err = NewEncoder(he).Decrypt(c1)
				require.ErrorIs(t, err, rlwe.ErrKeyMaterial)

				var sk bytes.Buffer
				require.NoError(t, tc.he.SaveSecretKey(&sk))
				require.NoError(t, he.LoadSecretKey(&sk))
			}

			require.NoError(t, NewEncoder(he).AssertEquals(c1, "loaded", tc.reduce(utils.RotateSlice(v0, 1)), tc.tolerance()))
		})
	}

	t.Run(testString("SaveLoad/HeContext/NoSecretKey", tc), func(t *testing.T) {
		var buf bytes.Buffer
		require.ErrorIs(t, tc.he.PublicView().Save(&buf, true), rlwe.ErrKeyMaterial)
	})

	t.Run(testString("SaveLoad/HeContext/File", tc), func(t *testing.T) {
		name := t.TempDir() + "/context.bin"
		require.NoError(t, tc.he.SaveToFile(name, false))
		he, err := LoadHeContextFromFile(name)
		require.NoError(t, err)
		require.False(t, he.HasSecretKey())
		require.Equal(t, tc.he.Scheme(), he.Scheme())
	})

	t.Run(testString("SaveLoad/HeContext/Truncated", tc), func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, tc.he.Save(&buf, false))
		data := buf.Bytes()
		_, err := LoadHeContext(bytes.NewReader(data[:len(data)/2]))
		require.ErrorIs(t, err, rlwe.ErrSerialization)
	})
}

func TestRegistry(t *testing.T) {

	kinds := RegisteredContextKinds()
	require.Contains(t, kinds, "hetile_BGV")
	require.Contains(t, kinds, "hetile_CKKS")

	require.Error(t, RegisterContextKind("hetile_BGV", rlwe.BGV))

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	_, err := writeString(bw, "unknown_scheme")
	require.NoError(t, err)
	require.NoError(t, bw.Flush())
	_, err = LoadHeContext(&buf)
	require.ErrorIs(t, err, rlwe.ErrSerialization)
}

func TestRotationHelpers(t *testing.T) {
	require.Equal(t, []int{1, 2, 4}, RotationsForInnerSum(1, 8, false))
	require.Equal(t, []int{-2, -4}, RotationsForInnerSum(2, 8, true))
	require.Empty(t, RotationsForInnerSum(0, 8, false))

	require.Equal(t, []int{1}, RotationsForSumExpBySquaring(3))
	require.Equal(t, []int{1, 2}, RotationsForSumExpBySquaring(5))
	require.Equal(t, []int{1, 2, 3}, RotationsForSumExpBySquaring(6))
	require.Empty(t, RotationsForSumExpBySquaring(1))
}
