package matrix

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/hebase"
	"github.com/tuneinsight/hetile/schemes/ckks"
	"github.com/tuneinsight/hetile/utils/sampling"
)

var testLiterals = []rlwe.ContextLiteral{
	{Scheme: rlwe.BGV, M: 64, P: 257, LogQ: []int{50, 40, 40, 40}, LogSpecial: []int{60}},
	ckks.ExampleParametersMatrix,
}

func testString(op string, he *hebase.HeContext) string {
	return fmt.Sprintf("%s/%s/M=%d", op, he.SchemeName(), he.Context().M())
}

func randomBatch(prng sampling.PRNG, he *hebase.HeContext, n, rows, cols int) (batch []*DoubleMatrix) {
	batch = make([]*DoubleMatrix, n)
	for k := range batch {
		batch[k] = NewDoubleMatrix(rows, cols, 0)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				r := sampling.ReadUint64(prng)
				if he.Scheme() == rlwe.BGV {
					batch[k].Set(i, j, float64(int64(r%7)-3))
				} else {
					batch[k].Set(i, j, 2*float64(r>>11)/float64(1<<53)-1)
				}
			}
		}
	}
	return
}

func tolerance(he *hebase.HeContext) float64 {
	if he.Scheme() == rlwe.BGV {
		return 0
	}
	return 1e-4
}

func requireBatch(t *testing.T, he *hebase.HeContext, want, have []*DoubleMatrix) {
	require.Len(t, have, len(want))
	for k := range want {
		require.True(t, want[k].Equal(have[k], tolerance(he)), "matrix #%d: want %v have %v", k, want[k].Values(), have[k].Values())
	}
}

func TestCipherMatrix(t *testing.T) {

	for _, lit := range testLiterals {

		ctx, err := rlwe.NewContextFromLiteral(lit)
		require.NoError(t, err)

		he, err := hebase.NewHeContext(ctx)
		require.NoError(t, err)

		prng, err := sampling.NewKeyedPRNG([]byte("matrix-test"))
		require.NoError(t, err)

		enc := NewEncoder(he)
		top := he.TopChainIndex()

		t.Run(testString("EncodeEncrypt", he), func(t *testing.T) {
			batch := randomBatch(prng, he, 5, 2, 3)
			cm, err := enc.EncodeEncrypt(batch, top)
			require.NoError(t, err)
			require.Equal(t, 2, cm.Rows())
			require.Equal(t, 3, cm.Cols())
			require.Equal(t, 5, cm.FilledSlots())
			require.Equal(t, top, cm.ChainIndex())

			have, err := enc.DecryptDecode(cm)
			require.NoError(t, err)
			requireBatch(t, he, batch, have)
		})

		t.Run(testString("EncodeEncrypt/Errors", he), func(t *testing.T) {
			_, err := enc.EncodeEncrypt(nil, top)
			require.Error(t, err)

			batch := randomBatch(prng, he, 2, 2, 2)
			batch[1] = NewDoubleMatrix(3, 2, 0)
			_, err = enc.EncodeEncrypt(batch, top)
			require.Error(t, err)

			_, err = enc.EncodeEncrypt(randomBatch(prng, he, he.SlotCount()+1, 1, 1), top)
			require.Error(t, err)

			_, err = enc.EncodeEncrypt(randomBatch(prng, he, 1, 1, 1), top+1)
			require.Error(t, err)
		})

		t.Run(testString("Add", he), func(t *testing.T) {
			a := randomBatch(prng, he, 4, 2, 2)
			b := randomBatch(prng, he, 4, 2, 2)

			ca, err := enc.EncodeEncrypt(a, top)
			require.NoError(t, err)
			cb, err := enc.EncodeEncrypt(b, top)
			require.NoError(t, err)

			require.NoError(t, ca.Add(cb))

			for k := range a {
				require.NoError(t, a[k].Add(b[k]))
			}

			have, err := enc.DecryptDecode(ca)
			require.NoError(t, err)
			requireBatch(t, he, a, have)

			cc, err := enc.EncodeEncrypt(randomBatch(prng, he, 4, 2, 3), top)
			require.NoError(t, err)
			require.Error(t, ca.Add(cc))
		})

		t.Run(testString("MatrixMultiply", he), func(t *testing.T) {
			a := randomBatch(prng, he, 3, 2, 3)
			b := randomBatch(prng, he, 3, 3, 2)

			ca, err := enc.EncodeEncrypt(a, top)
			require.NoError(t, err)
			cb, err := enc.EncodeEncrypt(b, top)
			require.NoError(t, err)

			cc, err := ca.MatrixMultiply(cb)
			require.NoError(t, err)
			require.Equal(t, 2, cc.Rows())
			require.Equal(t, 2, cc.Cols())
			require.Equal(t, top-1, cc.ChainIndex())

			want := make([]*DoubleMatrix, len(a))
			for k := range a {
				want[k], err = a[k].Multiply(b[k])
				require.NoError(t, err)
			}

			have, err := enc.DecryptDecode(cc)
			require.NoError(t, err)
			requireBatch(t, he, want, have)

			_, err = ca.MatrixMultiply(ca)
			require.Error(t, err)
		})

		t.Run(testString("Square", he), func(t *testing.T) {
			a := randomBatch(prng, he, 2, 2, 2)
			ca, err := enc.EncodeEncrypt(a, top)
			require.NoError(t, err)

			sq := ca.CopyNew()
			require.NoError(t, sq.Square())
			require.Equal(t, top-1, sq.ChainIndex())
			require.Equal(t, top, ca.ChainIndex())

			for k := range a {
				a[k].Square()
			}

			have, err := enc.DecryptDecode(sq)
			require.NoError(t, err)
			requireBatch(t, he, a, have)
		})

		t.Run(testString("WriteToReadFrom", he), func(t *testing.T) {
			a := randomBatch(prng, he, 3, 2, 2)
			ca, err := enc.EncodeEncrypt(a, top)
			require.NoError(t, err)

			var buf bytes.Buffer
			n, err := ca.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, int64(buf.Len()), n)

			data := buf.Bytes()

			cb := NewCipherMatrix(he)
			m, err := cb.ReadFrom(bytes.NewReader(data))
			require.NoError(t, err)
			require.Equal(t, n, m)
			require.Equal(t, ca.FilledSlots(), cb.FilledSlots())
			require.True(t, ca.Tile(1, 1).Ciphertext().Equal(cb.Tile(1, 1).Ciphertext()))

			have, err := enc.DecryptDecode(cb)
			require.NoError(t, err)
			requireBatch(t, he, a, have)

			cc := NewCipherMatrix(he)
			_, err = cc.ReadFrom(bytes.NewReader(data[:len(data)-10]))
			require.Error(t, err)
			require.Equal(t, 0, cc.Rows())
		})
	}
}

func TestDoubleMatrix(t *testing.T) {

	a, err := NewDoubleMatrixFromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)

	_, err = NewDoubleMatrixFromRows([][]float64{{1, 2}, {3}})
	require.Error(t, err)

	at := a.Transpose()
	require.Equal(t, [][]float64{{1, 4}, {2, 5}, {3, 6}}, at.Values())

	p, err := a.Multiply(at)
	require.NoError(t, err)
	require.Equal(t, [][]float64{{14, 32}, {32, 77}}, p.Values())

	_, err = a.Multiply(a)
	require.Error(t, err)

	sub, err := a.SubMatrix(0, 1, 2, 3)
	require.NoError(t, err)
	require.Equal(t, [][]float64{{2, 3}, {5, 6}}, sub.Values())

	_, err = a.SubMatrix(0, 0, 3, 1)
	require.Error(t, err)

	b := NewDoubleMatrix(2, 3, 1)
	require.NoError(t, b.Add(a))
	require.NoError(t, b.Sub(a))
	require.True(t, b.Equal(NewDoubleMatrix(2, 3, 1), 0))
	require.Error(t, b.Add(at))
	require.False(t, b.Equal(at, 1))

	// sub-matrices and transposes do not share the entries of their parent
	sub.Set(0, 0, 42)
	at.Set(0, 0, 42)
	require.Equal(t, 2.0, a.At(0, 1))
	require.Equal(t, 1.0, a.At(0, 0))

	c := NewDoubleMatrixFromDense(mat.NewDense(2, 2, []float64{1, -2, 3, -4}))
	c.Square()
	require.True(t, mat.Equal(mat.NewDense(2, 2, []float64{1, 4, 9, 16}), c.Dense()))

	c.AddAt(1, 1, -16)
	require.Zero(t, c.At(1, 1))
	require.True(t, c.Equal(NewDoubleMatrixFromDense(mat.NewDense(2, 2, []float64{1, 4, 9, 1e-9})), 1e-6))
	require.False(t, c.Equal(NewDoubleMatrix(2, 2, 0), 1e-6))

	require.Panics(t, func() { NewDoubleMatrix(0, 1, 0) })
	_, err = NewDoubleMatrixFromRows([][]float64{{}})
	require.Error(t, err)
}
