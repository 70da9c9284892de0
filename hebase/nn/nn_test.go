package nn

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/hebase"
	"github.com/tuneinsight/hetile/hebase/matrix"
	"github.com/tuneinsight/hetile/schemes/ckks"
)

func newTestContext(t *testing.T, lit rlwe.ContextLiteral) *hebase.HeContext {
	ctx, err := rlwe.NewContextFromLiteral(lit)
	require.NoError(t, err)
	he, err := hebase.NewHeContext(ctx)
	require.NoError(t, err)
	return he
}

func randomInputs(src rand.Source, n, size int) (batch []*matrix.DoubleMatrix) {
	r := rand.New(src)
	batch = make([]*matrix.DoubleMatrix, n)
	for k := range batch {
		batch[k] = matrix.NewDoubleMatrix(size, 1, 0)
		for i := 0; i < size; i++ {
			batch[k].Set(i, 0, 2*r.Float64()-1)
		}
	}
	return
}

func requireBatch(t *testing.T, want, have []*matrix.DoubleMatrix, tolerance float64) {
	require.Len(t, have, len(want))
	for k := range want {
		require.True(t, want[k].Equal(have[k], tolerance), "sample #%d: want %v have %v", k, want[k].Values(), have[k].Values())
	}
}

func TestNeuralNetPlain(t *testing.T) {

	w, err := matrix.NewDoubleMatrixFromRows([][]float64{{1, 2}, {-1, 0}, {0.5, 0.5}})
	require.NoError(t, err)
	b, err := matrix.NewDoubleMatrixFromRows([][]float64{{0}, {1}, {-1}})
	require.NoError(t, err)

	l, err := NewFcPlainLayer(w, b)
	require.NoError(t, err)
	require.Equal(t, 2, l.InputSize())
	require.Equal(t, 3, l.OutputSize())

	_, err = NewFcPlainLayer(w, matrix.NewDoubleMatrix(2, 1, 0))
	require.Error(t, err)

	x, err := matrix.NewDoubleMatrixFromRows([][]float64{{1}, {-2}})
	require.NoError(t, err)

	y, err := l.Forward(x)
	require.NoError(t, err)
	require.Equal(t, [][]float64{{-3}, {0}, {-1.5}}, y.Values())

	net, err := NewNeuralNetPlain(l)
	require.NoError(t, err)
	out, err := net.Predict([]*matrix.DoubleMatrix{x})
	require.NoError(t, err)
	require.Equal(t, [][]float64{{9}, {0}, {2.25}}, out[0].Values())

	_, err = NewNeuralNetPlain(l, l)
	require.Error(t, err)

	_, err = NewNeuralNetPlain()
	require.Error(t, err)

	rnd, err := NewRandomNeuralNetPlain(rand.NewSource(1), 4, 3, 2)
	require.NoError(t, err)
	require.Len(t, rnd.Layers, 2)
	require.Equal(t, 4, rnd.InputSize())
	require.Equal(t, 2, rnd.OutputSize())
	for _, v := range rnd.Layers[0].Weights.Dense().RawMatrix().Data {
		require.LessOrEqual(t, v*v, 0.25)
	}

	_, err = NewRandomNeuralNetPlain(nil, 4)
	require.Error(t, err)
	_, err = NewRandomNeuralNetPlain(nil, 4, 0)
	require.Error(t, err)
}

func TestNeuralNet(t *testing.T) {

	he := newTestContext(t, ckks.ExampleParametersMatrix)
	enc := matrix.NewEncoder(he)
	top := he.TopChainIndex()

	src := rand.NewSource(42)

	plain, err := NewRandomNeuralNetPlain(src, 4, 3, 2)
	require.NoError(t, err)

	inputs := randomInputs(src, 8, 4)
	want, err := plain.Predict(inputs)
	require.NoError(t, err)

	net := NewNeuralNet(he)
	require.Equal(t, -1, net.ChainIndex())
	require.NoError(t, net.InitFromNet(plain, len(inputs), -1))
	require.Equal(t, 2, net.Layers())
	require.Equal(t, top, net.ChainIndex())

	in, err := enc.EncodeEncrypt(inputs, top)
	require.NoError(t, err)

	t.Run("Predict", func(t *testing.T) {
		out, err := net.Predict(in)
		require.NoError(t, err)
		require.Equal(t, top-Depth(2), out.ChainIndex())
		require.Equal(t, 2, out.Rows())
		require.Equal(t, 1, out.Cols())

		have, err := enc.DecryptDecode(out)
		require.NoError(t, err)
		requireBatch(t, want, have, 1e-3)
	})

	t.Run("WriteTo/ReadFrom", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := net.WriteTo(&buf)
		require.NoError(t, err)
		require.Equal(t, int64(buf.Len()), n)

		data := append([]byte{}, buf.Bytes()...)

		loaded := NewNeuralNet(he)
		m, err := loaded.ReadFrom(&buf)
		require.NoError(t, err)
		require.Equal(t, n, m)
		require.Equal(t, 2, loaded.Layers())

		out, err := loaded.Predict(in)
		require.NoError(t, err)
		have, err := enc.DecryptDecode(out)
		require.NoError(t, err)
		requireBatch(t, want, have, 1e-3)

		_, err = NewNeuralNet(he).ReadFrom(bytes.NewReader(data[:len(data)/2]))
		require.ErrorIs(t, err, rlwe.ErrSerialization)

		_, err = NewNeuralNet(he).ReadFrom(bytes.NewReader([]byte{0xff, 0xff, 0, 0}))
		require.ErrorIs(t, err, rlwe.ErrSerialization)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := NewNeuralNet(he).Predict(in)
		require.ErrorIs(t, err, hebase.ErrEmptyTile)

		_, err = NewFcLayer(he).Forward(in)
		require.ErrorIs(t, err, hebase.ErrEmptyTile)

		low, err := enc.EncodeEncrypt(inputs, top-1)
		require.NoError(t, err)
		_, err = net.Predict(low)
		require.ErrorIs(t, err, rlwe.ErrLevelMismatch)

		deep, err := NewRandomNeuralNetPlain(src, 4, 4, 4, 2)
		require.NoError(t, err)
		require.ErrorIs(t, NewNeuralNet(he).InitFromNet(deep, len(inputs), -1), rlwe.ErrCapacityExhausted)

		require.ErrorIs(t, NewFcLayer(he).InitFromLayer(plain.Layers[0], len(inputs), 0), rlwe.ErrLevelMismatch)

		bgv := newTestContext(t, rlwe.ContextLiteral{Scheme: rlwe.BGV, M: 64, P: 257, LogQ: []int{50, 40, 40}, LogSpecial: []int{60}})
		require.ErrorIs(t, NewNeuralNet(bgv).InitFromNet(plain, 1, -1), rlwe.ErrConfiguration)
	})
}
