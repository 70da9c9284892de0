package nn

import (
	"bufio"
	"fmt"
	"io"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/hebase"
	"github.com/tuneinsight/hetile/hebase/matrix"
	"github.com/tuneinsight/hetile/utils/buffer"
)

// maxLayers bounds the number of layers read by ReadFrom.
const maxLayers = 1 << 8

// FcLayer is a fully connected layer with encrypted weights and bias,
// replicated in every slot of the batch.
type FcLayer struct {
	he      *hebase.HeContext
	weights *matrix.CipherMatrix
	bias    *matrix.CipherMatrix
}

// NewFcLayer returns an empty layer of the context.
func NewFcLayer(he *hebase.HeContext) *FcLayer {
	return &FcLayer{he: he, weights: matrix.NewCipherMatrix(he), bias: matrix.NewCipherMatrix(he)}
}

// InitFromLayer encrypts the weights of l at chainIndex and its bias at
// chainIndex-1, the level of the products, for batches of batchSize samples.
func (fc *FcLayer) InitFromLayer(l *FcPlainLayer, batchSize, chainIndex int) (err error) {

	if chainIndex < 1 || chainIndex > fc.he.TopChainIndex() {
		return fmt.Errorf("cannot InitFromLayer: %w: chain index %d must be in [1, %d]", rlwe.ErrLevelMismatch, chainIndex, fc.he.TopChainIndex())
	}

	weights := make([]*matrix.DoubleMatrix, batchSize)
	bias := make([]*matrix.DoubleMatrix, batchSize)
	for k := range weights {
		weights[k], bias[k] = l.Weights, l.Bias
	}

	enc := matrix.NewEncoder(fc.he)

	var w, b *matrix.CipherMatrix
	if w, err = enc.EncodeEncrypt(weights, chainIndex); err != nil {
		return fmt.Errorf("cannot InitFromLayer: weights: %w", err)
	}
	if b, err = enc.EncodeEncrypt(bias, chainIndex-1); err != nil {
		return fmt.Errorf("cannot InitFromLayer: bias: %w", err)
	}

	fc.weights, fc.bias = w, b

	return
}

// ChainIndex returns the level of the inputs of the layer.
func (fc *FcLayer) ChainIndex() int {
	return fc.weights.ChainIndex()
}

// Forward returns Wx + b for every sample x of the batch. The result is one
// level below the input.
func (fc *FcLayer) Forward(in *matrix.CipherMatrix) (res *matrix.CipherMatrix, err error) {

	if fc.weights.Rows() == 0 {
		return nil, fmt.Errorf("cannot Forward: %w: layer is not initialized", hebase.ErrEmptyTile)
	}

	if res, err = fc.weights.MatrixMultiply(in); err != nil {
		return nil, fmt.Errorf("cannot Forward: %w", err)
	}

	if err = res.Add(fc.bias); err != nil {
		return nil, fmt.Errorf("cannot Forward: %w", err)
	}

	return
}

// WriteTo writes the weights and the bias of the layer on w.
func (fc *FcLayer) WriteTo(w io.Writer) (n int64, err error) {
	var k int64
	for _, m := range []*matrix.CipherMatrix{fc.weights, fc.bias} {
		k, err = m.WriteTo(w)
		if n += k; err != nil {
			return
		}
	}
	return
}

// ReadFrom reads a layer written by WriteTo. The receiver is unchanged on error.
func (fc *FcLayer) ReadFrom(r io.Reader) (n int64, err error) {

	w, b := matrix.NewCipherMatrix(fc.he), matrix.NewCipherMatrix(fc.he)

	var k int64
	for _, m := range []*matrix.CipherMatrix{w, b} {
		k, err = m.ReadFrom(r)
		if n += k; err != nil {
			return
		}
	}

	if b.Rows() != w.Rows() || b.Cols() != 1 || b.FilledSlots() != w.FilledSlots() {
		return n, fmt.Errorf("cannot ReadFrom: %w: bias of %dx%d for weights of %dx%d", rlwe.ErrSerialization, b.Rows(), b.Cols(), w.Rows(), w.Cols())
	}

	fc.weights, fc.bias = w, b

	return
}

// NeuralNet is the encrypted counterpart of NeuralNetPlain.
type NeuralNet struct {
	he     *hebase.HeContext
	layers []*FcLayer
}

// NewNeuralNet returns an empty network of the context.
func NewNeuralNet(he *hebase.HeContext) *NeuralNet {
	return &NeuralNet{he: he}
}

// Depth returns the number of levels consumed by Predict on a network of n layers.
func Depth(n int) int {
	return 2 * n
}

// InitFromNet encrypts the layers of net for batches of batchSize samples
// encrypted at baseChainIndex, or at the top of the chain if baseChainIndex
// is -1. Layer i starts at baseChainIndex - 2i.
func (nnet *NeuralNet) InitFromNet(net *NeuralNetPlain, batchSize, baseChainIndex int) (err error) {

	if nnet.he.CKKS() == nil {
		return fmt.Errorf("cannot InitFromNet: %w: networks require CKKS, got %s", rlwe.ErrConfiguration, nnet.he.SchemeName())
	}

	if baseChainIndex == -1 {
		baseChainIndex = nnet.he.TopChainIndex()
	}

	if depth := Depth(len(net.Layers)); baseChainIndex < depth {
		return fmt.Errorf("cannot InitFromNet: %w: %d layers need %d levels, chain index is %d", rlwe.ErrCapacityExhausted, len(net.Layers), depth, baseChainIndex)
	}

	layers := make([]*FcLayer, len(net.Layers))
	for i, l := range net.Layers {
		layers[i] = NewFcLayer(nnet.he)
		if err = layers[i].InitFromLayer(l, batchSize, baseChainIndex-Depth(i)); err != nil {
			return fmt.Errorf("cannot InitFromNet: layer %d: %w", i, err)
		}
	}

	nnet.layers = layers

	return
}

// Layers returns the number of layers of the network.
func (nnet *NeuralNet) Layers() int {
	return len(nnet.layers)
}

// ChainIndex returns the level of the inputs of the network, or -1 for an empty network.
func (nnet *NeuralNet) ChainIndex() int {
	if len(nnet.layers) == 0 {
		return -1
	}
	return nnet.layers[0].ChainIndex()
}

// Predict returns the outputs of the network on a batch of encrypted column
// vectors at ChainIndex, computed without decryption.
func (nnet *NeuralNet) Predict(in *matrix.CipherMatrix) (out *matrix.CipherMatrix, err error) {

	if len(nnet.layers) == 0 {
		return nil, fmt.Errorf("cannot Predict: %w: network has no layers", hebase.ErrEmptyTile)
	}

	if in.ChainIndex() != nnet.ChainIndex() {
		return nil, fmt.Errorf("cannot Predict: %w: input at chain index %d, network at %d", rlwe.ErrLevelMismatch, in.ChainIndex(), nnet.ChainIndex())
	}

	out = in
	for i, l := range nnet.layers {
		if out, err = l.Forward(out); err != nil {
			return nil, fmt.Errorf("cannot Predict: layer %d: %w", i, err)
		}
		if err = out.Square(); err != nil {
			return nil, fmt.Errorf("cannot Predict: layer %d: %w", i, err)
		}
	}

	return
}

// WriteTo writes the layers of the network on w.
func (nnet *NeuralNet) WriteTo(w io.Writer) (n int64, err error) {

	bw := bufio.NewWriter(w)

	if n, err = buffer.WriteUint32(bw, uint32(len(nnet.layers))); err != nil {
		return
	}

	var k int64
	for _, l := range nnet.layers {
		k, err = l.WriteTo(bw)
		if n += k; err != nil {
			return
		}
	}

	return n, bw.Flush()
}

// ReadFrom reads a network written by WriteTo. The receiver is unchanged on error.
func (nnet *NeuralNet) ReadFrom(r io.Reader) (n int64, err error) {

	count := make([]byte, 4)
	k, err := io.ReadFull(r, count)
	if n = int64(k); err != nil {
		return n, fmt.Errorf("cannot ReadFrom: %w: %w", rlwe.ErrSerialization, err)
	}

	var size uint32
	buffer.ReadUint32(buffer.NewBuffer(count), &size)

	if size > maxLayers {
		return n, fmt.Errorf("cannot ReadFrom: %w: %d layers", rlwe.ErrSerialization, size)
	}

	layers := make([]*FcLayer, size)
	for i := range layers {
		layers[i] = NewFcLayer(nnet.he)
		var m int64
		m, err = layers[i].ReadFrom(r)
		if n += m; err != nil {
			return n, fmt.Errorf("cannot ReadFrom: layer %d: %w", i, err)
		}
	}

	for i := 1; i < len(layers); i++ {
		if layers[i].weights.Cols() != layers[i-1].weights.Rows() {
			return n, fmt.Errorf("cannot ReadFrom: %w: layer %d has %d inputs for %d outputs", rlwe.ErrSerialization, i, layers[i].weights.Cols(), layers[i-1].weights.Rows())
		}
	}

	nnet.layers = layers

	return
}
