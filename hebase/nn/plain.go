// Package nn implements the inference of small neural networks on batches
// of encrypted samples: fully connected layers, each followed by a square
// activation, over the CipherMatrix of package matrix.
package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tuneinsight/hetile/hebase/matrix"
)

// FcPlainLayer is a fully connected layer x -> Wx + b over column vectors.
type FcPlainLayer struct {
	Weights *matrix.DoubleMatrix // out x in
	Bias    *matrix.DoubleMatrix // out x 1
}

// NewFcPlainLayer returns the layer of the given weights and bias.
func NewFcPlainLayer(weights, bias *matrix.DoubleMatrix) (l *FcPlainLayer, err error) {
	if bias.Cols() != 1 || bias.Rows() != weights.Rows() {
		return nil, fmt.Errorf("cannot NewFcPlainLayer: bias is %dx%d for %dx%d weights", bias.Rows(), bias.Cols(), weights.Rows(), weights.Cols())
	}
	return &FcPlainLayer{Weights: weights, Bias: bias}, nil
}

// NewRandomFcPlainLayer returns a layer from in to out neurons with weights and bias
// drawn uniformly in [-1/sqrt(in), 1/sqrt(in)]. src can be nil.
func NewRandomFcPlainLayer(in, out int, src rand.Source) *FcPlainLayer {

	dist := distuv.Uniform{Min: -1 / math.Sqrt(float64(in)), Max: 1 / math.Sqrt(float64(in)), Src: src}

	w := matrix.NewDoubleMatrix(out, in, 0)
	b := matrix.NewDoubleMatrix(out, 1, 0)

	w.Dense().Apply(func(_, _ int, _ float64) float64 { return dist.Rand() }, w.Dense())
	b.Dense().Apply(func(_, _ int, _ float64) float64 { return dist.Rand() }, b.Dense())

	return &FcPlainLayer{Weights: w, Bias: b}
}

// InputSize returns the number of inputs of the layer.
func (l *FcPlainLayer) InputSize() int {
	return l.Weights.Cols()
}

// OutputSize returns the number of outputs of the layer.
func (l *FcPlainLayer) OutputSize() int {
	return l.Weights.Rows()
}

// Forward returns Wx + b.
func (l *FcPlainLayer) Forward(x *matrix.DoubleMatrix) (y *matrix.DoubleMatrix, err error) {
	if y, err = l.Weights.Multiply(x); err != nil {
		return nil, fmt.Errorf("cannot Forward: %w", err)
	}
	if err = y.Add(l.Bias); err != nil {
		return nil, fmt.Errorf("cannot Forward: %w", err)
	}
	return
}

// NeuralNetPlain is a sequence of fully connected layers, each followed by a
// square activation.
type NeuralNetPlain struct {
	Layers []*FcPlainLayer
}

// NewNeuralNetPlain returns a network of the given layers, whose sizes must chain.
func NewNeuralNetPlain(layers ...*FcPlainLayer) (net *NeuralNetPlain, err error) {

	if len(layers) == 0 {
		return nil, fmt.Errorf("cannot NewNeuralNetPlain: no layers")
	}

	for i := 1; i < len(layers); i++ {
		if layers[i].InputSize() != layers[i-1].OutputSize() {
			return nil, fmt.Errorf("cannot NewNeuralNetPlain: layer %d has %d inputs for %d outputs of layer %d", i, layers[i].InputSize(), layers[i-1].OutputSize(), i-1)
		}
	}

	return &NeuralNetPlain{Layers: layers}, nil
}

// NewRandomNeuralNetPlain returns a network of random layers of sizes
// dims[0] -> dims[1] -> ... -> dims[len(dims)-1]. src can be nil.
func NewRandomNeuralNetPlain(src rand.Source, dims ...int) (net *NeuralNetPlain, err error) {

	if len(dims) < 2 {
		return nil, fmt.Errorf("cannot NewRandomNeuralNetPlain: %d dimensions for at least one layer", len(dims))
	}

	layers := make([]*FcPlainLayer, len(dims)-1)
	for i := range layers {
		if dims[i] <= 0 || dims[i+1] <= 0 {
			return nil, fmt.Errorf("cannot NewRandomNeuralNetPlain: invalid layer %d of size %dx%d", i, dims[i+1], dims[i])
		}
		layers[i] = NewRandomFcPlainLayer(dims[i], dims[i+1], src)
	}

	return NewNeuralNetPlain(layers...)
}

// InputSize returns the number of inputs of the network.
func (net *NeuralNetPlain) InputSize() int {
	return net.Layers[0].InputSize()
}

// OutputSize returns the number of outputs of the network.
func (net *NeuralNetPlain) OutputSize() int {
	return net.Layers[len(net.Layers)-1].OutputSize()
}

// Predict returns the outputs of the network on a batch of column vectors.
func (net *NeuralNetPlain) Predict(batch []*matrix.DoubleMatrix) (out []*matrix.DoubleMatrix, err error) {

	out = make([]*matrix.DoubleMatrix, len(batch))

	for k, x := range batch {
		for i, l := range net.Layers {
			if x, err = l.Forward(x); err != nil {
				return nil, fmt.Errorf("cannot Predict: sample %d: layer %d: %w", k, i, err)
			}
			x.Square()
		}
		out[k] = x
	}

	return
}
