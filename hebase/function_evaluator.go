package hebase

import (
	"fmt"

	"github.com/tuneinsight/hetile/core/rlwe"
)

// FunctionEvaluator evaluates functions of several tiles of a context.
type FunctionEvaluator struct {
	he *HeContext
}

// NewFunctionEvaluator returns a FunctionEvaluator of the context.
func NewFunctionEvaluator(he *HeContext) *FunctionEvaluator {
	return &FunctionEvaluator{he: he}
}

// Power returns c^e for e >= 1 with ceil(log2(e)) + 1 multiplicative depth at most.
func (f *FunctionEvaluator) Power(c *CTile, e int) (res *CTile, err error) {

	if err = c.check(); err != nil {
		return nil, fmt.Errorf("cannot Power: %w", err)
	}

	if eval := f.he.BGV(); eval != nil {
		var ct *rlwe.Ciphertext
		if ct, err = eval.PowerNew(c.ct, e); err != nil {
			return
		}
		return &CTile{he: f.he, ct: ct}, nil
	}

	if e < 1 {
		return nil, fmt.Errorf("cannot Power: exponent %d must be at least 1", e)
	}

	var factors []*CTile

	sq := c
	for {
		if e&1 == 1 {
			factors = append(factors, sq)
		}

		if e >>= 1; e == 0 {
			break
		}

		sq = sq.CopyNew()
		if err = sq.Square(); err != nil {
			return nil, fmt.Errorf("cannot Power: %w", err)
		}
	}

	if res, err = f.TotalProduct(factors); err != nil {
		return nil, fmt.Errorf("cannot Power: %w", err)
	}

	return
}

// TotalProduct returns the product of the tiles, multiplied along a balanced
// binary tree of depth ceil(log2(len(cs))).
func (f *FunctionEvaluator) TotalProduct(cs []*CTile) (res *CTile, err error) {

	if len(cs) == 0 {
		return nil, fmt.Errorf("cannot TotalProduct: no tiles")
	}

	for i := range cs {
		if err = cs[i].check(); err != nil {
			return nil, fmt.Errorf("cannot TotalProduct: tile #%d: %w", i, err)
		}
	}

	if eval := f.he.BGV(); eval != nil {
		cts := make([]*rlwe.Ciphertext, len(cs))
		for i := range cs {
			cts[i] = cs[i].ct
		}
		var ct *rlwe.Ciphertext
		if ct, err = eval.TotalProduct(cts); err != nil {
			return
		}
		return &CTile{he: f.he, ct: ct}, nil
	}

	layer := make([]*CTile, len(cs))
	copy(layer, cs)

	for len(layer) > 1 {

		next := make([]*CTile, 0, (len(layer)+1)/2)

		for i := 0; i+1 < len(layer); i += 2 {
			prod := layer[i].CopyNew()
			if err = prod.Multiply(layer[i+1]); err != nil {
				return nil, fmt.Errorf("cannot TotalProduct: %w", err)
			}
			next = append(next, prod)
		}

		if len(layer)&1 == 1 {
			next = append(next, layer[len(layer)-1])
		}

		layer = next
	}

	return layer[0].CopyNew(), nil
}

// TotalSum returns the sum of the tiles.
func (f *FunctionEvaluator) TotalSum(cs []*CTile) (res *CTile, err error) {

	if len(cs) == 0 {
		return nil, fmt.Errorf("cannot TotalSum: no tiles")
	}

	res = cs[0].CopyNew()
	for i := 1; i < len(cs); i++ {
		if err = res.Add(cs[i]); err != nil {
			return nil, fmt.Errorf("cannot TotalSum: %w", err)
		}
	}

	return
}

// InnerProduct returns the sum of the products a[i]*b[i], relinearized and
// rescaled once after the summation.
func (f *FunctionEvaluator) InnerProduct(a, b []*CTile) (res *CTile, err error) {

	if len(a) == 0 || len(a) != len(b) {
		return nil, fmt.Errorf("cannot InnerProduct: operands have %d and %d tiles", len(a), len(b))
	}

	for i := range a {

		prod := a[i].CopyNew()
		if err = prod.MultiplyRaw(b[i]); err != nil {
			return nil, fmt.Errorf("cannot InnerProduct: %w", err)
		}

		if res == nil {
			res = prod
		} else if err = res.Add(prod); err != nil {
			return nil, fmt.Errorf("cannot InnerProduct: %w", err)
		}
	}

	if err = res.Relinearize(); err != nil {
		return nil, fmt.Errorf("cannot InnerProduct: %w", err)
	}

	if res.ChainIndex() > 0 || f.he.Scheme() == rlwe.CKKS {
		if err = res.Rescale(); err != nil {
			return nil, fmt.Errorf("cannot InnerProduct: %w", err)
		}
	}

	return
}
