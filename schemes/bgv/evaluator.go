package bgv

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/utils"
)

// Evaluator is a struct that holds the necessary elements to perform the
// homomorphic operations of the BGV scheme: the generic operations of the
// embedded rlwe.Evaluator and the slot rotations of the EncryptedArray.
type Evaluator struct {
	*rlwe.Evaluator
	*EncryptedArray
}

// NewEvaluator creates a new Evaluator from an EncryptedArray and the evaluation keys.
func NewEvaluator(ea *EncryptedArray, evk *rlwe.EvaluationKeySet) *Evaluator {
	return &Evaluator{
		Evaluator:      rlwe.NewEvaluator(ea.ctx, evk),
		EncryptedArray: ea,
	}
}

// WithKey creates a shallow copy of the receiver Evaluator with the given evaluation keys.
func (eval Evaluator) WithKey(evk *rlwe.EvaluationKeySet) *Evaluator {
	return &Evaluator{
		Evaluator:      eval.Evaluator.WithKey(evk),
		EncryptedArray: eval.EncryptedArray,
	}
}

// GaloisElementsForRotation returns the Galois elements needed by Rotate for
// the given rotations, sorted and without duplicates.
func (ea EncryptedArray) GaloisElementsForRotation(k ...int) (galEls []uint64) {

	r := ea.ctx.Ring()
	N := ea.Slots()
	half := ea.RowSize()

	set := map[uint64]bool{}
	for _, ki := range k {

		if ki = ((ki % N) + N) % N; ki == 0 {
			continue
		}

		if ki >= half {
			set[r.GaloisElementForConjugate()] = true
			ki -= half
		}

		if ki != 0 {
			set[r.GaloisElement(ki)] = true
			set[r.GaloisElementForConjugate()] = true
		}
	}

	galEls = utils.GetSortedKeys(set)

	return
}

// GaloisElementsForRowRotation returns the Galois elements needed by RotateRows.
func (ea EncryptedArray) GaloisElementsForRowRotation(k ...int) (galEls []uint64) {
	r := ea.ctx.Ring()
	for _, ki := range k {
		if ki%ea.RowSize() != 0 {
			galEls = append(galEls, r.GaloisElement(ki))
		}
	}
	slices.Sort(galEls)
	return slices.Compact(galEls)
}

// RotateRows rotates both rows of the hypercube k positions to the left and
// writes the result on opOut: slot i of a row receives slot i+k mod N/2.
func (eval Evaluator) RotateRows(ct *rlwe.Ciphertext, k int, opOut *rlwe.Ciphertext) (err error) {

	if k%eval.RowSize() == 0 {
		opOut.Copy(ct)
		return
	}

	if err = eval.Automorphism(ct, eval.Context().Ring().GaloisElement(k), opOut); err != nil {
		return fmt.Errorf("cannot RotateRows: %w", err)
	}

	return
}

// RotateRowsNew rotates the rows of ct and returns the result in a new Ciphertext.
func (eval Evaluator) RotateRowsNew(ct *rlwe.Ciphertext, k int) (opOut *rlwe.Ciphertext, err error) {
	opOut = &rlwe.Ciphertext{}
	return opOut, eval.RotateRows(ct, k, opOut)
}

// SwapRows swaps the two rows of the hypercube and writes the result on opOut.
func (eval Evaluator) SwapRows(ct, opOut *rlwe.Ciphertext) (err error) {
	if err = eval.Conjugate(ct, opOut); err != nil {
		return fmt.Errorf("cannot SwapRows: %w", err)
	}
	return
}

// SwapRowsNew swaps the rows of ct and returns the result in a new Ciphertext.
func (eval Evaluator) SwapRowsNew(ct *rlwe.Ciphertext) (opOut *rlwe.Ciphertext, err error) {
	opOut = &rlwe.Ciphertext{}
	return opOut, eval.SwapRows(ct, opOut)
}

// Rotate rotates the N slots of ct cyclically k positions to the left, the
// slots being ordered row after row, and writes the result on opOut: slot s
// receives slot s+k mod N. Negative k rotate to the right.
//
// For 0 < k < N/2, the result is mask_lo * A + mask_hi * swap(A), where A is
// the rotation of the rows by k and mask_lo selects the slots i < N/2 - k of
// each row. Rotations by k >= N/2 add a row swap. The level is unchanged.
func (eval Evaluator) Rotate(ct *rlwe.Ciphertext, k int, opOut *rlwe.Ciphertext) (err error) {

	N := eval.Slots()
	half := eval.RowSize()

	k = ((k % N) + N) % N

	if k == 0 {
		opOut.Copy(ct)
		return
	}

	swap := k >= half
	if swap {
		k -= half
	}

	res := ct

	if k != 0 {

		var a, b *rlwe.Ciphertext

		if a, err = eval.RotateRowsNew(ct, k); err != nil {
			return fmt.Errorf("cannot Rotate: %w", err)
		}

		if b, err = eval.SwapRowsNew(a); err != nil {
			return fmt.Errorf("cannot Rotate: %w", err)
		}

		var lo, hi *rlwe.Plaintext
		if lo, hi, err = eval.rotationMasks(k, ct.Level()); err != nil {
			return fmt.Errorf("cannot Rotate: %w", err)
		}

		if err = eval.MulPlain(a, lo, a); err != nil {
			return fmt.Errorf("cannot Rotate: %w", err)
		}

		if err = eval.MulPlain(b, hi, b); err != nil {
			return fmt.Errorf("cannot Rotate: %w", err)
		}

		if err = eval.Add(a, b, a); err != nil {
			return fmt.Errorf("cannot Rotate: %w", err)
		}

		res = a
	}

	if swap {
		return eval.SwapRows(res, opOut)
	}

	opOut.Copy(res)

	return
}

// RotateNew rotates the slots of ct k positions to the left and returns the result in a new Ciphertext.
func (eval Evaluator) RotateNew(ct *rlwe.Ciphertext, k int) (opOut *rlwe.Ciphertext, err error) {
	opOut = &rlwe.Ciphertext{}
	return opOut, eval.Rotate(ct, k, opOut)
}

// Align returns op0 and op1 at the smallest of their levels.
// Factors are aligned by the additions themselves.
func (eval Evaluator) Align(op0, op1 *rlwe.Ciphertext) (a, b *rlwe.Ciphertext, err error) {

	a, b = op0, op1

	switch {
	case op0.Level() > op1.Level():
		a, err = eval.ReduceChainIndexNew(op0, op1.Level())
	case op1.Level() > op0.Level():
		b, err = eval.ReduceChainIndexNew(op1, op0.Level())
	}

	return
}

// MulRelinRescale aligns the levels of op0 and op1, multiplies them,
// relinearizes and, above level 0, switches the result down one level.
func (eval Evaluator) MulRelinRescale(op0, op1, opOut *rlwe.Ciphertext) (err error) {

	a, b, err := eval.Align(op0, op1)
	if err != nil {
		return
	}

	if err = eval.MulRelin(a, b, opOut); err != nil {
		return
	}

	if opOut.Level() > 0 {
		return eval.Rescale(opOut, opOut)
	}

	return
}

// MulRelinRescaleNew multiplies op0 by op1 like MulRelinRescale and returns the result in a new Ciphertext.
func (eval Evaluator) MulRelinRescaleNew(op0, op1 *rlwe.Ciphertext) (opOut *rlwe.Ciphertext, err error) {
	opOut = &rlwe.Ciphertext{}
	return opOut, eval.MulRelinRescale(op0, op1, opOut)
}

// TotalProduct returns the product of the ciphertexts, computed as a balanced
// binary tree of MulRelinRescale so that the depth is ceil(log2(len(cts))).
func (eval Evaluator) TotalProduct(cts []*rlwe.Ciphertext) (opOut *rlwe.Ciphertext, err error) {

	if len(cts) == 0 {
		return nil, fmt.Errorf("cannot TotalProduct: no ciphertexts")
	}

	layer := make([]*rlwe.Ciphertext, len(cts))
	copy(layer, cts)

	for len(layer) > 1 {

		next := make([]*rlwe.Ciphertext, 0, (len(layer)+1)/2)

		for i := 0; i+1 < len(layer); i += 2 {
			var prod *rlwe.Ciphertext
			if prod, err = eval.MulRelinRescaleNew(layer[i], layer[i+1]); err != nil {
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

// Power computes ct^e for e >= 1 and writes the result on opOut. The
// powers ct^(2^i) are obtained by repeated squaring and those selected by
// the bits of e are multiplied with TotalProduct.
func (eval Evaluator) Power(ct *rlwe.Ciphertext, e int, opOut *rlwe.Ciphertext) (err error) {

	if e < 1 {
		return fmt.Errorf("cannot Power: exponent %d must be at least 1", e)
	}

	var factors []*rlwe.Ciphertext

	sq := ct
	for {
		if e&1 == 1 {
			factors = append(factors, sq)
		}

		if e >>= 1; e == 0 {
			break
		}

		if sq, err = eval.MulRelinRescaleNew(sq, sq); err != nil {
			return fmt.Errorf("cannot Power: %w", err)
		}
	}

	var res *rlwe.Ciphertext
	if res, err = eval.TotalProduct(factors); err != nil {
		return fmt.Errorf("cannot Power: %w", err)
	}

	*opOut = *res

	return
}

// PowerNew computes ct^e and returns the result in a new Ciphertext.
func (eval Evaluator) PowerNew(ct *rlwe.Ciphertext, e int) (opOut *rlwe.Ciphertext, err error) {
	opOut = &rlwe.Ciphertext{}
	return opOut, eval.Power(ct, e, opOut)
}
