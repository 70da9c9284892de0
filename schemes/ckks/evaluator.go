package ckks

import (
	"fmt"
	"math"
	"math/big"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/utils"
)

// Evaluator is a struct that holds the necessary elements to perform the
// homomorphic operations of the CKKS scheme on ciphertexts.
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

// GaloisElementsForRotation returns the sorted Galois elements needed to rotate by the given k.
func (ea EncryptedArray) GaloisElementsForRotation(k ...int) (galEls []uint64) {
	r := ea.ctx.Ring()
	n := ea.Slots()
	set := map[uint64]bool{}
	for _, ki := range k {
		if ki = ((ki % n) + n) % n; ki != 0 {
			set[r.GaloisElement(ki)] = true
		}
	}
	return utils.GetSortedKeys(set)
}

// Rotate rotates the slots of ct k positions to the left and writes the result
// on opOut: slot j receives slot j+k mod N/2. Negative k rotate to the right.
func (eval Evaluator) Rotate(ct *rlwe.Ciphertext, k int, opOut *rlwe.Ciphertext) (err error) {

	n := eval.Slots()

	if k = ((k % n) + n) % n; k == 0 {
		opOut.Copy(ct)
		return
	}

	if err = eval.Automorphism(ct, eval.Context().Ring().GaloisElement(k), opOut); err != nil {
		return fmt.Errorf("cannot Rotate: %w", err)
	}

	return
}

// RotateNew rotates the slots of ct k positions to the left and returns the result in a new Ciphertext.
func (eval Evaluator) RotateNew(ct *rlwe.Ciphertext, k int) (opOut *rlwe.Ciphertext, err error) {
	opOut = &rlwe.Ciphertext{}
	return opOut, eval.Rotate(ct, k, opOut)
}

// ConjugateNew conjugates the slots of ct and returns the result in a new Ciphertext.
func (eval Evaluator) ConjugateNew(ct *rlwe.Ciphertext) (opOut *rlwe.Ciphertext, err error) {
	opOut = &rlwe.Ciphertext{}
	return opOut, eval.Conjugate(ct, opOut)
}

// SetScale brings ct to the given level with the given scale, keeping its
// values, and writes the result on opOut. The level must be below the level
// of ct: ct is lowered to level+1, multiplied by round(scale*q/ct.Scale) for
// q the last prime at level+1, and rescaled.
func (eval Evaluator) SetScale(ct *rlwe.Ciphertext, scale float64, level int, opOut *rlwe.Ciphertext) (err error) {

	if level < 0 || level >= ct.Level() {
		return fmt.Errorf("cannot SetScale: %w: target level %d must be in [0, %d)", rlwe.ErrLevelMismatch, level, ct.Level())
	}

	if scale <= 0 {
		return fmt.Errorf("cannot SetScale: invalid scale %v", scale)
	}

	ctx := eval.Context()
	q := float64(ctx.Ring().Modulus(ctx.LevelSet(level + 1).Last()).Q)

	c := toFixedPoint(scale*q/ct.Scale, 1)
	if c.Sign() <= 0 {
		return fmt.Errorf("cannot SetScale: %w: 2^%.2f is too small for 2^%.2f at level %d", rlwe.ErrScaleMismatch, math.Log2(scale), math.Log2(ct.Scale), level)
	}

	tmp := &rlwe.Ciphertext{}
	if err = eval.ReduceChainIndex(ct, level+1, tmp); err != nil {
		return fmt.Errorf("cannot SetScale: %w", err)
	}

	if err = eval.MulScalar(tmp, c, tmp); err != nil {
		return fmt.Errorf("cannot SetScale: %w", err)
	}

	cf, _ := new(big.Float).SetInt(c).Float64()
	tmp.Scale *= cf

	if err = eval.Rescale(tmp, opOut); err != nil {
		return fmt.Errorf("cannot SetScale: %w", err)
	}

	if math.Abs(opOut.Scale/scale-1) <= rlwe.ScaleTolerance {
		opOut.Scale = scale
	}

	return
}

// SetScaleNew brings ct to the given level and scale and returns the result in a new Ciphertext.
func (eval Evaluator) SetScaleNew(ct *rlwe.Ciphertext, scale float64, level int) (opOut *rlwe.Ciphertext, err error) {
	opOut = &rlwe.Ciphertext{}
	return opOut, eval.SetScale(ct, scale, level, opOut)
}

// Align returns op0 and op1 at the same level and with the same scale.
//
// The operand at the higher level is brought down to the other one, by
// dropping primes if the scales agree and with SetScale otherwise. Operands on
// the same level with different scales are both brought one level down to the
// scale of op0, which fails with ErrScaleMismatch at level 0.
func (eval Evaluator) Align(op0, op1 *rlwe.Ciphertext) (a, b *rlwe.Ciphertext, err error) {

	a, b = op0, op1

	sameScale := math.Abs(op0.Scale/op1.Scale-1) <= rlwe.ScaleTolerance

	switch {
	case op0.Level() > op1.Level():
		if sameScale {
			a, err = eval.ReduceChainIndexNew(op0, op1.Level())
		} else {
			a, err = eval.SetScaleNew(op0, op1.Scale, op1.Level())
		}
	case op1.Level() > op0.Level():
		if sameScale {
			b, err = eval.ReduceChainIndexNew(op1, op0.Level())
		} else {
			b, err = eval.SetScaleNew(op1, op0.Scale, op0.Level())
		}
	case !sameScale:
		level := op0.Level() - 1
		if level < 0 {
			return nil, nil, fmt.Errorf("cannot Align: %w: 2^%.4f != 2^%.4f at level 0", rlwe.ErrScaleMismatch, math.Log2(op0.Scale), math.Log2(op1.Scale))
		}
		if a, err = eval.SetScaleNew(op0, op0.Scale, level); err != nil {
			return
		}
		b, err = eval.SetScaleNew(op1, op0.Scale, level)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("cannot Align: %w", err)
	}

	return
}

// MultiplyByChangingScale multiplies the values of ct by factor by dividing
// its scale, and writes the result on opOut. No homomorphic operation is performed.
func (eval Evaluator) MultiplyByChangingScale(ct *rlwe.Ciphertext, factor float64, opOut *rlwe.Ciphertext) (err error) {
	if factor == 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("cannot MultiplyByChangingScale: invalid factor %v", factor)
	}
	opOut.Copy(ct)
	opOut.Scale /= factor
	return
}

// MultiplyScalar multiplies the slots of ct by the constant c and writes the
// result on opOut, one level below with the scale of ct.
func (eval Evaluator) MultiplyScalar(ct *rlwe.Ciphertext, c complex128, opOut *rlwe.Ciphertext) (err error) {

	if ct.Level() == 0 {
		return fmt.Errorf("cannot MultiplyScalar: %w: ciphertext is at level 0", rlwe.ErrCapacityExhausted)
	}

	ctx := eval.Context()
	q := float64(ctx.Ring().Modulus(ct.IndexSet().Last()).Q)
	scale := ct.Scale

	pt := eval.constantPlaintext(c, ct.Level(), q)

	tmp := &rlwe.Ciphertext{}
	if err = eval.MulPlain(ct, pt, tmp); err != nil {
		return fmt.Errorf("cannot MultiplyScalar: %w", err)
	}

	if err = eval.Rescale(tmp, opOut); err != nil {
		return fmt.Errorf("cannot MultiplyScalar: %w", err)
	}

	opOut.Scale = scale

	return
}

// MultiplyScalarNew multiplies the slots of ct by c and returns the result in a new Ciphertext.
func (eval Evaluator) MultiplyScalarNew(ct *rlwe.Ciphertext, c complex128) (opOut *rlwe.Ciphertext, err error) {
	opOut = &rlwe.Ciphertext{}
	return opOut, eval.MultiplyScalar(ct, c, opOut)
}

// AddConst adds the constant c to every slot of ct and writes the result on opOut.
func (eval Evaluator) AddConst(ct *rlwe.Ciphertext, c complex128, opOut *rlwe.Ciphertext) (err error) {
	pt := eval.constantPlaintext(c, ct.Level(), ct.Scale)
	if err = eval.AddPlain(ct, pt, opOut); err != nil {
		return fmt.Errorf("cannot AddConst: %w", err)
	}
	return
}

// AddConstNew adds c to every slot of ct and returns the result in a new Ciphertext.
func (eval Evaluator) AddConstNew(ct *rlwe.Ciphertext, c complex128) (opOut *rlwe.Ciphertext, err error) {
	opOut = &rlwe.Ciphertext{}
	return opOut, eval.AddConst(ct, c, opOut)
}

// AddAligned aligns op0 and op1 and adds them.
func (eval Evaluator) AddAligned(op0, op1, opOut *rlwe.Ciphertext) (err error) {
	a, b, err := eval.Align(op0, op1)
	if err != nil {
		return
	}
	return eval.Add(a, b, opOut)
}

// SubAligned aligns op0 and op1 and subtracts op1 from op0.
func (eval Evaluator) SubAligned(op0, op1, opOut *rlwe.Ciphertext) (err error) {
	a, b, err := eval.Align(op0, op1)
	if err != nil {
		return
	}
	return eval.Sub(a, b, opOut)
}

// MulRelinRescale aligns op0 and op1, multiplies them, relinearizes and
// rescales the result by one prime. It fails with ErrCapacityExhausted when
// the operands are at level 0.
func (eval Evaluator) MulRelinRescale(op0, op1, opOut *rlwe.Ciphertext) (err error) {

	a, b, err := eval.Align(op0, op1)
	if err != nil {
		return
	}

	if a.Level() == 0 {
		return fmt.Errorf("cannot MulRelinRescale: %w: operands are at level 0", rlwe.ErrCapacityExhausted)
	}

	if err = eval.MulRelin(a, b, opOut); err != nil {
		return
	}

	return eval.Rescale(opOut, opOut)
}

// MulRelinRescaleNew multiplies op0 by op1 like MulRelinRescale and returns the result in a new Ciphertext.
func (eval Evaluator) MulRelinRescaleNew(op0, op1 *rlwe.Ciphertext) (opOut *rlwe.Ciphertext, err error) {
	opOut = &rlwe.Ciphertext{}
	return opOut, eval.MulRelinRescale(op0, op1, opOut)
}
