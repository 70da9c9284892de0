package rlwe

import (
	"fmt"
	"math"
	"math/big"

	"golang.org/x/exp/slices"

	"github.com/tuneinsight/hetile/ring"
	"github.com/tuneinsight/hetile/utils/bignum"
)

// ScaleTolerance is the largest relative difference between the scales
// of two CKKS operands that are added together.
const ScaleTolerance = 1e-9

// Evaluator is a struct that holds the necessary elements to execute general
// homomorphic operations on RLWE ciphertexts, such as additions, products,
// rescaling, key switching and automorphisms.
//
// Binary operations require both operands at the same level and fail with
// ErrLevelMismatch otherwise. The output operand may alias the inputs.
type Evaluator struct {
	ctx *Context
	evk *EvaluationKeySet
}

// NewEvaluator creates a new Evaluator.
func NewEvaluator(ctx *Context, evk *EvaluationKeySet) *Evaluator {
	return &Evaluator{ctx: ctx, evk: evk}
}

// Context returns the context of the evaluator.
func (eval Evaluator) Context() *Context {
	return eval.ctx
}

// EvaluationKeySet returns the evaluation keys of the evaluator.
func (eval Evaluator) EvaluationKeySet() *EvaluationKeySet {
	return eval.evk
}

// WithKey creates a shallow copy of the receiver Evaluator with the given evaluation keys.
func (eval Evaluator) WithKey(evk *EvaluationKeySet) *Evaluator {
	return &Evaluator{ctx: eval.ctx, evk: evk}
}

func (eval Evaluator) checkBinary(op0, op1 *Ciphertext) (err error) {
	if err = op0.check(); err != nil {
		return
	}
	if err = op1.check(); err != nil {
		return
	}
	if op0.Level() != op1.Level() {
		return fmt.Errorf("%w: %d != %d", ErrLevelMismatch, op0.Level(), op1.Level())
	}
	if op0.PtxtSpace != op1.PtxtSpace {
		return fmt.Errorf("plaintext spaces %d and %d differ", op0.PtxtSpace, op1.PtxtSpace)
	}
	return
}

func checkScales(a, b float64) error {
	if math.Abs(a/b-1) > ScaleTolerance {
		return fmt.Errorf("%w: 2^%.4f != 2^%.4f", ErrScaleMismatch, math.Log2(a), math.Log2(b))
	}
	return nil
}

// centered returns c mod t in [-t/2, t/2).
func centered(c *big.Int, t uint64) *big.Int {
	T := new(big.Int).SetUint64(t)
	r := new(big.Int).Mod(c, T)
	return bignum.Center(r, T)
}

// alignFactor returns op1 with the factor of op0 (BGV).
func (eval Evaluator) alignFactor(op0, op1 *Ciphertext) (*Ciphertext, error) {

	t := op0.PtxtSpace
	if t <= 1 || op0.Factor == op1.Factor {
		return op1, nil
	}

	inv := new(big.Int).ModInverse(new(big.Int).SetUint64(op1.Factor), new(big.Int).SetUint64(t))
	if inv == nil {
		return nil, fmt.Errorf("factor %d is not invertible modulo %d", op1.Factor, t)
	}

	c := centered(inv.Mul(inv, new(big.Int).SetUint64(op0.Factor)), t)

	out := op1.CopyNew()
	for _, p := range out.Parts {
		p.Value.MulScalarBigint(p.Value, c)
	}
	out.NoiseBound += log2BigAbs(c)
	out.Factor = op0.Factor

	return out, nil
}

func sortParts(parts []CtxtPart) {
	slices.SortStableFunc(parts, func(a, b CtxtPart) bool {
		return a.Handle.less(b.Handle)
	})
}

func (eval Evaluator) combine(op0, op1 *Ciphertext, neg bool) (parts []CtxtPart, err error) {

	parts = make([]CtxtPart, len(op0.Parts))
	for i, p := range op0.Parts {
		parts[i] = CtxtPart{Value: p.Value.CopyNew(), Handle: p.Handle}
	}

	for _, p := range op1.Parts {

		idx := -1
		for i := range parts {
			if parts[i].Handle == p.Handle {
				idx = i
				break
			}
		}

		if idx < 0 {
			v := p.Value.CopyNew()
			if neg {
				v.Neg(v)
			}
			parts = append(parts, CtxtPart{Value: v, Handle: p.Handle})
			continue
		}

		if neg {
			err = parts[idx].Value.Sub(parts[idx].Value, p.Value, false)
		} else {
			err = parts[idx].Value.Add(parts[idx].Value, p.Value, false)
		}

		if err != nil {
			return
		}
	}

	sortParts(parts)

	return
}

func (eval Evaluator) addOrSub(op0, op1, opOut *Ciphertext, neg bool) (err error) {

	if err = eval.checkBinary(op0, op1); err != nil {
		return
	}

	if eval.ctx.scheme == CKKS {
		if err = checkScales(op0.Scale, op1.Scale); err != nil {
			return
		}
	}

	if op1, err = eval.alignFactor(op0, op1); err != nil {
		return
	}

	var parts []CtxtPart
	if parts, err = eval.combine(op0, op1, neg); err != nil {
		return
	}

	*opOut = Ciphertext{
		Parts:      parts,
		NoiseBound: log2Sum(op0.NoiseBound, op1.NoiseBound),
		PtxtSpace:  op0.PtxtSpace,
		Factor:     op0.Factor,
		Scale:      op0.Scale,
	}

	return
}

// Add adds op0 to op1 and writes the result on opOut.
func (eval Evaluator) Add(op0, op1, opOut *Ciphertext) (err error) {
	if err = eval.addOrSub(op0, op1, opOut, false); err != nil {
		return fmt.Errorf("cannot Add: %w", err)
	}
	return
}

// AddNew adds op0 to op1 and returns the result in a new Ciphertext.
func (eval Evaluator) AddNew(op0, op1 *Ciphertext) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.Add(op0, op1, opOut)
}

// Sub subtracts op1 from op0 and writes the result on opOut.
func (eval Evaluator) Sub(op0, op1, opOut *Ciphertext) (err error) {
	if err = eval.addOrSub(op0, op1, opOut, true); err != nil {
		return fmt.Errorf("cannot Sub: %w", err)
	}
	return
}

// SubNew subtracts op1 from op0 and returns the result in a new Ciphertext.
func (eval Evaluator) SubNew(op0, op1 *Ciphertext) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.Sub(op0, op1, opOut)
}

// Neg negates op and writes the result on opOut.
func (eval Evaluator) Neg(op, opOut *Ciphertext) (err error) {
	if err = op.check(); err != nil {
		return fmt.Errorf("cannot Neg: %w", err)
	}
	opOut.Copy(op)
	for _, p := range opOut.Parts {
		p.Value.Neg(p.Value)
	}
	return
}

// NegNew negates op and returns the result in a new Ciphertext.
func (eval Evaluator) NegNew(op *Ciphertext) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.Neg(op, opOut)
}

// plaintextFor returns pt over the primes of ct, multiplied by the factor of ct (BGV).
func (eval Evaluator) plaintextFor(ct *Ciphertext, pt *Plaintext) (v *ring.DoubleCRT, logBound float64, err error) {

	if v, err = pt.over(ct.IndexSet()); err != nil {
		return
	}

	logBound = pt.LogBound

	if t := ct.PtxtSpace; t > 1 && ct.Factor != 1 {
		f := new(big.Int).SetUint64(ct.Factor)
		coeffs := v.BigCoeffs(true)
		for i := range coeffs {
			coeffs[i] = centered(coeffs[i].Mul(coeffs[i], f), t)
		}
		v = ring.NewDoubleCRTFromBigInt(eval.ctx.ring, ct.IndexSet(), coeffs)
		logBound = logInfNorm(coeffs)
	}

	return
}

func (eval Evaluator) addPlain(ct *Ciphertext, pt *Plaintext, opOut *Ciphertext, neg bool) (err error) {

	if err = ct.check(); err != nil {
		return
	}

	if eval.ctx.scheme == CKKS {
		if err = checkScales(ct.Scale, pt.Scale); err != nil {
			return
		}
	}

	var v *ring.DoubleCRT
	var logBound float64
	if v, logBound, err = eval.plaintextFor(ct, pt); err != nil {
		return
	}

	noise := log2Sum(ct.NoiseBound, logBound)

	opOut.Copy(ct)

	idx := opOut.part(OneHandle())
	if idx < 0 {
		opOut.Parts = append([]CtxtPart{{Value: ring.NewDoubleCRT(eval.ctx.ring, ct.IndexSet()), Handle: OneHandle()}}, opOut.Parts...)
		idx = 0
	}

	c0 := opOut.Parts[idx].Value
	if neg {
		err = c0.Sub(c0, v, false)
	} else {
		err = c0.Add(c0, v, false)
	}

	opOut.NoiseBound = noise

	return
}

// AddPlain adds the plaintext to ct and writes the result on opOut.
// The plaintext must be at a level larger than or equal to ct.
func (eval Evaluator) AddPlain(ct *Ciphertext, pt *Plaintext, opOut *Ciphertext) (err error) {
	if err = eval.addPlain(ct, pt, opOut, false); err != nil {
		return fmt.Errorf("cannot AddPlain: %w", err)
	}
	return
}

// AddPlainNew adds the plaintext to ct and returns the result in a new Ciphertext.
func (eval Evaluator) AddPlainNew(ct *Ciphertext, pt *Plaintext) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.AddPlain(ct, pt, opOut)
}

// SubPlain subtracts the plaintext from ct and writes the result on opOut.
func (eval Evaluator) SubPlain(ct *Ciphertext, pt *Plaintext, opOut *Ciphertext) (err error) {
	if err = eval.addPlain(ct, pt, opOut, true); err != nil {
		return fmt.Errorf("cannot SubPlain: %w", err)
	}
	return
}

// SubPlainNew subtracts the plaintext from ct and returns the result in a new Ciphertext.
func (eval Evaluator) SubPlainNew(ct *Ciphertext, pt *Plaintext) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.SubPlain(ct, pt, opOut)
}

// MulPlain multiplies ct by the plaintext and writes the result on opOut.
// For CKKS, the scale of the result is the product of the scales.
func (eval Evaluator) MulPlain(ct *Ciphertext, pt *Plaintext, opOut *Ciphertext) (err error) {

	if err = ct.check(); err != nil {
		return fmt.Errorf("cannot MulPlain: %w", err)
	}

	var v *ring.DoubleCRT
	if v, err = pt.over(ct.IndexSet()); err != nil {
		return fmt.Errorf("cannot MulPlain: %w", err)
	}

	noise := eval.ctx.noiseProduct(ct.NoiseBound, pt.LogBound)
	scale := ct.Scale * pt.Scale

	opOut.Copy(ct)
	for _, p := range opOut.Parts {
		if err = p.Value.Mul(p.Value, v, false); err != nil {
			return fmt.Errorf("cannot MulPlain: %w", err)
		}
	}

	opOut.NoiseBound = noise

	if eval.ctx.scheme == CKKS {
		opOut.Scale = scale
	}

	return
}

// MulPlainNew multiplies ct by the plaintext and returns the result in a new Ciphertext.
func (eval Evaluator) MulPlainNew(ct *Ciphertext, pt *Plaintext) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.MulPlain(ct, pt, opOut)
}

// MulScalar multiplies ct by the integer c and writes the result on opOut.
// For BGV, c is taken modulo t. The scale and the factor are unchanged.
func (eval Evaluator) MulScalar(ct *Ciphertext, c *big.Int, opOut *Ciphertext) (err error) {

	if err = ct.check(); err != nil {
		return fmt.Errorf("cannot MulScalar: %w", err)
	}

	if t := ct.PtxtSpace; t > 1 {
		c = centered(c, t)
	}

	noise := ct.NoiseBound + log2BigAbs(c)
	if c.Sign() == 0 {
		noise = 0
	}

	opOut.Copy(ct)
	for _, p := range opOut.Parts {
		p.Value.MulScalarBigint(p.Value, c)
	}

	opOut.NoiseBound = noise

	return
}

// MulScalarNew multiplies ct by the integer c and returns the result in a new Ciphertext.
func (eval Evaluator) MulScalarNew(ct *Ciphertext, c *big.Int) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.MulScalar(ct, c, opOut)
}

// AddScalar adds the integer c to ct and writes the result on opOut. For BGV, c
// is the constant plaintext; for CKKS it must be already multiplied by the scale.
func (eval Evaluator) AddScalar(ct *Ciphertext, c *big.Int, opOut *Ciphertext) (err error) {

	if err = ct.check(); err != nil {
		return fmt.Errorf("cannot AddScalar: %w", err)
	}

	if t := ct.PtxtSpace; t > 1 {
		c = centered(new(big.Int).Mul(c, new(big.Int).SetUint64(ct.Factor)), t)
	}

	noise := log2Sum(ct.NoiseBound, log2BigAbs(c))

	opOut.Copy(ct)

	idx := opOut.part(OneHandle())
	if idx < 0 {
		opOut.Parts = append([]CtxtPart{{Value: ring.NewDoubleCRT(eval.ctx.ring, ct.IndexSet()), Handle: OneHandle()}}, opOut.Parts...)
		idx = 0
	}

	c0 := opOut.Parts[idx].Value
	c0.AddScalarBigint(c0, c)

	opOut.NoiseBound = noise

	return
}

// AddScalarNew adds the integer c to ct and returns the result in a new Ciphertext.
func (eval Evaluator) AddScalarNew(ct *Ciphertext, c *big.Int) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.AddScalar(ct, c, opOut)
}

// Mul computes the tensor product of op0 and op1 and writes the result on opOut.
// The handles of the parts of the result are the products of the handles of the
// operands; the result has three parts for canonical operands under the same key.
func (eval Evaluator) Mul(op0, op1, opOut *Ciphertext) (err error) {

	if err = eval.checkBinary(op0, op1); err != nil {
		return fmt.Errorf("cannot Mul: %w", err)
	}

	var parts []CtxtPart

	for _, a := range op0.Parts {
		for _, b := range op1.Parts {

			h, ok := a.Handle.Mul(b.Handle)
			if !ok {
				return fmt.Errorf("cannot Mul: %w: parts under %v and %v, relinearize first", ErrKeyMaterial, a.Handle, b.Handle)
			}

			prod := ring.NewDoubleCRT(eval.ctx.ring, op0.IndexSet())
			if err = prod.Mul(a.Value, b.Value, false); err != nil {
				return fmt.Errorf("cannot Mul: %w", err)
			}

			merged := false
			for i := range parts {
				if parts[i].Handle == h {
					if err = parts[i].Value.Add(parts[i].Value, prod, false); err != nil {
						return fmt.Errorf("cannot Mul: %w", err)
					}
					merged = true
					break
				}
			}

			if !merged {
				parts = append(parts, CtxtPart{Value: prod, Handle: h})
			}
		}
	}

	sortParts(parts)

	factor := op0.Factor
	if t := op0.PtxtSpace; t > 1 {
		f0, f1 := new(big.Int).SetUint64(op0.Factor), new(big.Int).SetUint64(op1.Factor)
		factor = f0.Mul(f0, f1).Mod(f0, new(big.Int).SetUint64(t)).Uint64()
	}

	*opOut = Ciphertext{
		Parts:      parts,
		NoiseBound: eval.ctx.noiseProduct(op0.NoiseBound, op1.NoiseBound),
		PtxtSpace:  op0.PtxtSpace,
		Factor:     factor,
		Scale:      op0.Scale * op1.Scale,
	}

	return
}

// MulNew computes the tensor product of op0 and op1 and returns the result in a new Ciphertext.
func (eval Evaluator) MulNew(op0, op1 *Ciphertext) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.Mul(op0, op1, opOut)
}

// MulRelin multiplies op0 by op1, relinearizes and writes the result on opOut.
func (eval Evaluator) MulRelin(op0, op1, opOut *Ciphertext) (err error) {
	if err = eval.Mul(op0, op1, opOut); err != nil {
		return
	}
	return eval.Relinearize(opOut, opOut)
}

// MulRelinNew multiplies op0 by op1, relinearizes and returns the result in a new Ciphertext.
func (eval Evaluator) MulRelinNew(op0, op1 *Ciphertext) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.MulRelin(op0, op1, opOut)
}

// Relinearize key-switches every part of ct whose handle is neither 1 nor s_KeyID,
// where KeyID is the unique key of the ciphertext, and writes the resulting
// canonical ciphertext on opOut. It fails with ErrKeyMaterial if a needed
// key-switching matrix is missing.
func (eval Evaluator) Relinearize(ct, opOut *Ciphertext) (err error) {

	ids := ct.KeyIDs()

	switch len(ids) {
	case 0:
		opOut.Copy(ct)
		return
	case 1:
		if err = eval.KeySwitch(ct, ids[0], opOut); err != nil {
			return fmt.Errorf("cannot Relinearize: %w", err)
		}
		return
	default:
		return fmt.Errorf("cannot Relinearize: %w: parts under the keys %v, use KeySwitch", ErrKeyMaterial, ids)
	}
}

// RelinearizeNew relinearizes ct and returns the result in a new Ciphertext.
func (eval Evaluator) RelinearizeNew(ct *Ciphertext) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.Relinearize(ct, opOut)
}

// KeySwitch writes on opOut a canonical ciphertext under the key toKeyID with
// the same decryption as ct.
func (eval Evaluator) KeySwitch(ct *Ciphertext, toKeyID int, opOut *Ciphertext) (err error) {

	if err = ct.check(); err != nil {
		return fmt.Errorf("cannot KeySwitch: %w", err)
	}

	parts, switched, err := eval.ctx.keySwitch(ct, toKeyID, eval.evk)
	if err != nil {
		return fmt.Errorf("cannot KeySwitch: %w", err)
	}

	noise := ct.NoiseBound
	if switched {
		noise = log2Sum(noise, eval.ctx.noiseKeySwitch(ct.Level()))
	}

	*opOut = Ciphertext{
		Parts:      parts,
		NoiseBound: noise,
		PtxtSpace:  ct.PtxtSpace,
		Factor:     ct.Factor,
		Scale:      ct.Scale,
	}

	return
}

// KeySwitchNew key-switches ct to the key toKeyID and returns the result in a new Ciphertext.
func (eval Evaluator) KeySwitchNew(ct *Ciphertext, toKeyID int) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.KeySwitch(ct, toKeyID, opOut)
}

func (eval Evaluator) divideByLastPrime(ct, opOut *Ciphertext) (q uint64, err error) {

	if err = ct.check(); err != nil {
		return
	}

	if ct.Level() == 0 {
		return 0, fmt.Errorf("%w: ciphertext is at level 0", ErrCapacityExhausted)
	}

	last := ct.IndexSet().Last()
	q = eval.ctx.ring.Modulus(last).Q

	opOut.Copy(ct)
	for _, p := range opOut.Parts {
		if err = p.Value.DivideByPrime(last, eval.ctx.t); err != nil {
			return
		}
	}

	return
}

// Rescale divides ct by its last chain prime q with rounding and writes the
// result on opOut, one level below. For BGV, the rounding is a multiple of t
// and the factor is multiplied by q^-1 mod t. For CKKS, the scale is divided by q.
// It fails with ErrCapacityExhausted at level 0.
func (eval Evaluator) Rescale(ct, opOut *Ciphertext) (err error) {

	noise, parts := ct.NoiseBound, ct.Parts

	var q uint64
	if q, err = eval.divideByLastPrime(ct, opOut); err != nil {
		return fmt.Errorf("cannot Rescale: %w", err)
	}

	opOut.NoiseBound = eval.ctx.noiseRescale(noise, q, parts)

	switch eval.ctx.scheme {
	case BGV:
		t := new(big.Int).SetUint64(opOut.PtxtSpace)
		qInv := new(big.Int).ModInverse(new(big.Int).SetUint64(q%opOut.PtxtSpace), t)
		f := new(big.Int).SetUint64(opOut.Factor)
		opOut.Factor = f.Mul(f, qInv).Mod(f, t).Uint64()
	case CKKS:
		opOut.Scale /= float64(q)
	}

	return
}

// RescaleNew rescales ct and returns the result in a new Ciphertext.
func (eval Evaluator) RescaleNew(ct *Ciphertext) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.Rescale(ct, opOut)
}

// RescaleRaw divides ct by its last chain prime like Rescale, but leaves the
// noise bound, the factor and the scale unchanged. The caller is responsible
// for updating them.
func (eval Evaluator) RescaleRaw(ct, opOut *Ciphertext) (err error) {
	if _, err = eval.divideByLastPrime(ct, opOut); err != nil {
		return fmt.Errorf("cannot RescaleRaw: %w", err)
	}
	return
}

// ReduceChainIndex drops the chain primes of ct above the given level without
// division and writes the result on opOut. The decryption is unchanged.
func (eval Evaluator) ReduceChainIndex(ct *Ciphertext, level int, opOut *Ciphertext) (err error) {

	if err = ct.check(); err != nil {
		return fmt.Errorf("cannot ReduceChainIndex: %w", err)
	}

	if level < 0 {
		return fmt.Errorf("cannot ReduceChainIndex: %w: level=%d", ErrCapacityExhausted, level)
	}

	if level > ct.Level() {
		return fmt.Errorf("cannot ReduceChainIndex: %w: cannot raise level %d to %d", ErrLevelMismatch, ct.Level(), level)
	}

	set := eval.ctx.LevelSet(level)

	opOut.Copy(ct)
	for _, p := range opOut.Parts {
		if err = p.Value.DropTo(set); err != nil {
			return fmt.Errorf("cannot ReduceChainIndex: %w", err)
		}
	}

	return
}

// ReduceChainIndexNew drops the chain primes of ct above the given level and returns the result in a new Ciphertext.
func (eval Evaluator) ReduceChainIndexNew(ct *Ciphertext, level int) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.ReduceChainIndex(ct, level, opOut)
}

// SetChainIndex reduces ct to the level of other, which must not be larger.
func (eval Evaluator) SetChainIndex(ct, other, opOut *Ciphertext) (err error) {
	return eval.ReduceChainIndex(ct, other.Level(), opOut)
}

// Automorphism applies X -> X^galEl to ct, key-switches the result back to the
// key of ct and writes it on opOut. It needs the matrix of s(X^galEl).
func (eval Evaluator) Automorphism(ct *Ciphertext, galEl uint64, opOut *Ciphertext) (err error) {

	if err = ct.check(); err != nil {
		return fmt.Errorf("cannot Automorphism: %w", err)
	}

	M := uint64(eval.ctx.m)
	if galEl&1 == 0 || galEl >= M {
		return fmt.Errorf("cannot Automorphism: galEl=%d must be odd and smaller than %d", galEl, M)
	}

	ids := ct.KeyIDs()
	if len(ids) > 1 {
		return fmt.Errorf("cannot Automorphism: %w: parts under the keys %v", ErrKeyMaterial, ids)
	}

	permuted := &Ciphertext{}
	permuted.Copy(ct)
	for i, p := range ct.Parts {
		permuted.Parts[i].Value.Automorphism(p.Value, galEl)
		permuted.Parts[i].Handle = p.Handle.Compose(galEl, M)
	}

	if len(ids) == 0 {
		opOut.Copy(permuted)
		return
	}

	if err = eval.KeySwitch(permuted, ids[0], opOut); err != nil {
		return fmt.Errorf("cannot Automorphism: %w", err)
	}

	return
}

// AutomorphismNew applies X -> X^galEl to ct and returns the result in a new Ciphertext.
func (eval Evaluator) AutomorphismNew(ct *Ciphertext, galEl uint64) (opOut *Ciphertext, err error) {
	opOut = &Ciphertext{}
	return opOut, eval.Automorphism(ct, galEl, opOut)
}

// Conjugate applies X -> X^-1 to ct and writes the result on opOut.
func (eval Evaluator) Conjugate(ct, opOut *Ciphertext) (err error) {
	return eval.Automorphism(ct, eval.ctx.ring.GaloisElementForConjugate(), opOut)
}

// Capacity returns the estimated number of bits left before decryption fails.
func (eval Evaluator) Capacity(ct *Ciphertext) float64 {
	return ct.Capacity(eval.ctx)
}
