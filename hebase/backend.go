package hebase

import (
	"fmt"
	"math"
	"math/big"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/schemes/bgv"
	"github.com/tuneinsight/hetile/schemes/ckks"
)

// backend is the scheme-specific part of an HeContext.
type backend interface {
	slots() int
	traits() Traits
	evaluator() *rlwe.Evaluator
	withKey(evk *rlwe.EvaluationKeySet) backend
	galoisElementsForRotation(k ...int) []uint64

	encode(values interface{}, level int, scale float64) (*rlwe.Plaintext, error)
	decode(pt *rlwe.Plaintext) ([]complex128, error)

	align(op0, op1 *rlwe.Ciphertext) (a, b *rlwe.Ciphertext, err error)
	mulRelinRescale(op0, op1, opOut *rlwe.Ciphertext) error
	rotate(ct *rlwe.Ciphertext, k int, opOut *rlwe.Ciphertext) error
	addScalar(ct *rlwe.Ciphertext, c complex128, opOut *rlwe.Ciphertext) error
	multiplyScalar(ct *rlwe.Ciphertext, c complex128, opOut *rlwe.Ciphertext) error
}

func newBackend(ctx *rlwe.Context, evk *rlwe.EvaluationKeySet) (backend, error) {
	switch ctx.Scheme() {
	case rlwe.BGV:
		ea, err := bgv.NewEncryptedArray(ctx)
		if err != nil {
			return nil, err
		}
		return &bgvBackend{ea: ea, eval: bgv.NewEvaluator(ea, evk)}, nil
	case rlwe.CKKS:
		ea, err := ckks.NewEncryptedArray(ctx)
		if err != nil {
			return nil, err
		}
		return &ckksBackend{ea: ea, eval: ckks.NewEvaluator(ea, evk)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown scheme %v", rlwe.ErrConfiguration, ctx.Scheme())
	}
}

// integer returns c as an integer if it has no imaginary or fractional part.
func integer(c complex128) (*big.Int, bool) {
	if imag(c) != 0 || real(c) != math.Trunc(real(c)) || math.IsInf(real(c), 0) {
		return nil, false
	}
	i, _ := new(big.Float).SetFloat64(real(c)).Int(nil)
	return i, true
}

type bgvBackend struct {
	ea   *bgv.EncryptedArray
	eval *bgv.Evaluator
}

func (b *bgvBackend) slots() int {
	return b.ea.Slots()
}

func (b *bgvBackend) traits() Traits {
	return Traits{
		SupportsExplicitRescale:      true,
		SupportsExplicitChainIndices: true,
		IsModularArithmetic:          true,
		ArithmeticModulus:            b.ea.PlaintextModulus(),
	}
}

func (b *bgvBackend) evaluator() *rlwe.Evaluator {
	return b.eval.Evaluator
}

func (b *bgvBackend) withKey(evk *rlwe.EvaluationKeySet) backend {
	return &bgvBackend{ea: b.ea, eval: b.eval.WithKey(evk)}
}

func (b *bgvBackend) galoisElementsForRotation(k ...int) []uint64 {
	return b.ea.GaloisElementsForRotation(k...)
}

func (b *bgvBackend) encode(values interface{}, level int, scale float64) (pt *rlwe.Plaintext, err error) {

	switch v := values.(type) {
	case []uint64, []int64:
		return b.ea.EncodeNew(v, level)
	case []int:
		ints := make([]int64, len(v))
		for i := range v {
			ints[i] = int64(v[i])
		}
		return b.ea.EncodeNew(ints, level)
	case []float64:
		ints := make([]int64, len(v))
		for i := range v {
			c, ok := integer(complex(v[i], 0))
			if !ok || !c.IsInt64() {
				return nil, fmt.Errorf("value #%d=%v is not an integer", i, v[i])
			}
			ints[i] = c.Int64()
		}
		return b.ea.EncodeNew(ints, level)
	default:
		return nil, fmt.Errorf("cannot encode %T on BGV slots", values)
	}
}

func (b *bgvBackend) decode(pt *rlwe.Plaintext) (values []complex128, err error) {
	var ints []int64
	if ints, err = b.ea.DecodeInt(pt); err != nil {
		return
	}
	values = make([]complex128, len(ints))
	for i := range ints {
		values[i] = complex(float64(ints[i]), 0)
	}
	return
}

func (b *bgvBackend) align(op0, op1 *rlwe.Ciphertext) (*rlwe.Ciphertext, *rlwe.Ciphertext, error) {
	return b.eval.Align(op0, op1)
}

func (b *bgvBackend) mulRelinRescale(op0, op1, opOut *rlwe.Ciphertext) error {
	return b.eval.MulRelinRescale(op0, op1, opOut)
}

func (b *bgvBackend) rotate(ct *rlwe.Ciphertext, k int, opOut *rlwe.Ciphertext) error {
	return b.eval.Rotate(ct, k, opOut)
}

func (b *bgvBackend) addScalar(ct *rlwe.Ciphertext, c complex128, opOut *rlwe.Ciphertext) error {
	i, ok := integer(c)
	if !ok {
		return fmt.Errorf("BGV scalar %v is not an integer", c)
	}
	return b.eval.AddScalar(ct, i, opOut)
}

func (b *bgvBackend) multiplyScalar(ct *rlwe.Ciphertext, c complex128, opOut *rlwe.Ciphertext) error {
	i, ok := integer(c)
	if !ok {
		return fmt.Errorf("BGV scalar %v is not an integer", c)
	}
	return b.eval.MulScalar(ct, i, opOut)
}

type ckksBackend struct {
	ea   *ckks.EncryptedArray
	eval *ckks.Evaluator
}

func (b *ckksBackend) slots() int {
	return b.ea.Slots()
}

func (b *ckksBackend) traits() Traits {
	return Traits{
		SupportsExplicitRescale:      true,
		SupportsExplicitChainIndices: true,
		SupportsComplexNumbers:       true,
		SupportsScaledEncoding:       true,
	}
}

func (b *ckksBackend) evaluator() *rlwe.Evaluator {
	return b.eval.Evaluator
}

func (b *ckksBackend) withKey(evk *rlwe.EvaluationKeySet) backend {
	return &ckksBackend{ea: b.ea, eval: b.eval.WithKey(evk)}
}

func (b *ckksBackend) galoisElementsForRotation(k ...int) []uint64 {
	return b.ea.GaloisElementsForRotation(k...)
}

func (b *ckksBackend) encode(values interface{}, level int, scale float64) (*rlwe.Plaintext, error) {
	switch v := values.(type) {
	case []complex128, []float64:
		return b.ea.EncodeNew(v, level, scale)
	case []int:
		f := make([]float64, len(v))
		for i := range v {
			f[i] = float64(v[i])
		}
		return b.ea.EncodeNew(f, level, scale)
	case []int64:
		f := make([]float64, len(v))
		for i := range v {
			f[i] = float64(v[i])
		}
		return b.ea.EncodeNew(f, level, scale)
	default:
		return nil, fmt.Errorf("cannot encode %T on CKKS slots", values)
	}
}

func (b *ckksBackend) decode(pt *rlwe.Plaintext) ([]complex128, error) {
	return b.ea.Decode(pt)
}

func (b *ckksBackend) align(op0, op1 *rlwe.Ciphertext) (*rlwe.Ciphertext, *rlwe.Ciphertext, error) {
	return b.eval.Align(op0, op1)
}

func (b *ckksBackend) mulRelinRescale(op0, op1, opOut *rlwe.Ciphertext) error {
	return b.eval.MulRelinRescale(op0, op1, opOut)
}

func (b *ckksBackend) rotate(ct *rlwe.Ciphertext, k int, opOut *rlwe.Ciphertext) error {
	return b.eval.Rotate(ct, k, opOut)
}

func (b *ckksBackend) addScalar(ct *rlwe.Ciphertext, c complex128, opOut *rlwe.Ciphertext) error {
	return b.eval.AddConst(ct, c, opOut)
}

// multiplyScalar keeps the level for integer constants and consumes one otherwise.
func (b *ckksBackend) multiplyScalar(ct *rlwe.Ciphertext, c complex128, opOut *rlwe.Ciphertext) error {
	if i, ok := integer(c); ok {
		return b.eval.MulScalar(ct, i, opOut)
	}
	return b.eval.MultiplyScalar(ct, c, opOut)
}
