package ckks

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/ring"
	"github.com/tuneinsight/hetile/utils"
)

// GaloisGen is an integer of order N/2 modulo M that spans Z_M^* together with -1.
// The rotation of the slots by k positions is the automorphism X -> X^(GaloisGen^k).
const GaloisGen uint64 = 5

// EncryptedArray encodes vectors of complex numbers on CKKS plaintexts.
//
// A plaintext m has N/2 complex slots, slot j being m(zeta^(5^j))/Scale for
// zeta = e^(2*pi*i/M). The encoding evaluates the inverse of this map with
// the special FFT over the group generated by 5 and rounds the coefficients
// of the result multiplied by the scale.
type EncryptedArray struct {
	ctx      *rlwe.Context
	m        int
	rotGroup []int
	roots    []complex128
}

// NewEncryptedArray returns the EncryptedArray of a CKKS context.
func NewEncryptedArray(ctx *rlwe.Context) (ea *EncryptedArray, err error) {

	if ctx.Scheme() != rlwe.CKKS {
		return nil, fmt.Errorf("cannot NewEncryptedArray: %w: scheme is %v", rlwe.ErrConfiguration, ctx.Scheme())
	}

	m := ctx.M()

	rotGroup := make([]int, m>>2)
	fivePows := 1
	for i := range rotGroup {
		rotGroup[i] = fivePows
		fivePows *= int(GaloisGen)
		fivePows &= (m - 1)
	}

	return &EncryptedArray{
		ctx:      ctx,
		m:        m,
		rotGroup: rotGroup,
		roots:    GetRootsComplex128(m),
	}, nil
}

// Slots returns the number of complex slots, N/2.
func (ea EncryptedArray) Slots() int {
	return ea.m >> 2
}

func (ea EncryptedArray) complexSlots(values interface{}) (slots []complex128, err error) {

	slots = make([]complex128, ea.Slots())

	var n int

	switch values := values.(type) {
	case []complex128:
		if n = len(values); n <= len(slots) {
			copy(slots, values)
		}
	case []float64:
		if n = len(values); n <= len(slots) {
			for i, v := range values {
				slots[i] = complex(v, 0)
			}
		}
	default:
		return nil, fmt.Errorf("values must be []complex128 or []float64 but is %T", values)
	}

	if n > len(slots) {
		return nil, fmt.Errorf("%w: %d values for %d slots", rlwe.ErrSlotOverflow, n, len(slots))
	}

	for i, v := range slots {
		if math.IsNaN(real(v)) || math.IsNaN(imag(v)) || math.IsInf(real(v), 0) || math.IsInf(imag(v), 0) {
			return nil, fmt.Errorf("value #%d is not finite: %v", i, v)
		}
	}

	return
}

// Encode encodes a []complex128 or []float64 on pt, at the level and the scale
// of pt. A pt without value is encoded at the maximum level, and a pt without
// scale at the default scale. Missing values are zero.
func (ea EncryptedArray) Encode(values interface{}, pt *rlwe.Plaintext) (err error) {

	slots, err := ea.complexSlots(values)
	if err != nil {
		return fmt.Errorf("cannot Encode: %w", err)
	}

	level := ea.ctx.MaxLevel()
	if pt.Value != nil {
		level = pt.Level()
	}

	scale := pt.Scale
	if scale == 0 {
		scale = ea.ctx.DefaultScale()
	}

	ea.ifft(slots)

	n := len(slots)
	coeffs := make([]*big.Int, 2*n)
	max := new(big.Int)
	for i, v := range slots {
		coeffs[i] = toFixedPoint(real(v), scale)
		coeffs[i+n] = toFixedPoint(imag(v), scale)
		if coeffs[i].CmpAbs(max) > 0 {
			max.Abs(coeffs[i])
		}
		if coeffs[i+n].CmpAbs(max) > 0 {
			max.Abs(coeffs[i+n])
		}
	}

	if max.Cmp(ea.ctx.ModulusBigInt(ea.ctx.LevelSet(level))) >= 0 {
		return fmt.Errorf("cannot Encode: %w: coefficients do not fit the modulus at level %d", rlwe.ErrCapacityExhausted, level)
	}

	*pt = rlwe.Plaintext{
		Value:    ring.NewDoubleCRTFromBigInt(ea.ctx.Ring(), ea.ctx.LevelSet(level), coeffs),
		Scale:    scale,
		LogBound: log2Abs(max),
	}

	return
}

// EncodeNew encodes the values on a new plaintext at the given level and scale.
func (ea EncryptedArray) EncodeNew(values interface{}, level int, scale float64) (pt *rlwe.Plaintext, err error) {
	if level < 0 || level > ea.ctx.MaxLevel() {
		return nil, fmt.Errorf("cannot EncodeNew: %w: level=%d not in [0, %d]", rlwe.ErrLevelMismatch, level, ea.ctx.MaxLevel())
	}
	pt = rlwe.NewPlaintext(ea.ctx, level)
	pt.Scale = scale
	return pt, ea.Encode(values, pt)
}

// Decode returns the slots of pt, scaled down by the scale of pt.
func (ea EncryptedArray) Decode(pt *rlwe.Plaintext) (values []complex128, err error) {

	if pt == nil || pt.Value == nil {
		return nil, fmt.Errorf("cannot Decode: plaintext is empty")
	}

	if pt.Scale <= 0 {
		return nil, fmt.Errorf("cannot Decode: invalid scale %v", pt.Scale)
	}

	coeffs := pt.Value.BigCoeffs(true)

	n := ea.Slots()
	values = make([]complex128, n)
	for i := range values {
		values[i] = complex(fromFixedPoint(coeffs[i], pt.Scale), fromFixedPoint(coeffs[i+n], pt.Scale))
	}

	ea.fft(values)

	return
}

// DecodeReal returns the real parts of the slots of pt.
func (ea EncryptedArray) DecodeReal(pt *rlwe.Plaintext) (values []float64, err error) {

	slots, err := ea.Decode(pt)
	if err != nil {
		return
	}

	values = make([]float64, len(slots))
	for i, v := range slots {
		values[i] = real(v)
	}

	return
}

// ifft evaluates in place the inverse of the decoding map on the slots.
func (ea EncryptedArray) ifft(values []complex128) {

	N := len(values)
	logN := bits.Len(uint(N)) - 1
	logM := bits.Len(uint(ea.m)) - 1

	for loglen := logN; loglen > 0; loglen-- {
		len := 1 << loglen
		lenh := len >> 1
		lenq := len << 2
		logGap := logM - 2 - loglen
		mask := lenq - 1
		for i := 0; i < N; i += len {
			for j, k := 0, i; j < lenh; j, k = j+1, k+1 {
				u, v := values[k], values[k+lenh]
				values[k], values[k+lenh] = u+v, (u-v)*ea.roots[(lenq-(ea.rotGroup[j]&mask))<<logGap]
			}
		}
	}

	scale := complex(float64(N), 0)
	for i := range values {
		values[i] /= scale
	}

	utils.BitReverseInPlaceSlice(values, N)
}

// fft evaluates in place the decoding map: values[j] = sum_i values[i] * zeta^(i*5^j).
func (ea EncryptedArray) fft(values []complex128) {

	N := len(values)
	logN := bits.Len(uint(N)) - 1
	logM := bits.Len(uint(ea.m)) - 1

	utils.BitReverseInPlaceSlice(values, N)

	for loglen := 1; loglen <= logN; loglen++ {
		len := 1 << loglen
		lenh := len >> 1
		lenq := len << 2
		logGap := logM - 2 - loglen
		mask := lenq - 1
		for i := 0; i < N; i += len {
			for j, k := 0, i; j < lenh; j, k = j+1, k+1 {
				values[k+lenh] *= ea.roots[(ea.rotGroup[j]&mask)<<logGap]
				values[k], values[k+lenh] = values[k]+values[k+lenh], values[k]-values[k+lenh]
			}
		}
	}
}

// constantPlaintext returns the plaintext whose slots are all equal to c at the given scale,
// c*scale = a + b*X^(N/2) since zeta^(5^j * N/2) = i for every j.
func (ea EncryptedArray) constantPlaintext(c complex128, level int, scale float64) *rlwe.Plaintext {

	N := ea.ctx.N()
	coeffs := make([]*big.Int, N)
	coeffs[0] = toFixedPoint(real(c), scale)
	coeffs[N>>1] = toFixedPoint(imag(c), scale)

	max := new(big.Int).Abs(coeffs[0])
	if coeffs[N>>1].CmpAbs(max) > 0 {
		max.Abs(coeffs[N>>1])
	}

	return &rlwe.Plaintext{
		Value:    ring.NewDoubleCRTFromBigInt(ea.ctx.Ring(), ea.ctx.LevelSet(level), coeffs),
		Scale:    scale,
		LogBound: log2Abs(max),
	}
}

func log2Abs(c *big.Int) float64 {
	if c.Sign() == 0 {
		return math.Inf(-1)
	}
	if c.IsInt64() {
		return math.Log2(math.Abs(float64(c.Int64())))
	}
	f, _ := new(big.Float).SetInt(c).Float64()
	return math.Log2(math.Abs(f))
}
