package hebase

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/montanaflynn/stats"

	"github.com/tuneinsight/hetile/core/rlwe"
)

// Encoder encodes values on PTiles, encrypts them into CTiles and reverses both steps.
//
// CKKS values are encoded at the scale of the encoder, the default scale of
// the context unless SetScale was called. BGV values must be integers.
type Encoder struct {
	he    *HeContext
	scale float64
}

// NewEncoder returns an Encoder for the context.
func NewEncoder(he *HeContext) *Encoder {
	return &Encoder{he: he}
}

// HeContext returns the context of the encoder.
func (e *Encoder) HeContext() *HeContext {
	return e.he
}

// Scale returns the scale of the encodings of the encoder.
func (e *Encoder) Scale() float64 {
	if e.scale == 0 {
		return e.he.DefaultScale()
	}
	return e.scale
}

// SetScale sets the scale of the encodings of the encoder; 0 restores the
// default scale of the context.
func (e *Encoder) SetScale(scale float64) error {
	if scale < 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return fmt.Errorf("cannot SetScale: invalid scale %v", scale)
	}
	e.scale = scale
	return nil
}

// Encode encodes the values on a PTile at the top level.
// It accepts []float64, []complex128 (CKKS), []int, []int64 and []uint64 (BGV).
func (e *Encoder) Encode(values interface{}) (*PTile, error) {
	return e.EncodeAt(values, e.he.TopChainIndex())
}

// EncodeAt encodes the values on a PTile at the given level.
func (e *Encoder) EncodeAt(values interface{}, level int) (p *PTile, err error) {
	return e.encode(values, level, e.Scale())
}

// EncodeFor encodes the values at the level and with the scale of c, so that
// the result can be added to c.
func (e *Encoder) EncodeFor(values interface{}, c *CTile) (p *PTile, err error) {
	if err = c.check(); err != nil {
		return nil, fmt.Errorf("cannot EncodeFor: %w", err)
	}
	return e.encode(values, c.ChainIndex(), c.Scale())
}

func (e *Encoder) encode(values interface{}, level int, scale float64) (p *PTile, err error) {
	var pt *rlwe.Plaintext
	if pt, err = e.he.be.encode(values, level, scale); err != nil {
		return nil, fmt.Errorf("cannot Encode: %w", err)
	}
	return &PTile{he: e.he, pt: pt}, nil
}

// Encrypt encrypts the PTile with the public key of the context.
func (e *Encoder) Encrypt(p *PTile) (c *CTile, err error) {
	if p.pt == nil {
		return nil, fmt.Errorf("cannot Encrypt: %w", ErrEmptyTile)
	}
	var ct *rlwe.Ciphertext
	if ct, err = e.he.enc.EncryptNew(p.pt); err != nil {
		return nil, fmt.Errorf("cannot Encrypt: %w", err)
	}
	return &CTile{he: e.he, ct: ct}, nil
}

// EncodeEncrypt encodes the values at the top level and encrypts them.
func (e *Encoder) EncodeEncrypt(values interface{}) (c *CTile, err error) {
	return e.EncodeEncryptAt(values, e.he.TopChainIndex())
}

// EncodeEncryptAt encodes the values at the given level and encrypts them.
func (e *Encoder) EncodeEncryptAt(values interface{}, level int) (c *CTile, err error) {
	var p *PTile
	if p, err = e.EncodeAt(values, level); err != nil {
		return
	}
	return e.Encrypt(p)
}

// Decrypt decrypts the CTile. The context must hold the secret key.
func (e *Encoder) Decrypt(c *CTile) (p *PTile, err error) {

	if e.he.dec == nil {
		return nil, fmt.Errorf("cannot Decrypt: %w: context has no secret key", rlwe.ErrKeyMaterial)
	}

	if err = c.check(); err != nil {
		return nil, fmt.Errorf("cannot Decrypt: %w", err)
	}

	var pt *rlwe.Plaintext
	if pt, err = e.he.dec.DecryptNew(c.ct); err != nil {
		return
	}

	return &PTile{he: e.he, pt: pt}, nil
}

// DecodeComplex returns the slots of the PTile.
func (e *Encoder) DecodeComplex(p *PTile) (values []complex128, err error) {
	if p.pt == nil {
		return nil, fmt.Errorf("cannot Decode: %w", ErrEmptyTile)
	}
	return e.he.be.decode(p.pt)
}

// DecodeDouble returns the real part of the slots of the PTile.
func (e *Encoder) DecodeDouble(p *PTile) (values []float64, err error) {
	var v []complex128
	if v, err = e.DecodeComplex(p); err != nil {
		return
	}
	values = make([]float64, len(v))
	for i := range v {
		values[i] = real(v[i])
	}
	return
}

// DecodeInt returns the real part of the slots of the PTile rounded to the
// nearest integers. BGV slots are centered modulo the plaintext modulus.
func (e *Encoder) DecodeInt(p *PTile) (values []int64, err error) {
	var v []float64
	if v, err = e.DecodeDouble(p); err != nil {
		return
	}
	values = make([]int64, len(v))
	for i := range v {
		values[i] = int64(math.Round(v[i]))
	}
	return
}

// DecryptDecodeComplex decrypts and decodes the CTile.
func (e *Encoder) DecryptDecodeComplex(c *CTile) (values []complex128, err error) {
	var p *PTile
	if p, err = e.Decrypt(c); err != nil {
		return
	}
	return e.DecodeComplex(p)
}

// DecryptDecodeDouble decrypts and decodes the real part of the CTile.
func (e *Encoder) DecryptDecodeDouble(c *CTile) (values []float64, err error) {
	var p *PTile
	if p, err = e.Decrypt(c); err != nil {
		return
	}
	return e.DecodeDouble(p)
}

// DecryptDecodeInt decrypts and decodes the CTile to integers.
func (e *Encoder) DecryptDecodeInt(c *CTile) (values []int64, err error) {
	var p *PTile
	if p, err = e.Decrypt(c); err != nil {
		return
	}
	return e.DecodeInt(p)
}

// ErrorStats holds statistics of the absolute errors of decrypted slots.
type ErrorStats struct {
	Max    float64
	Mean   float64
	Median float64
	StdDev float64
}

func (s ErrorStats) String() string {
	return fmt.Sprintf("|err|: max=%g mean=%g median=%g stddev=%g", s.Max, s.Mean, s.Median, s.StdDev)
}

// ErrorStats decrypts c and returns the statistics of the absolute errors of
// its first len(want) slots.
func (e *Encoder) ErrorStats(c *CTile, want []complex128) (es ErrorStats, err error) {

	var have []complex128
	if have, err = e.DecryptDecodeComplex(c); err != nil {
		return
	}

	if len(want) == 0 || len(want) > len(have) {
		return es, fmt.Errorf("cannot ErrorStats: %d reference values for %d slots", len(want), len(have))
	}

	errs := make(stats.Float64Data, len(want))
	for i := range want {
		errs[i] = cmplx.Abs(have[i] - want[i])
	}

	if es.Max, err = errs.Max(); err != nil {
		return
	}
	if es.Mean, err = errs.Mean(); err != nil {
		return
	}
	if es.Median, err = errs.Median(); err != nil {
		return
	}
	es.StdDev, err = errs.StandardDeviation()

	return
}

// AssertEquals decrypts c and returns an error listing the first slot whose
// distance to want exceeds tolerance.
func (e *Encoder) AssertEquals(c *CTile, title string, want []float64, tolerance float64) (err error) {

	var have []float64
	if have, err = e.DecryptDecodeDouble(c); err != nil {
		return fmt.Errorf("%s: %w", title, err)
	}

	if len(want) > len(have) {
		return fmt.Errorf("%s: %d expected values for %d slots", title, len(want), len(have))
	}

	for i := range want {
		if d := math.Abs(have[i] - want[i]); d > tolerance || math.IsNaN(d) {
			return fmt.Errorf("%s: slot %d is %v instead of %v (|diff|=%g > %g)", title, i, have[i], want[i], d, tolerance)
		}
	}

	return
}
