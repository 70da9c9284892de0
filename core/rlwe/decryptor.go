package rlwe

import (
	"fmt"
	"math/big"

	"github.com/tuneinsight/hetile/ring"
	"github.com/tuneinsight/hetile/utils/bignum"
)

// Decryptor is a structure used to decrypt ciphertexts. It stores the secret keys.
type Decryptor struct {
	ctx  *Context
	keys map[int]*SecretKey
}

// NewDecryptor instantiates a new Decryptor holding the given secret keys.
func NewDecryptor(ctx *Context, sk ...*SecretKey) *Decryptor {
	dec := &Decryptor{ctx: ctx, keys: map[int]*SecretKey{}}
	for _, k := range sk {
		dec.AddKey(k)
	}
	return dec
}

// AddKey adds a secret key to the decryptor, replacing any key with the same KeyID.
func (d Decryptor) AddKey(sk *SecretKey) {
	if !sk.Value.IndexSet().Equal(d.ctx.FullPrimes()) {
		// Sanity check
		panic(fmt.Errorf("secret key is over %v but the context primes are %v", sk.Value.IndexSet(), d.ctx.FullPrimes()))
	}
	d.keys[sk.KeyID] = sk
}

// evaluate returns the sum over the parts of ct of Value * s_Handle.
func (d Decryptor) evaluate(ct *Ciphertext) (acc *ring.DoubleCRT, err error) {

	if err = ct.check(); err != nil {
		return
	}

	set := ct.IndexSet()
	acc = ring.NewDoubleCRT(d.ctx.ring, set)

	for _, p := range ct.Parts {

		if p.Handle.IsOne() {
			if err = acc.Add(acc, p.Value, false); err != nil {
				return
			}
			continue
		}

		sk, ok := d.keys[p.Handle.KeyID]
		if !ok {
			return nil, fmt.Errorf("%w: no secret key with KeyID %d", ErrKeyMaterial, p.Handle.KeyID)
		}

		var s *ring.DoubleCRT
		if s, err = sk.handleValue(p.Handle, set); err != nil {
			return
		}

		if err = acc.MulThenAdd(p.Value, s); err != nil {
			return
		}
	}

	return
}

// DecryptNew decrypts the Ciphertext and returns the result in a new Plaintext.
func (d Decryptor) DecryptNew(ct *Ciphertext) (pt *Plaintext, err error) {
	pt = &Plaintext{}
	return pt, d.Decrypt(ct, pt)
}

// Decrypt decrypts the Ciphertext and writes the result in pt.
//
// For BGV, the plaintext holds the message m, with coefficients in [-t/2, t/2).
// For CKKS, it holds the centered decryption Scale * m + e.
func (d Decryptor) Decrypt(ct *Ciphertext, pt *Plaintext) (err error) {

	var acc *ring.DoubleCRT
	if acc, err = d.evaluate(ct); err != nil {
		return fmt.Errorf("cannot Decrypt: %w", err)
	}

	coeffs := acc.BigCoeffs(true)

	if t := ct.PtxtSpace; t > 1 {

		if ct.Factor == 0 || ct.Factor%t == 0 {
			return fmt.Errorf("cannot Decrypt: invalid factor %d modulo %d", ct.Factor, t)
		}

		T := new(big.Int).SetUint64(t)
		fInv := new(big.Int).ModInverse(new(big.Int).SetUint64(ct.Factor%t), T)
		if fInv == nil {
			return fmt.Errorf("cannot Decrypt: factor %d is not invertible modulo %d", ct.Factor, t)
		}

		for _, c := range coeffs {
			c.Mul(c, fInv)
			c.Mod(c, T)
			bignum.Center(c, T)
		}

		acc.SetBigInt(coeffs)
	}

	*pt = Plaintext{Value: acc, Scale: ct.Scale, LogBound: logInfNorm(coeffs)}

	return
}

// Noise returns log2 of the infinity norm of the decryption of ct before the
// reduction of the message, the quantity estimated by the ciphertext NoiseBound.
func (d Decryptor) Noise(ct *Ciphertext) (log2 float64, err error) {
	var acc *ring.DoubleCRT
	if acc, err = d.evaluate(ct); err != nil {
		return 0, fmt.Errorf("cannot Noise: %w", err)
	}
	return acc.InfNormLog2(), nil
}

func logInfNorm(coeffs []*big.Int) float64 {
	max := new(big.Int)
	for _, c := range coeffs {
		if c.CmpAbs(max) > 0 {
			max.Abs(c)
		}
	}
	return log2BigAbs(max)
}
