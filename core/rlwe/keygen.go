package rlwe

import (
	"fmt"

	"github.com/tuneinsight/hetile/ring"
	"github.com/tuneinsight/hetile/utils/sampling"
)

// samplers groups the samplers of the secret, error and uniform distributions.
type samplers struct {
	prng    sampling.PRNG
	xs      ring.Sampler
	xe      ring.Sampler
	uniform ring.Sampler
}

func newSamplers(ctx *Context) *samplers {

	prng, err := sampling.NewPRNG()
	if err != nil {
		// Sanity check, this error should not happen.
		panic(err)
	}

	s := &samplers{prng: prng}

	// Sanity check, these errors should not happen as the distributions are checked by the context.
	if s.xs, err = ring.NewSampler(prng, ctx.ring, ctx.xs); err != nil {
		panic(fmt.Errorf("newSamplers: %w", err))
	}
	if s.xe, err = ring.NewSampler(prng, ctx.ring, ctx.xe); err != nil {
		panic(fmt.Errorf("newSamplers: %w", err))
	}
	if s.uniform, err = ring.NewSampler(prng, ctx.ring, ring.Uniform{}); err != nil {
		panic(fmt.Errorf("newSamplers: %w", err))
	}

	return s
}

// noise returns t*e over set, with e sampled from the error distribution.
func (s *samplers) noise(ctx *Context, set ring.IndexSet) (e *ring.DoubleCRT) {
	e = s.xe.ReadNew(set)
	if t := ctx.t; t > 1 {
		e.MulScalar(e, t)
	}
	return
}

// KeyGenerator is a structure that stores the elements required to create new keys,
// as well as a memory buffer for intermediate values.
type KeyGenerator struct {
	ctx *Context
	*samplers
}

// NewKeyGenerator creates a new KeyGenerator, from which the secret and public keys, as well as key-switching matrices can be generated.
func NewKeyGenerator(ctx *Context) *KeyGenerator {
	return &KeyGenerator{ctx: ctx, samplers: newSamplers(ctx)}
}

// GenSecretKeyNew generates a new SecretKey with KeyID 0.
func (kgen KeyGenerator) GenSecretKeyNew() (sk *SecretKey) {
	return kgen.GenSecretKeyWithIDNew(0)
}

// GenSecretKeyWithIDNew generates a new SecretKey with the given KeyID.
func (kgen KeyGenerator) GenSecretKeyWithIDNew(keyID int) (sk *SecretKey) {
	return &SecretKey{KeyID: keyID, Value: kgen.xs.ReadNew(kgen.ctx.FullPrimes())}
}

// GenPublicKeyNew generates a new public key from the provided SecretKey.
func (kgen KeyGenerator) GenPublicKeyNew(sk *SecretKey) (pk *PublicKey) {

	set := kgen.ctx.CtxtPrimes()

	a := kgen.uniform.ReadNew(set)
	b := kgen.noise(kgen.ctx, set)

	s, err := sk.Value.View(set)
	if err != nil {
		// Sanity check, this error should not happen.
		panic(err)
	}

	mustSubProduct(b, a, s)

	return &PublicKey{KeyID: sk.KeyID, Value: [2]*ring.DoubleCRT{b, a}}
}

// GenKeyPairNew generates a new SecretKey and a corresponding public key.
func (kgen KeyGenerator) GenKeyPairNew() (sk *SecretKey, pk *PublicKey) {
	sk = kgen.GenSecretKeyNew()
	return sk, kgen.GenPublicKeyNew(sk)
}

// GenKeySwitchMatrixNew generates the matrix switching a part under the handle from,
// which must be a handle of skFrom, to the secret skTo.
func (kgen KeyGenerator) GenKeySwitchMatrixNew(from SKHandle, skFrom, skTo *SecretKey) (ksm *KeySwitchMatrix, err error) {

	if from.IsOne() {
		return nil, fmt.Errorf("cannot GenKeySwitchMatrixNew: %w: the constant handle needs no key switching", ErrKeyMaterial)
	}

	if from.Galois&1 == 0 || from.Galois >= uint64(kgen.ctx.m) {
		return nil, fmt.Errorf("cannot GenKeySwitchMatrixNew: %w: invalid Galois element %d", ErrKeyMaterial, from.Galois)
	}

	ctx := kgen.ctx
	full := ctx.FullPrimes()

	var sFrom *ring.DoubleCRT
	if sFrom, err = skFrom.handleValue(from, full); err != nil {
		return nil, fmt.Errorf("cannot GenKeySwitchMatrixNew: %w", err)
	}

	// P * s_from
	sFrom.MulScalarBigint(sFrom, ctx.ModulusBigInt(ctx.special))

	ksm = &KeySwitchMatrix{From: from, ToKeyID: skTo.KeyID, Value: make([][2]*ring.DoubleCRT, len(ctx.digits))}

	for j, digit := range ctx.digits {

		a := kgen.uniform.ReadNew(full)
		b := kgen.noise(ctx, full)

		mustSubProduct(b, a, skTo.Value)

		var gadget *ring.DoubleCRT
		if gadget, err = sFrom.View(digit); err != nil {
			return nil, fmt.Errorf("cannot GenKeySwitchMatrixNew: %w", err)
		}

		if err = b.AddResidues(gadget); err != nil {
			return nil, fmt.Errorf("cannot GenKeySwitchMatrixNew: %w", err)
		}

		ksm.Value[j] = [2]*ring.DoubleCRT{b, a}
	}

	return
}

func (kgen KeyGenerator) mustGenKeySwitchMatrixNew(from SKHandle, skFrom, skTo *SecretKey) *KeySwitchMatrix {
	ksm, err := kgen.GenKeySwitchMatrixNew(from, skFrom, skTo)
	if err != nil {
		// Sanity check, this error should not happen.
		panic(err)
	}
	return ksm
}

// GenRelinearizationKeyNew generates the matrix switching s^2 to s.
func (kgen KeyGenerator) GenRelinearizationKeyNew(sk *SecretKey) *KeySwitchMatrix {
	return kgen.mustGenKeySwitchMatrixNew(SKHandle{Power: 2, Galois: 1, KeyID: sk.KeyID}, sk, sk)
}

// GenRelinearizationKeysNew generates the matrices switching s^2, ..., s^maxPower to s.
func (kgen KeyGenerator) GenRelinearizationKeysNew(sk *SecretKey, maxPower int) (ksm []*KeySwitchMatrix) {
	for p := 2; p <= maxPower; p++ {
		ksm = append(ksm, kgen.mustGenKeySwitchMatrixNew(SKHandle{Power: p, Galois: 1, KeyID: sk.KeyID}, sk, sk))
	}
	return
}

// GenGaloisKeyNew generates the matrix switching s(X^galEl) to s.
func (kgen KeyGenerator) GenGaloisKeyNew(galEl uint64, sk *SecretKey) (ksm *KeySwitchMatrix, err error) {
	return kgen.GenKeySwitchMatrixNew(SKHandle{Power: 1, Galois: galEl, KeyID: sk.KeyID}, sk, sk)
}

// GenGaloisKeysNew generates the matrices switching s(X^galEl) to s for each of the Galois elements.
func (kgen KeyGenerator) GenGaloisKeysNew(galEls []uint64, sk *SecretKey) (ksm []*KeySwitchMatrix, err error) {
	ksm = make([]*KeySwitchMatrix, len(galEls))
	for i, galEl := range galEls {
		if ksm[i], err = kgen.GenGaloisKeyNew(galEl, sk); err != nil {
			return nil, err
		}
	}
	return
}

// GenSwitchingKeyNew generates the matrix switching skFrom to skTo.
func (kgen KeyGenerator) GenSwitchingKeyNew(skFrom, skTo *SecretKey) *KeySwitchMatrix {
	return kgen.mustGenKeySwitchMatrixNew(BaseHandle(skFrom.KeyID), skFrom, skTo)
}

// GenEvaluationKeySetNew generates an EvaluationKeySet with the relinearization
// key of sk and the automorphism keys for the given Galois elements.
func (kgen KeyGenerator) GenEvaluationKeySetNew(sk *SecretKey, galEls ...uint64) (evk *EvaluationKeySet, err error) {
	evk = NewEvaluationKeySet(kgen.GenRelinearizationKeyNew(sk))
	var gks []*KeySwitchMatrix
	if gks, err = kgen.GenGaloisKeysNew(galEls, sk); err != nil {
		return nil, fmt.Errorf("cannot GenEvaluationKeySetNew: %w", err)
	}
	for _, gk := range gks {
		evk.Add(gk)
	}
	return
}

// mustSubProduct sets b to b - a*s.
func mustSubProduct(b, a, s *ring.DoubleCRT) {
	as := ring.NewDoubleCRT(a.Ring(), a.IndexSet())
	if err := as.Mul(a, s, false); err != nil {
		// Sanity check, this error should not happen.
		panic(err)
	}
	if err := b.Sub(b, as, false); err != nil {
		// Sanity check, this error should not happen.
		panic(err)
	}
}
