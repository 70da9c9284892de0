package hebase

import (
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/schemes/bgv"
	"github.com/tuneinsight/hetile/schemes/ckks"
	"github.com/tuneinsight/hetile/utils"
)

// LibraryName is the name of the library in the header codes of saved contexts.
const LibraryName = "hetile"

// HeContext bundles a context, its keys and the evaluator of its scheme.
//
// It either holds a secret key, allowing every operation including
// decryption, or only the public and evaluation keys. An HeContext is
// read-only once created and can be shared by concurrent goroutines.
type HeContext struct {
	ctx *rlwe.Context

	sk  *rlwe.SecretKey
	pk  *rlwe.PublicKey
	evk *rlwe.EvaluationKeySet

	enc *rlwe.Encryptor
	dec *rlwe.Decryptor

	be backend

	defaultScale float64
}

// DefaultRotations returns the rotations by the powers of two smaller than slots.
func DefaultRotations(slots int) (rotations []int) {
	for k := 1; k < slots; k <<= 1 {
		rotations = append(rotations, k)
	}
	return
}

// NewHeContext creates an HeContext with a fresh key pair, the relinearization
// key, the conjugation key and the Galois keys of the rotations by powers of
// two and of the given rotations.
func NewHeContext(ctx *rlwe.Context, rotations ...int) (he *HeContext, err error) {

	var be backend
	if be, err = newBackend(ctx, nil); err != nil {
		return nil, fmt.Errorf("cannot NewHeContext: %w", err)
	}

	set := map[int]bool{}
	for _, k := range append(DefaultRotations(be.slots()), rotations...) {
		set[k] = true
	}

	galEls := be.galoisElementsForRotation(utils.GetSortedKeys(set)...)
	galEls = append(galEls, ctx.Ring().GaloisElementForConjugate())

	kgen := rlwe.NewKeyGenerator(ctx)
	sk, pk := kgen.GenKeyPairNew()

	var evk *rlwe.EvaluationKeySet
	if evk, err = kgen.GenEvaluationKeySetNew(sk, galEls...); err != nil {
		return nil, fmt.Errorf("cannot NewHeContext: %w", err)
	}

	return NewHeContextWithKeys(ctx, pk, evk, sk)
}

// NewHeContextWithKeys creates an HeContext from existing keys. sk can be nil,
// in which case the HeContext cannot decrypt.
func NewHeContextWithKeys(ctx *rlwe.Context, pk *rlwe.PublicKey, evk *rlwe.EvaluationKeySet, sk *rlwe.SecretKey) (he *HeContext, err error) {

	if pk == nil {
		return nil, fmt.Errorf("cannot NewHeContextWithKeys: %w: missing public key", rlwe.ErrKeyMaterial)
	}

	if evk == nil {
		evk = rlwe.NewEvaluationKeySet()
	}

	he = &HeContext{
		ctx: ctx,
		sk:  sk,
		pk:  pk,
		evk: evk,
		enc: rlwe.NewEncryptor(ctx, pk),
	}

	if sk != nil {
		he.dec = rlwe.NewDecryptor(ctx, sk)
	}

	if he.be, err = newBackend(ctx, evk); err != nil {
		return nil, fmt.Errorf("cannot NewHeContextWithKeys: %w", err)
	}

	he.defaultScale = 1
	if ctx.Scheme() == rlwe.CKKS {
		he.defaultScale = ctx.DefaultScale()
	}

	return
}

// PublicView returns a shallow copy of the receiver without the secret key.
func (he *HeContext) PublicView() *HeContext {
	pub := *he
	pub.sk, pub.dec = nil, nil
	return &pub
}

// ShallowCopy returns a copy of the receiver sharing its keys with a new
// encryptor, so that the copy and the receiver can encrypt concurrently.
func (he *HeContext) ShallowCopy() *HeContext {
	cp := *he
	cp.enc = rlwe.NewEncryptor(he.ctx, he.pk)
	return &cp
}

// Context returns the underlying rlwe.Context.
func (he *HeContext) Context() *rlwe.Context {
	return he.ctx
}

// Scheme returns the scheme of the context.
func (he *HeContext) Scheme() rlwe.Scheme {
	return he.ctx.Scheme()
}

// SchemeName returns the name of the scheme.
func (he *HeContext) SchemeName() string {
	return he.ctx.Scheme().String()
}

// HeaderCode returns the string identifying the kind of the context in saved files.
func (he *HeContext) HeaderCode() string {
	return headerCode(he.ctx.Scheme())
}

// Traits returns the properties of the scheme.
func (he *HeContext) Traits() Traits {
	return he.be.traits()
}

// SlotCount returns the number of slots of the tiles of the context.
func (he *HeContext) SlotCount() int {
	return he.be.slots()
}

// TopChainIndex returns the level of fresh ciphertexts.
func (he *HeContext) TopChainIndex() int {
	return he.ctx.MaxLevel()
}

// SecurityLevel returns the estimated security of the context in bits.
func (he *HeContext) SecurityLevel() int {
	return int(math.Floor(he.ctx.SecurityLevel()))
}

// HasSecretKey returns true if the context can decrypt.
func (he *HeContext) HasSecretKey() bool {
	return he.sk != nil
}

// DefaultScale returns the scale of the encodings of the context, 1 for BGV.
func (he *HeContext) DefaultScale() float64 {
	return he.defaultScale
}

// SetDefaultScale sets the scale of the encodings of a CKKS context.
func (he *HeContext) SetDefaultScale(scale float64) error {
	if he.Scheme() != rlwe.CKKS {
		return fmt.Errorf("cannot SetDefaultScale: %v has no scale", he.Scheme())
	}
	if scale <= 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return fmt.Errorf("cannot SetDefaultScale: invalid scale %v", scale)
	}
	he.defaultScale = scale
	return nil
}

// ModulusChain returns the bit size of each chain prime.
func (he *HeContext) ModulusChain() (logQ []int) {
	r := he.ctx.Ring()
	for _, i := range he.ctx.CtxtPrimes().Slice() {
		logQ = append(logQ, bits.Len64(r.Modulus(i).Q))
	}
	return
}

// PublicKey returns the public key of the context.
func (he *HeContext) PublicKey() *rlwe.PublicKey {
	return he.pk
}

// EvaluationKeys returns the evaluation keys of the context.
func (he *HeContext) EvaluationKeys() *rlwe.EvaluationKeySet {
	return he.evk
}

// SecretKey returns the secret key of the context, or an error wrapping
// rlwe.ErrKeyMaterial if it has none.
func (he *HeContext) SecretKey() (*rlwe.SecretKey, error) {
	if he.sk == nil {
		return nil, fmt.Errorf("%w: context has no secret key", rlwe.ErrKeyMaterial)
	}
	return he.sk, nil
}

// BGV returns the BGV evaluator of the context, or nil for other schemes.
func (he *HeContext) BGV() *bgv.Evaluator {
	if b, ok := he.be.(*bgvBackend); ok {
		return b.eval
	}
	return nil
}

// CKKS returns the CKKS evaluator of the context, or nil for other schemes.
func (he *HeContext) CKKS() *ckks.Evaluator {
	if b, ok := he.be.(*ckksBackend); ok {
		return b.eval
	}
	return nil
}

// hasRotationKeys returns true if the Galois keys of the rotation by k are available.
func (he *HeContext) hasRotationKeys(k int) bool {
	for _, galEl := range he.be.galoisElementsForRotation(k) {
		if !he.evk.Has(rlwe.SKHandle{Power: 1, Galois: galEl, KeyID: he.pk.KeyID}, he.pk.KeyID) {
			return false
		}
	}
	return true
}

// IsSecure returns true if the context offers the security of DefaultConfigRequirement.
func (he *HeContext) IsSecure() bool {
	return he.SecurityLevel() >= DefaultConfigRequirement().SecurityLevel
}

// PrintSignature writes a summary of the scheme and parameters of the context
// on w, followed by a warning if the context is not secure.
func (he *HeContext) PrintSignature(w io.Writer) (err error) {
	if _, err = fmt.Fprintf(w, "%s %s: M=%d slots=%d chain=%v special=%d security=%d secret-key=%t\n",
		LibraryName, he.SchemeName(),
		he.ctx.M(), he.SlotCount(), he.ModulusChain(), he.ctx.SpecialPrimes().Len(),
		he.SecurityLevel(), he.HasSecretKey()); err != nil {
		return
	}
	if !he.IsSecure() {
		_, err = fmt.Fprintf(w, "WARNING: %d bits of security, below %d: these parameters are for demonstration only\n",
			he.SecurityLevel(), DefaultConfigRequirement().SecurityLevel)
	}
	return
}
