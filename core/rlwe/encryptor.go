package rlwe

import (
	"fmt"

	"github.com/tuneinsight/hetile/ring"
)

// EncryptionKey is an interface for encryption keys. Valid encryption
// keys are the SecretKey and PublicKey types.
type EncryptionKey interface {
	isEncryptionKey()
}

func (sk *SecretKey) isEncryptionKey() {}
func (pk *PublicKey) isEncryptionKey() {}

// Encryptor encrypts plaintexts into two-part ciphertexts under a secret or public key.
type Encryptor struct {
	ctx *Context
	*samplers
	encKey EncryptionKey
}

// NewEncryptor creates a new Encryptor from either a public key or a private key.
func NewEncryptor(ctx *Context, key EncryptionKey) *Encryptor {
	switch key := key.(type) {
	case *PublicKey:
		if !key.Value[0].IndexSet().Equal(ctx.CtxtPrimes()) {
			// Sanity check
			panic(fmt.Errorf("public key is over %v but the chain primes are %v", key.Value[0].IndexSet(), ctx.CtxtPrimes()))
		}
	case *SecretKey:
		if !key.Value.IndexSet().Equal(ctx.FullPrimes()) {
			// Sanity check
			panic(fmt.Errorf("secret key is over %v but the context primes are %v", key.Value.IndexSet(), ctx.FullPrimes()))
		}
	default:
		// Sanity check
		panic(fmt.Errorf("key must be either *rlwe.PublicKey or *rlwe.SecretKey but have %T", key))
	}
	return &Encryptor{ctx: ctx, samplers: newSamplers(ctx), encKey: key}
}

// KeyID returns the identifier of the encryption key.
func (enc Encryptor) KeyID() int {
	switch key := enc.encKey.(type) {
	case *PublicKey:
		return key.KeyID
	case *SecretKey:
		return key.KeyID
	}
	return -1
}

// EncryptNew encrypts the plaintext at its level and returns the result.
func (enc Encryptor) EncryptNew(pt *Plaintext) (ct *Ciphertext, err error) {
	ct = NewCiphertext(enc.ctx, enc.KeyID(), pt.Level())
	return ct, enc.Encrypt(pt, ct)
}

// Encrypt encrypts the plaintext at its level and writes the result on ct.
// The encryption masks the plaintext with a fresh encryption of zero.
func (enc Encryptor) Encrypt(pt *Plaintext, ct *Ciphertext) (err error) {

	if err = enc.EncryptZero(pt.Level(), ct); err != nil {
		return fmt.Errorf("cannot Encrypt: %w", err)
	}

	if err = ct.Parts[0].Value.Add(ct.Parts[0].Value, pt.Value, false); err != nil {
		return fmt.Errorf("cannot Encrypt: %w", err)
	}

	ct.NoiseBound = log2Sum(ct.NoiseBound, pt.LogBound)
	ct.Scale = pt.Scale

	return
}

// EncryptZeroNew returns a fresh encryption of zero at the given level.
func (enc Encryptor) EncryptZeroNew(level int) (ct *Ciphertext, err error) {
	// EncryptZero checks the level and sets every field of ct.
	ct = &Ciphertext{}
	if err = enc.EncryptZero(level, ct); err != nil {
		return nil, err
	}
	return
}

// EncryptZero writes a fresh encryption of zero at the given level on ct.
func (enc Encryptor) EncryptZero(level int, ct *Ciphertext) (err error) {

	if level < 0 || level > enc.ctx.MaxLevel() {
		return fmt.Errorf("cannot EncryptZero: %w: level=%d must be in [0, %d]", ErrLevelMismatch, level, enc.ctx.MaxLevel())
	}

	set := enc.ctx.LevelSet(level)

	var c0, c1 *ring.DoubleCRT

	switch key := enc.encKey.(type) {
	case *SecretKey:
		c0, c1, err = enc.encryptZeroSk(key, set)
		ct.NoiseBound = enc.ctx.noiseSecretKeyEncryption()
	case *PublicKey:
		c0, c1, err = enc.encryptZeroPk(key, set)
		ct.NoiseBound = enc.ctx.noisePublicKeyEncryption()
	}

	if err != nil {
		return
	}

	*ct = Ciphertext{
		Parts: []CtxtPart{
			{Value: c0, Handle: OneHandle()},
			{Value: c1, Handle: BaseHandle(enc.KeyID())},
		},
		NoiseBound: ct.NoiseBound,
		PtxtSpace:  enc.ctx.t,
		Factor:     1,
		Scale:      1,
	}

	return
}

// encryptZeroSk returns (-a*s + t*e, a).
func (enc Encryptor) encryptZeroSk(sk *SecretKey, set ring.IndexSet) (c0, c1 *ring.DoubleCRT, err error) {

	var s *ring.DoubleCRT
	if s, err = sk.Value.View(set); err != nil {
		return
	}

	c1 = enc.uniform.ReadNew(set)
	c0 = enc.noise(enc.ctx, set)
	mustSubProduct(c0, c1, s)

	return
}

// encryptZeroPk returns (b*u + t*e0, a*u + t*e1).
func (enc Encryptor) encryptZeroPk(pk *PublicKey, set ring.IndexSet) (c0, c1 *ring.DoubleCRT, err error) {

	var b, a *ring.DoubleCRT
	if b, err = pk.Value[0].View(set); err != nil {
		return
	}
	if a, err = pk.Value[1].View(set); err != nil {
		return
	}

	u := enc.xs.ReadNew(set)

	c0 = enc.noise(enc.ctx, set)
	c1 = enc.noise(enc.ctx, set)

	if err = c0.MulThenAdd(b, u); err != nil {
		return
	}

	err = c1.MulThenAdd(a, u)

	return
}
