package ckks

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/utils/sampling"
)

// TestContext bundles the objects needed to test CKKS circuits.
type TestContext struct {
	Ctx *rlwe.Context
	EA  *EncryptedArray

	Prng sampling.PRNG

	Kgen *rlwe.KeyGenerator
	Sk   *rlwe.SecretKey
	Pk   *rlwe.PublicKey
	Evk  *rlwe.EvaluationKeySet

	Enc *rlwe.Encryptor
	Dec *rlwe.Decryptor

	Evl *Evaluator
}

// NewTestContext generates a key pair and evaluation keys with the relinearization
// key, the conjugation key and the Galois keys of the given rotations.
func NewTestContext(lit rlwe.ContextLiteral, rotations ...int) (tc *TestContext, err error) {

	tc = new(TestContext)

	if tc.Ctx, err = rlwe.NewContextFromLiteral(lit); err != nil {
		return
	}

	if tc.EA, err = NewEncryptedArray(tc.Ctx); err != nil {
		return
	}

	if tc.Prng, err = sampling.NewKeyedPRNG([]byte("ckks-test")); err != nil {
		return
	}

	tc.Kgen = rlwe.NewKeyGenerator(tc.Ctx)
	tc.Sk, tc.Pk = tc.Kgen.GenKeyPairNew()

	galEls := append(tc.EA.GaloisElementsForRotation(rotations...), tc.Ctx.Ring().GaloisElementForConjugate())

	if tc.Evk, err = tc.Kgen.GenEvaluationKeySetNew(tc.Sk, galEls...); err != nil {
		return
	}

	tc.Enc = rlwe.NewEncryptor(tc.Ctx, tc.Pk)
	tc.Dec = rlwe.NewDecryptor(tc.Ctx, tc.Sk)
	tc.Evl = NewEvaluator(tc.EA, tc.Evk)

	return
}

func (tc TestContext) String() string {
	return fmt.Sprintf("M=%d/Slots=%d/LogScale=%d/Qi=%d/Pi=%d",
		tc.Ctx.M(),
		tc.EA.Slots(),
		tc.Ctx.LogDefaultScale(),
		tc.Ctx.MaxLevel()+1,
		tc.Ctx.SpecialPrimes().Len())
}

// RandFloat64 returns a pseudo-random float in [min, max) read from the PRNG of the context.
func (tc TestContext) RandFloat64(min, max float64) float64 {
	f := float64(sampling.ReadUint64(tc.Prng)>>11) / (1 << 53)
	return min + f*(max-min)
}

// NewTestVector returns random slots with real and imaginary parts in [-1, 1),
// their encoding at the given level with the default scale and, if encrypt is
// true, their encryption.
func (tc TestContext) NewTestVector(t *testing.T, level int, encrypt bool) (values []complex128, pt *rlwe.Plaintext, ct *rlwe.Ciphertext) {

	values = make([]complex128, tc.EA.Slots())
	for i := range values {
		values[i] = complex(tc.RandFloat64(-1, 1), tc.RandFloat64(-1, 1))
	}

	var err error
	pt, err = tc.EA.EncodeNew(values, level, tc.Ctx.DefaultScale())
	require.NoError(t, err)

	if encrypt {
		ct, err = tc.Enc.EncryptNew(pt)
		require.NoError(t, err)
	}

	return
}

// VerifyTestVectors checks that have, a plaintext or a ciphertext, decodes
// to want with at least minLog2Prec bits of precision on every slot.
func (tc TestContext) VerifyTestVectors(t *testing.T, have interface{}, want []complex128, minLog2Prec float64) {

	var pt *rlwe.Plaintext
	var err error

	switch have := have.(type) {
	case *rlwe.Plaintext:
		pt = have
	case *rlwe.Ciphertext:
		pt, err = tc.Dec.DecryptNew(have)
		require.NoError(t, err)
	default:
		t.Fatalf("invalid test object type %T", have)
	}

	values, err := tc.EA.Decode(pt)
	require.NoError(t, err)

	if len(want) < len(values) {
		values = values[:len(want)]
	}

	prec, err := GetPrecisionStats(want, values)
	require.NoError(t, err)

	if testing.Verbose() {
		t.Log(prec.String())
	}

	require.GreaterOrEqual(t, prec.MINLog2Prec.L2, minLog2Prec, prec.String())
}
