package bgv

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/hetile/core/rlwe"
	"github.com/tuneinsight/hetile/utils/sampling"
)

// TestContext bundles the objects needed to test BGV circuits.
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
// key and the Galois keys of the given rotations.
func NewTestContext(lit rlwe.ContextLiteral, rotations ...int) (tc *TestContext, err error) {

	tc = new(TestContext)

	if tc.Ctx, err = rlwe.NewContextFromLiteral(lit); err != nil {
		return
	}

	if tc.EA, err = NewEncryptedArray(tc.Ctx); err != nil {
		return
	}

	if tc.Prng, err = sampling.NewKeyedPRNG([]byte("bgv-test")); err != nil {
		return
	}

	tc.Kgen = rlwe.NewKeyGenerator(tc.Ctx)
	tc.Sk, tc.Pk = tc.Kgen.GenKeyPairNew()

	if tc.Evk, err = tc.Kgen.GenEvaluationKeySetNew(tc.Sk, tc.EA.GaloisElementsForRotation(rotations...)...); err != nil {
		return
	}

	tc.Enc = rlwe.NewEncryptor(tc.Ctx, tc.Pk)
	tc.Dec = rlwe.NewDecryptor(tc.Ctx, tc.Sk)
	tc.Evl = NewEvaluator(tc.EA, tc.Evk)

	return
}

func (tc TestContext) String() string {
	return fmt.Sprintf("M=%d/t=%d/Slots=%dx%d/Qi=%d/Pi=%d",
		tc.Ctx.M(),
		tc.Ctx.PlaintextModulus(),
		2, tc.EA.RowSize(),
		tc.Ctx.MaxLevel()+1,
		tc.Ctx.SpecialPrimes().Len())
}

// NewTestVector returns random slots modulo t, their encoding at the given
// level and, if encrypt is true, their encryption.
func (tc TestContext) NewTestVector(t *testing.T, level int, encrypt bool) (values []uint64, pt *rlwe.Plaintext, ct *rlwe.Ciphertext) {

	values = make([]uint64, tc.EA.Slots())
	for i := range values {
		values[i] = sampling.ReadUint64(tc.Prng) % tc.EA.PlaintextModulus()
	}

	var err error
	pt, err = tc.EA.EncodeNew(values, level)
	require.NoError(t, err)

	if encrypt {
		ct, err = tc.Enc.EncryptNew(pt)
		require.NoError(t, err)
	}

	return
}

// VerifyTestVectors checks that have, a plaintext or a ciphertext, decodes to want.
func (tc TestContext) VerifyTestVectors(t *testing.T, have interface{}, want []uint64) {

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
	require.Equal(t, want, values)
}
