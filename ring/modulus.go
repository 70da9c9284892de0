package ring

import (
	"fmt"
	"math/bits"

	"github.com/tuneinsight/hetile/utils"
)

// Modulus stores the precomputed constants for the arithmetic
// and the negacyclic NTT modulo a single NTT-friendly prime.
type Modulus struct {
	Q             uint64
	BRedConstant  [2]uint64
	MRedConstant  uint64
	PrimitiveRoot uint64   // primitive 2N-th root of unity
	NInv          uint64   // N^-1 in Montgomery form
	RootsForward  []uint64 // psi^bitrev(i) in Montgomery form
	RootsBackward []uint64 // psi^-bitrev(i) in Montgomery form
}

// NewModulus generates the constants of the NTT of size N modulo q.
// q must be a prime congruent to 1 mod 2N of at most 61 bits.
func NewModulus(q uint64, N int) (m *Modulus, err error) {

	if !utils.IsPowerOfTwo(N) {
		return nil, fmt.Errorf("cannot NewModulus: N=%d is not a power of two", N)
	}

	if bits.Len64(q) > 61 {
		return nil, fmt.Errorf("cannot NewModulus: q=%d exceeds 61 bits", q)
	}

	if !IsPrime(q) {
		return nil, fmt.Errorf("cannot NewModulus: q=%d is not prime", q)
	}

	if (q-1)%uint64(2*N) != 0 {
		return nil, fmt.Errorf("cannot NewModulus: q=%d is not 1 mod 2N=%d", q, 2*N)
	}

	m = &Modulus{
		Q:            q,
		BRedConstant: GenBRedConstant(q),
		MRedConstant: GenMRedConstant(q),
	}

	if m.PrimitiveRoot, err = PrimitiveNthRoot(q, 2*N); err != nil {
		return nil, fmt.Errorf("cannot NewModulus: %w", err)
	}

	logN := bits.Len64(uint64(N)) - 1

	psi := m.PrimitiveRoot
	psiInv := ModInverse(psi, q)

	pows := make([]uint64, N)
	powsInv := make([]uint64, N)
	pows[0], powsInv[0] = 1, 1
	for i := 1; i < N; i++ {
		pows[i] = BRed(pows[i-1], psi, q, m.BRedConstant)
		powsInv[i] = BRed(powsInv[i-1], psiInv, q, m.BRedConstant)
	}

	m.RootsForward = make([]uint64, N)
	m.RootsBackward = make([]uint64, N)
	for i := 0; i < N; i++ {
		j := utils.BitReverse64(i, logN)
		m.RootsForward[i] = MForm(pows[j], q, m.BRedConstant)
		m.RootsBackward[i] = MForm(powsInv[j], q, m.BRedConstant)
	}

	m.NInv = MForm(ModInverse(uint64(N), q), q, m.BRedConstant)

	return
}

// MulMod returns a*b mod q.
func (m *Modulus) MulMod(a, b uint64) uint64 {
	return BRed(a, b, m.Q, m.BRedConstant)
}

// Reduce returns a mod q.
func (m *Modulus) Reduce(a uint64) uint64 {
	return BRedAdd(a, m.Q, m.BRedConstant)
}
