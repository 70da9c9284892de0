package bgv

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
// The rotation of the rows by k positions is the automorphism X -> X^(GaloisGen^k).
const GaloisGen uint64 = 5

// slotRing implements the negacyclic NTT of size N modulo the plaintext
// modulus t = p^r, which evaluates plaintexts on the N primitive M-th roots
// of unity of Z_t.
type slotRing struct {
	t             uint64
	n             int
	logN          int
	rootsForward  []uint64 // psi^bitrev(i)
	rootsBackward []uint64 // psi^-bitrev(i)
	nInv          uint64
}

func mulMod(a, b, t uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, r := bits.Div64(hi, lo, t)
	return r
}

func addMod(a, b, t uint64) uint64 {
	c := a + b
	if c >= t {
		c -= t
	}
	return c
}

func subMod(a, b, t uint64) uint64 {
	return addMod(a, t-b, t)
}

// henselRoot returns a primitive M-th root of unity modulo p^r, obtained by
// lifting a root modulo p with Newton iterations on X^(M/2) + 1.
func henselRoot(p uint64, r, M int) (psi *big.Int, err error) {

	root, err := ring.PrimitiveNthRoot(p, M)
	if err != nil {
		return nil, err
	}

	T := new(big.Int).Exp(new(big.Int).SetUint64(p), big.NewInt(int64(r)), nil)
	N := big.NewInt(int64(M >> 1))
	Nm1 := big.NewInt(int64(M>>1) - 1)
	one := big.NewInt(1)

	psi = new(big.Int).SetUint64(root)
	f, df := new(big.Int), new(big.Int)

	for k := 1; k < r; k <<= 1 {
		f.Exp(psi, N, T)
		f.Add(f, one)
		df.Exp(psi, Nm1, T)
		df.Mul(df, N)
		if df.ModInverse(df, T) == nil {
			return nil, fmt.Errorf("derivative is not invertible modulo %v", T)
		}
		f.Mul(f, df)
		psi.Sub(psi, f)
		psi.Mod(psi, T)
	}

	if f.Exp(psi, N, T).Add(f, one).Cmp(T) != 0 {
		return nil, fmt.Errorf("%v is not a root of X^%v+1 modulo %v", psi, N, T)
	}

	return
}

func newSlotRing(p uint64, r, M int) (s *slotRing, err error) {

	psiBig, err := henselRoot(p, r, M)
	if err != nil {
		return nil, err
	}

	N := M >> 1
	T := new(big.Int).Exp(new(big.Int).SetUint64(p), big.NewInt(int64(r)), nil)
	t := T.Uint64()

	psi := psiBig.Uint64()
	psiInv := new(big.Int).ModInverse(psiBig, T).Uint64()

	s = &slotRing{
		t:             t,
		n:             N,
		logN:          bits.Len64(uint64(N)) - 1,
		rootsForward:  make([]uint64, N),
		rootsBackward: make([]uint64, N),
		nInv:          new(big.Int).ModInverse(big.NewInt(int64(N)), T).Uint64(),
	}

	pows := make([]uint64, N)
	powsInv := make([]uint64, N)
	pows[0], powsInv[0] = 1, 1
	for i := 1; i < N; i++ {
		pows[i] = mulMod(pows[i-1], psi, t)
		powsInv[i] = mulMod(powsInv[i-1], psiInv, t)
	}

	for i := 0; i < N; i++ {
		j := utils.BitReverse64(i, s.logN)
		s.rootsForward[i] = pows[j]
		s.rootsBackward[i] = powsInv[j]
	}

	return
}

// ntt evaluates p in place: p[i] = P(psi^(2*bitrev(i)+1)).
func (s *slotRing) ntt(p []uint64) {
	t := s.t
	for m, h := 1, s.n>>1; m < s.n; m, h = m<<1, h>>1 {
		for i := 0; i < m; i++ {
			j1 := 2 * i * h
			W := s.rootsForward[m+i]
			x, y := p[j1:j1+h], p[j1+h:j1+2*h]
			for j := range x {
				U, V := x[j], mulMod(y[j], W, t)
				x[j] = addMod(U, V, t)
				y[j] = subMod(U, V, t)
			}
		}
	}
}

// intt is the inverse of ntt.
func (s *slotRing) intt(p []uint64) {
	t := s.t
	for m, h := s.n>>1, 1; m > 0; m, h = m>>1, h<<1 {
		for i := 0; i < m; i++ {
			j1 := 2 * i * h
			W := s.rootsBackward[m+i]
			x, y := p[j1:j1+h], p[j1+h:j1+2*h]
			for j := range x {
				U, V := x[j], y[j]
				x[j] = addMod(U, V, t)
				y[j] = mulMod(subMod(U, V, t), W, t)
			}
		}
	}
	for i := range p {
		p[i] = mulMod(p[i], s.nInv, t)
	}
}

// EncryptedArray encodes vectors of integers modulo t = p^r on BGV plaintexts.
//
// The N slots form a hypercube of two rows of N/2 slots: slot i of row 0 is
// the evaluation of the plaintext at zeta^(5^i) and slot i of row 1 at
// zeta^(-5^i), where zeta is a primitive M-th root of unity of Z_t. Slot
// s = row*N/2 + i of a vector is slot i of the given row.
type EncryptedArray struct {
	ctx   *rlwe.Context
	slots *slotRing
	perm  []int // slot -> evaluation index
}

// NewEncryptedArray returns the EncryptedArray of a BGV context.
// The plaintext prime p must be 1 mod M so that X^N+1 splits into linear factors over Z_t.
func NewEncryptedArray(ctx *rlwe.Context) (ea *EncryptedArray, err error) {

	if ctx.Scheme() != rlwe.BGV {
		return nil, fmt.Errorf("cannot NewEncryptedArray: %w: scheme is %v", rlwe.ErrConfiguration, ctx.Scheme())
	}

	M := ctx.M()
	p := ctx.PlaintextPrime()

	if (p-1)%uint64(M) != 0 {
		return nil, fmt.Errorf("cannot NewEncryptedArray: %w: p=%d is not 1 mod M=%d", rlwe.ErrConfiguration, p, M)
	}

	ea = &EncryptedArray{ctx: ctx}

	if ea.slots, err = newSlotRing(p, ctx.HenselLifting(), M); err != nil {
		return nil, fmt.Errorf("cannot NewEncryptedArray: %w: %w", rlwe.ErrConfiguration, err)
	}

	N := ctx.N()
	half := N >> 1
	mask := uint64(M - 1)
	logN := ea.slots.logN

	ea.perm = make([]int, N)
	e := uint64(1)
	for i := 0; i < half; i++ {
		ea.perm[i] = int(utils.BitReverse64((e-1)>>1, logN))
		ea.perm[half+i] = int(utils.BitReverse64((uint64(M)-e-1)>>1, logN))
		e = (e * GaloisGen) & mask
	}

	return
}

// Slots returns the number of slots, N.
func (ea EncryptedArray) Slots() int {
	return len(ea.perm)
}

// RowSize returns the number of slots of a row of the hypercube, N/2.
func (ea EncryptedArray) RowSize() int {
	return len(ea.perm) >> 1
}

// PlaintextModulus returns t = p^r.
func (ea EncryptedArray) PlaintextModulus() uint64 {
	return ea.slots.t
}

func (ea EncryptedArray) reduce(values interface{}) (slots []uint64, err error) {

	t := ea.slots.t

	switch values := values.(type) {
	case []uint64:
		slots = make([]uint64, len(values))
		for i, v := range values {
			slots[i] = v % t
		}
	case []int64:
		slots = make([]uint64, len(values))
		for i, v := range values {
			slots[i] = ring.FromCentered(v, t)
		}
	default:
		return nil, fmt.Errorf("values must be []uint64 or []int64 but is %T", values)
	}

	if len(slots) > len(ea.perm) {
		return nil, fmt.Errorf("%w: %d values for %d slots", rlwe.ErrSlotOverflow, len(slots), len(ea.perm))
	}

	return
}

// Encode encodes a []uint64 or []int64 on the slots of pt, at the level of pt.
// Missing values are zero and negative values are taken modulo t.
func (ea EncryptedArray) Encode(values interface{}, pt *rlwe.Plaintext) (err error) {

	slots, err := ea.reduce(values)
	if err != nil {
		return fmt.Errorf("cannot Encode: %w", err)
	}

	coeffs := make([]uint64, len(ea.perm))
	for s, v := range slots {
		coeffs[ea.perm[s]] = v
	}

	ea.slots.intt(coeffs)

	centered := make([]int64, len(coeffs))
	var max int64
	for i, c := range coeffs {
		centered[i] = ring.Centered(c, ea.slots.t)
		if a := abs(centered[i]); a > max {
			max = a
		}
	}

	level := ea.ctx.MaxLevel()
	if pt.Value != nil {
		level = pt.Level()
	}

	logBound := math.Inf(-1)
	if max != 0 {
		logBound = math.Log2(float64(max))
	}

	*pt = rlwe.Plaintext{
		Value:    ring.NewDoubleCRTFromInt64(ea.ctx.Ring(), ea.ctx.LevelSet(level), centered),
		Scale:    1,
		LogBound: logBound,
	}

	return
}

// EncodeNew encodes the values on a new plaintext at the given level.
func (ea EncryptedArray) EncodeNew(values interface{}, level int) (pt *rlwe.Plaintext, err error) {
	if level < 0 || level > ea.ctx.MaxLevel() {
		return nil, fmt.Errorf("cannot EncodeNew: %w: level=%d not in [0, %d]", rlwe.ErrLevelMismatch, level, ea.ctx.MaxLevel())
	}
	pt = rlwe.NewPlaintext(ea.ctx, level)
	return pt, ea.Encode(values, pt)
}

// Decode returns the slots of pt as integers in [0, t).
func (ea EncryptedArray) Decode(pt *rlwe.Plaintext) (values []uint64, err error) {

	if pt == nil || pt.Value == nil {
		return nil, fmt.Errorf("cannot Decode: plaintext is empty")
	}

	T := new(big.Int).SetUint64(ea.slots.t)

	evals := make([]uint64, len(ea.perm))
	for i, c := range pt.Value.BigCoeffs(true) {
		evals[i] = c.Mod(c, T).Uint64()
	}

	ea.slots.ntt(evals)

	values = make([]uint64, len(ea.perm))
	for s, j := range ea.perm {
		values[s] = evals[j]
	}

	return
}

// DecodeInt returns the slots of pt as integers in (-t/2, t/2].
func (ea EncryptedArray) DecodeInt(pt *rlwe.Plaintext) (values []int64, err error) {

	coeffs, err := ea.Decode(pt)
	if err != nil {
		return
	}

	values = make([]int64, len(coeffs))
	for i, c := range coeffs {
		values[i] = ring.Centered(c, ea.slots.t)
	}

	return
}

// rotationMasks returns the plaintexts selecting, in both rows, the slots
// i < N/2 - k and i >= N/2 - k.
func (ea EncryptedArray) rotationMasks(k, level int) (lo, hi *rlwe.Plaintext, err error) {

	half := ea.RowSize()
	mlo := make([]uint64, ea.Slots())
	mhi := make([]uint64, ea.Slots())

	for i := 0; i < half; i++ {
		if i < half-k {
			mlo[i], mlo[half+i] = 1, 1
		} else {
			mhi[i], mhi[half+i] = 1, 1
		}
	}

	if lo, err = ea.EncodeNew(mlo, level); err != nil {
		return
	}

	hi, err = ea.EncodeNew(mhi, level)

	return
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
