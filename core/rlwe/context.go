package rlwe

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"math/bits"

	"github.com/google/go-cmp/cmp"
	"github.com/zeebo/blake3"

	"github.com/tuneinsight/hetile/ring"
	"github.com/tuneinsight/hetile/utils"
	"github.com/tuneinsight/hetile/utils/bignum"
)

const (
	// MinLogM is the log2 of the smallest supported cyclotomic index.
	MinLogM = 5
	// MaxLogM is the log2 of the largest supported cyclotomic index.
	MaxLogM = 17
	// MaxModuliSize is the largest bit-length supported for the primes.
	MaxModuliSize = 61
	// MaxModuliCount is the largest supported number of primes.
	MaxModuliCount = 64
)

// Scheme identifies the encoding of the plaintext space of a Context.
type Scheme int

const (
	// BGV encodes vectors of integers modulo t = p^r.
	BGV Scheme = iota + 1
	// CKKS encodes vectors of approximate complex numbers.
	CKKS
)

func (s Scheme) String() string {
	switch s {
	case BGV:
		return "BGV"
	case CKKS:
		return "CKKS"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// MarshalJSON encodes the scheme as its name.
func (s Scheme) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a scheme from its name.
func (s *Scheme) UnmarshalJSON(b []byte) (err error) {
	var name string
	if err = json.Unmarshal(b, &name); err != nil {
		return
	}
	switch name {
	case "BGV":
		*s = BGV
	case "CKKS":
		*s = CKKS
	default:
		return fmt.Errorf("invalid scheme %q", name)
	}
	return
}

// ContextLiteral is a literal representation of the parameters of a Context.
// It has public fields and is used to express unchecked user-defined parameters
// literally into Go programs. The NewContextFromLiteral function is used to
// generate the actual checked Context from the literal representation.
//
// Users must set M, Scheme and the chain primes, either explicitly with Q or
// by bit-size with LogQ (one of the two, not both). The special primes used for
// key switching are set likewise with Special or LogSpecial.
//
// Optionally, users may specify:
//   - the number of key-switching digits C (default ceil(#Q / #Special)),
//   - the secret and error distributions Xs and Xe (default DefaultXs and DefaultXe),
//   - for CKKS, LogDefaultScale (default the rounded size of the last chain prime).
//
// For BGV, the plaintext modulus is t = P^R with R >= 1 (default 1).
type ContextLiteral struct {
	M               int
	Scheme          Scheme
	P               uint64                      `json:",omitempty"`
	R               int                         `json:",omitempty"`
	Q               []uint64                    `json:",omitempty"`
	Special         []uint64                    `json:",omitempty"`
	LogQ            []int                       `json:",omitempty"`
	LogSpecial      []int                       `json:",omitempty"`
	C               int                         `json:",omitempty"`
	Xs              ring.DistributionParameters `json:",omitempty"`
	Xe              ring.DistributionParameters `json:",omitempty"`
	LogDefaultScale int                         `json:",omitempty"`
}

// UnmarshalJSON reads a JSON representation on the target ContextLiteral struct.
func (p *ContextLiteral) UnmarshalJSON(b []byte) (err error) {
	var pl struct {
		M               int
		Scheme          Scheme
		P               uint64
		R               int
		Q               []uint64
		Special         []uint64
		LogQ            []int
		LogSpecial      []int
		C               int
		Xs              map[string]interface{}
		Xe              map[string]interface{}
		LogDefaultScale int
	}

	if err = json.Unmarshal(b, &pl); err != nil {
		return err
	}

	p.M, p.Scheme, p.P, p.R = pl.M, pl.Scheme, pl.P, pl.R
	p.Q, p.Special, p.LogQ, p.LogSpecial = pl.Q, pl.Special, pl.LogQ, pl.LogSpecial
	p.C, p.LogDefaultScale = pl.C, pl.LogDefaultScale
	p.Xs, p.Xe = nil, nil

	if pl.Xs != nil {
		if p.Xs, err = ring.ParametersFromMap(pl.Xs); err != nil {
			return err
		}
	}
	if pl.Xe != nil {
		if p.Xe, err = ring.ParametersFromMap(pl.Xe); err != nil {
			return err
		}
	}

	return
}

// Context stores the parameters shared by all the objects of an instance of
// the scheme: the cyclotomic ring, the modulus chain, the special primes, the
// key-switching digits and the plaintext space. A Context is immutable and is
// safe for concurrent use.
type Context struct {
	m      int
	scheme Scheme

	p uint64
	r int
	t uint64

	ring    *ring.Ring
	ctxt    ring.IndexSet
	special ring.IndexSet
	digits  []ring.IndexSet

	xs, xe          ring.DistributionParameters
	logDefaultScale int

	fingerprint [32]byte
}

// NewContextFromLiteral instantiates a Context from a ContextLiteral.
// Errors wrap ErrConfiguration.
func NewContextFromLiteral(lit ContextLiteral) (ctx *Context, err error) {
	if ctx, err = newContext(lit); err != nil {
		return nil, fmt.Errorf("cannot NewContextFromLiteral: %w: %w", ErrConfiguration, err)
	}
	return
}

// NewContext is a shorthand for NewContextFromLiteral with explicit primes.
func NewContext(scheme Scheme, M int, p uint64, r int, Q, special []uint64) (ctx *Context, err error) {
	return NewContextFromLiteral(ContextLiteral{M: M, Scheme: scheme, P: p, R: r, Q: Q, Special: special})
}

func newContext(lit ContextLiteral) (ctx *Context, err error) {

	if lit.M < 1<<MinLogM || lit.M > 1<<MaxLogM || !utils.IsPowerOfTwo(lit.M) {
		return nil, fmt.Errorf("M=%d must be a power of two in [2^%d, 2^%d]", lit.M, MinLogM, MaxLogM)
	}

	if lit.Scheme != BGV && lit.Scheme != CKKS {
		return nil, fmt.Errorf("invalid scheme %v", lit.Scheme)
	}

	Q, P := lit.Q, lit.Special

	switch {
	case lit.Q != nil && lit.LogQ != nil:
		return nil, fmt.Errorf("both Q and LogQ fields are set")
	case lit.Special != nil && lit.LogSpecial != nil:
		return nil, fmt.Errorf("both Special and LogSpecial fields are set")
	case lit.LogQ != nil || lit.LogSpecial != nil:
		var q, p []uint64
		if q, p, err = GenModuli(lit.M, lit.LogQ, lit.LogSpecial); err != nil {
			return nil, err
		}
		if lit.LogQ != nil {
			Q = q
		}
		if lit.LogSpecial != nil {
			P = p
		}
	}

	if len(Q) == 0 {
		return nil, fmt.Errorf("no chain primes")
	}

	if len(P) == 0 {
		return nil, fmt.Errorf("no special primes")
	}

	if err = CheckModuli(lit.M, Q, P); err != nil {
		return nil, err
	}

	ctx = &Context{
		m:      lit.M,
		scheme: lit.Scheme,
		ctxt:   ring.Interval(0, len(Q)-1),
		xs:     lit.Xs,
		xe:     lit.Xe,
	}

	ctx.special = ring.Interval(len(Q), len(Q)+len(P)-1)

	if ctx.ring, err = ring.NewRing(lit.M>>1, append(append([]uint64{}, Q...), P...)); err != nil {
		return nil, err
	}

	switch lit.Scheme {
	case BGV:
		if err = ctx.initPlaintextModulus(lit.P, lit.R, Q, P); err != nil {
			return nil, err
		}
	case CKKS:
		if lit.P != 0 || lit.R != 0 {
			return nil, fmt.Errorf("CKKS does not take a plaintext prime")
		}
		ctx.t = 1
		if ctx.logDefaultScale = lit.LogDefaultScale; ctx.logDefaultScale == 0 {
			ctx.logDefaultScale = int(math.Round(math.Log2(float64(Q[len(Q)-1]))))
		}
		if ctx.logDefaultScale < 1 || ctx.logDefaultScale >= bits.Len64(Q[0]) {
			return nil, fmt.Errorf("LogDefaultScale=%d must be in [1, %d) for the first prime %d", ctx.logDefaultScale, bits.Len64(Q[0]), Q[0])
		}
	}

	if lit.Scheme == BGV && lit.LogDefaultScale != 0 {
		return nil, fmt.Errorf("BGV does not take a default scale")
	}

	C := lit.C
	if C == 0 {
		C = (len(Q) + len(P) - 1) / len(P)
	}
	if C < 1 || C > len(Q) {
		return nil, fmt.Errorf("C=%d must be in [1, %d]", C, len(Q))
	}
	ctx.digits = partition(len(Q), C)

	if ctx.xs == nil {
		ctx.xs = DefaultXs
	}
	if ctx.xe == nil {
		ctx.xe = DefaultXe
	}

	for _, X := range []ring.DistributionParameters{ctx.xs, ctx.xe} {
		if _, err = ring.NewSampler(nil, ctx.ring, X); err != nil {
			return nil, err
		}
	}

	if _, isUniform := ctx.xe.(ring.Uniform); isUniform {
		return nil, fmt.Errorf("the error distribution cannot be uniform")
	}

	var data []byte
	if data, err = json.Marshal(ctx.Literal()); err != nil {
		return nil, err
	}
	ctx.fingerprint = blake3.Sum256(data)

	ctx.ring.SetOwner(ctx)

	return
}

func (ctx *Context) initPlaintextModulus(p uint64, r int, Q, P []uint64) (err error) {

	if r == 0 {
		r = 1
	}

	if p < 2 || !ring.IsPrime(p) {
		return fmt.Errorf("plaintext prime P=%d is not a prime", p)
	}

	if r < 1 {
		return fmt.Errorf("Hensel lifting R=%d must be positive", r)
	}

	t := uint64(1)
	for i := 0; i < r; i++ {
		hi, lo := bits.Mul64(t, p)
		if hi != 0 || lo>>62 != 0 {
			return fmt.Errorf("plaintext modulus P^R=%d^%d overflows 62 bits", p, r)
		}
		t = lo
	}

	if t%uint64(ctx.m) != 1 {
		return fmt.Errorf("plaintext modulus t=%d is not 1 mod M=%d", t, ctx.m)
	}

	for _, q := range append(append([]uint64{}, Q...), P...) {
		if q%p == 0 {
			return fmt.Errorf("plaintext prime %d divides the prime %d", p, q)
		}
	}

	for _, q := range Q {
		if t >= q {
			return fmt.Errorf("plaintext modulus t=%d is larger than the chain prime %d", t, q)
		}
	}

	ctx.p, ctx.r, ctx.t = p, r, t

	return
}

// partition splits the chain primes {0, ..., n-1} into c intervals of sizes differing by at most one.
func partition(n, c int) (digits []ring.IndexSet) {
	digits = make([]ring.IndexSet, c)
	start := 0
	for j := range digits {
		size := n / c
		if j < n%c {
			size++
		}
		digits[j] = ring.Interval(start, start+size-1)
		start += size
	}
	return
}

// CheckModuli checks that the chain primes Q and the special primes P are
// distinct NTT-friendly primes of at most MaxModuliSize bits for the index M.
func CheckModuli(M int, Q, P []uint64) (err error) {

	if len(Q)+len(P) > MaxModuliCount {
		return fmt.Errorf("#Q + #Special=%d exceeds %d", len(Q)+len(P), MaxModuliCount)
	}

	all := append(append([]uint64{}, Q...), P...)

	for i, q := range all {
		if bits.Len64(q) > MaxModuliSize {
			return fmt.Errorf("prime #%d=%d exceeds %d bits", i, q, MaxModuliSize)
		}
		if !ring.IsPrime(q) {
			return fmt.Errorf("prime #%d=%d is not prime", i, q)
		}
		if q%uint64(M) != 1 {
			return fmt.Errorf("prime #%d=%d is not 1 mod M=%d", i, q, M)
		}
	}

	if !utils.AllDistinct(all) {
		return fmt.Errorf("primes are not distinct")
	}

	return
}

// GenModuli generates valid moduli for the given bit-sizes: NTT-friendly
// primes for M, searched alternating above and below 2^logQi.
func GenModuli(M int, logQ, logSpecial []int) (q, p []uint64, err error) {

	if len(logQ)+len(logSpecial) > MaxModuliCount {
		return q, p, fmt.Errorf("#LogQ + #LogSpecial=%d exceeds %d", len(logQ)+len(logSpecial), MaxModuliCount)
	}

	// Extracts all the different primes bit size and maps their number
	primesbitlen := make(map[int]int)
	for _, qi := range logQ {
		primesbitlen[qi]++
	}

	for _, pj := range logSpecial {
		primesbitlen[pj]++
	}

	// For each bit-size, finds that many primes
	primes := make(map[int][]uint64)
	for _, bitsize := range utils.GetSortedKeys(primesbitlen) {
		if bitsize < 2 || bitsize > MaxModuliSize {
			return q, p, fmt.Errorf("cannot GenModuli: bit-size=%d must be in [2, %d]", bitsize, MaxModuliSize)
		}
		if primes[bitsize], err = ring.GenerateNTTPrimes(bitsize, M, primesbitlen[bitsize]); err != nil {
			return q, p, fmt.Errorf("cannot GenModuli: failed to generate %d primes of bit-size=%d for M=%d: %w", primesbitlen[bitsize], bitsize, M, err)
		}
	}

	// Assigns the primes to the moduli chain
	for _, qi := range logQ {
		q = append(q, primes[qi][0])
		primes[qi] = primes[qi][1:]
	}

	// Assigns the primes to the special primes
	for _, pj := range logSpecial {
		p = append(p, primes[pj][0])
		primes[pj] = primes[pj][1:]
	}

	return
}

// M returns the cyclotomic index.
func (ctx *Context) M() int {
	return ctx.m
}

// N returns the ring degree M/2.
func (ctx *Context) N() int {
	return ctx.m >> 1
}

// LogN returns log2 of the ring degree.
func (ctx *Context) LogN() int {
	return ctx.ring.LogN()
}

// Scheme returns the scheme of the context.
func (ctx *Context) Scheme() Scheme {
	return ctx.scheme
}

// PlaintextModulus returns t = p^r for BGV and 1 for CKKS.
func (ctx *Context) PlaintextModulus() uint64 {
	return ctx.t
}

// PlaintextPrime returns the plaintext prime p (BGV).
func (ctx *Context) PlaintextPrime() uint64 {
	return ctx.p
}

// HenselLifting returns r, the exponent of the plaintext modulus (BGV).
func (ctx *Context) HenselLifting() int {
	return ctx.r
}

// Ring returns the ring over all the primes of the context.
func (ctx *Context) Ring() *ring.Ring {
	return ctx.ring
}

// Primes returns all the primes, chain primes first.
func (ctx *Context) Primes() []uint64 {
	return ctx.ring.Primes()
}

// CtxtPrimes returns the indices of the chain primes.
func (ctx *Context) CtxtPrimes() ring.IndexSet {
	return ctx.ctxt
}

// SpecialPrimes returns the indices of the special primes.
func (ctx *Context) SpecialPrimes() ring.IndexSet {
	return ctx.special
}

// FullPrimes returns the indices of all the primes.
func (ctx *Context) FullPrimes() ring.IndexSet {
	return ctx.ring.AllPrimes()
}

// MaxLevel returns the level of a fresh ciphertext.
func (ctx *Context) MaxLevel() int {
	return ctx.ctxt.Len() - 1
}

// LevelSet returns the chain primes of a ciphertext at the given level.
func (ctx *Context) LevelSet(level int) ring.IndexSet {
	if level < 0 || level > ctx.MaxLevel() {
		panic(fmt.Errorf("cannot LevelSet: level=%d must be in [0, %d]", level, ctx.MaxLevel()))
	}
	return ring.Interval(0, level)
}

// Level returns the level corresponding to a set of chain primes.
func (ctx *Context) Level(set ring.IndexSet) int {
	return set.Intersection(ctx.ctxt).Len() - 1
}

// LogQ returns log2 of the product of the primes of set.
func (ctx *Context) LogQ(set ring.IndexSet) float64 {
	return bignum.Log2(ctx.ModulusBigInt(set))
}

// ModulusBigInt returns the product of the primes of set.
func (ctx *Context) ModulusBigInt(set ring.IndexSet) *big.Int {
	return ctx.ring.ModulusBigInt(set)
}

// Digits returns the partition of the chain primes used for key switching.
func (ctx *Context) Digits() []ring.IndexSet {
	return ctx.digits
}

// Xs returns the distribution of the secret.
func (ctx *Context) Xs() ring.DistributionParameters {
	return ctx.xs
}

// Xe returns the distribution of the error.
func (ctx *Context) Xe() ring.DistributionParameters {
	return ctx.xe
}

// LogDefaultScale returns log2 of the default scale of CKKS plaintexts.
func (ctx *Context) LogDefaultScale() int {
	return ctx.logDefaultScale
}

// DefaultScale returns the default scale of CKKS plaintexts, or 1 for BGV.
func (ctx *Context) DefaultScale() float64 {
	return math.Exp2(float64(ctx.logDefaultScale))
}

// Fingerprint returns a digest of the parameters of the context.
func (ctx *Context) Fingerprint() [32]byte {
	return ctx.fingerprint
}

// Literal returns the ContextLiteral of the context, with explicit primes.
func (ctx *Context) Literal() ContextLiteral {
	lit := ContextLiteral{
		M:               ctx.m,
		Scheme:          ctx.scheme,
		Q:               ctx.ring.Moduli(ctx.ctxt),
		Special:         ctx.ring.Moduli(ctx.special),
		C:               len(ctx.digits),
		Xs:              ctx.xs,
		Xe:              ctx.xe,
		LogDefaultScale: ctx.logDefaultScale,
	}
	if ctx.scheme == BGV {
		lit.P, lit.R = ctx.p, ctx.r
	}
	return lit
}

// Equal returns true if both contexts have the same parameters.
func (ctx *Context) Equal(other *Context) bool {
	if ctx == other {
		return true
	}
	if ctx == nil || other == nil {
		return false
	}
	return ctx.fingerprint == other.fingerprint && cmp.Equal(ctx.Literal(), other.Literal())
}

// MarshalJSON returns a JSON representation of the context.
func (ctx *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(ctx.Literal())
}

// UnmarshalJSON reads a JSON representation of a context into a zero receiver.
func (ctx *Context) UnmarshalJSON(data []byte) (err error) {
	if ctx.ring != nil {
		return fmt.Errorf("cannot UnmarshalJSON: context is already initialized")
	}
	var lit ContextLiteral
	if err = json.Unmarshal(data, &lit); err != nil {
		return err
	}
	var c *Context
	if c, err = NewContextFromLiteral(lit); err != nil {
		return
	}
	*ctx = *c
	ctx.ring.SetOwner(ctx)
	return
}

func (ctx *Context) String() string {
	return fmt.Sprintf("%v/M=%d/logQP=%.0f/t=%d", ctx.scheme, ctx.m, ctx.LogQ(ctx.FullPrimes()), ctx.t)
}
