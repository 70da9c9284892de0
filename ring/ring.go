// Package ring implements RNS-accelerated modular arithmetic over the cyclotomic
// ring Z[X]/(X^N+1), with N a power of two, and its Double-CRT representation.
package ring

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/tuneinsight/hetile/utils"
	"github.com/tuneinsight/hetile/utils/bignum"
)

// ErrIndexSetMismatch is returned when the operands of a binary operation
// are represented over different sets of primes.
var ErrIndexSetMismatch = errors.New("index set mismatch")

// MinimumLogN and MaximumLogN bound the supported ring degrees.
const (
	MinimumLogN = 4
	MaximumLogN = 16
)

// parallelThreshold is the number of coefficients above which the
// per-prime loops are spread over several goroutines.
const parallelThreshold = 1 << 14

// Ring is the ring Z[X]/(X^N+1) together with an ordered list of NTT-friendly
// primes. Elements of the ring are represented over subsets of these primes,
// identified by IndexSet. A Ring is read-only after creation.
type Ring struct {
	n      int
	logN   int
	moduli []*Modulus

	// crt tables, indexed by prime index
	inv map[[2]int]uint64 // inv[{i, j}] = q_i^-1 mod q_j

	owner any
}

// SetOwner binds the ring to the object built on it. It must be called
// before the ring is shared.
func (r *Ring) SetOwner(owner any) {
	r.owner = owner
}

// Owner returns the object the ring is bound to, or nil.
func (r *Ring) Owner() any {
	return r.owner
}

// NewRing creates a new Ring of degree N over the given primes.
// Primes must be distinct, NTT-friendly for 2N and at most 61 bits.
func NewRing(N int, primes []uint64) (r *Ring, err error) {

	if !utils.IsPowerOfTwo(N) {
		return nil, fmt.Errorf("invalid ring degree: N=%d is not a power of two", N)
	}

	logN := bits.Len64(uint64(N)) - 1

	if logN < MinimumLogN || logN > MaximumLogN {
		return nil, fmt.Errorf("invalid ring degree: logN=%d must be in [%d, %d]", logN, MinimumLogN, MaximumLogN)
	}

	if len(primes) == 0 {
		return nil, fmt.Errorf("invalid primes: empty list")
	}

	if !utils.AllDistinct(primes) {
		return nil, fmt.Errorf("invalid primes: primes are not distinct")
	}

	r = &Ring{n: N, logN: logN, moduli: make([]*Modulus, len(primes)), inv: map[[2]int]uint64{}}

	for i, q := range primes {
		if r.moduli[i], err = NewModulus(q, N); err != nil {
			return nil, fmt.Errorf("invalid prime #%d: %w", i, err)
		}
	}

	for i, qi := range primes {
		for j, qj := range primes {
			if i != j {
				r.inv[[2]int{i, j}] = ModInverse(qi%qj, qj)
			}
		}
	}

	return
}

// N returns the ring degree.
func (r *Ring) N() int {
	return r.n
}

// LogN returns log2 of the ring degree.
func (r *Ring) LogN() int {
	return r.logN
}

// NthRoot returns 2N.
func (r *Ring) NthRoot() uint64 {
	return uint64(r.n) << 1
}

// Primes returns a copy of the ordered list of primes.
func (r *Ring) Primes() (primes []uint64) {
	primes = make([]uint64, len(r.moduli))
	for i := range r.moduli {
		primes[i] = r.moduli[i].Q
	}
	return
}

// PrimeCount returns the number of primes of the ring.
func (r *Ring) PrimeCount() int {
	return len(r.moduli)
}

// Modulus returns the constants of the i-th prime.
func (r *Ring) Modulus(i int) *Modulus {
	return r.moduli[i]
}

// AllPrimes returns the IndexSet of all the primes of the ring.
func (r *Ring) AllPrimes() IndexSet {
	return Interval(0, len(r.moduli)-1)
}

// Valid returns true if all indices of the set are primes of the ring.
func (r *Ring) Valid(set IndexSet) bool {
	return set.First() >= 0 && set.Last() < len(r.moduli)
}

// Moduli returns the primes of the given set in increasing index order.
func (r *Ring) Moduli(set IndexSet) (moduli []uint64) {
	for _, i := range set.idx {
		moduli = append(moduli, r.moduli[i].Q)
	}
	return
}

// ModulusBigInt returns the product of the primes of the set.
func (r *Ring) ModulusBigInt(set IndexSet) *big.Int {
	return bignum.Product(r.Moduli(set))
}

// LogModulus returns log2 of the product of the primes of the set.
func (r *Ring) LogModulus(set IndexSet) float64 {
	if set.IsEmpty() {
		return 0
	}
	return bignum.Log2(r.ModulusBigInt(set))
}

// InvModulus returns q_i^-1 mod q_j.
func (r *Ring) InvModulus(i, j int) uint64 {
	return r.inv[[2]int{i, j}]
}

// ProductModulus returns prod_{i in set} q_i mod q_j.
func (r *Ring) ProductModulus(set IndexSet, j int) (prod uint64) {
	mj := r.moduli[j]
	prod = 1
	for _, i := range set.idx {
		prod = mj.MulMod(prod, mj.Reduce(r.moduli[i].Q))
	}
	return
}

// GaloisElement returns 5^k mod 2N, the Galois element of a rotation by k
// positions. Negative k are supported.
func (r *Ring) GaloisElement(k int) uint64 {
	mask := r.NthRoot() - 1
	half := int(r.n >> 1)
	k %= half
	if k < 0 {
		k += half
	}
	galEl := uint64(1)
	for x, e := uint64(5), uint64(k); e > 0; e >>= 1 {
		if e&1 == 1 {
			galEl = (galEl * x) & mask
		}
		x = (x * x) & mask
	}
	return galEl
}

// GaloisElementForConjugate returns 2N-1.
func (r *Ring) GaloisElementForConjugate() uint64 {
	return r.NthRoot() - 1
}

// GaloisElementInverse returns galEl^-1 mod 2N.
func (r *Ring) GaloisElementInverse(galEl uint64) uint64 {
	mask := r.NthRoot() - 1
	// the group of units mod 2N has exponent N/2 (or 1, 2 for tiny N)
	inv := uint64(1)
	for x, e := galEl&mask, uint64(r.n>>1)-1; e > 0; e >>= 1 {
		if e&1 == 1 {
			inv = (inv * x) & mask
		}
		x = (x * x) & mask
	}
	return inv
}

func (r *Ring) work(set IndexSet) int {
	return r.n * set.Len()
}
