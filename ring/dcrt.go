package ring

import (
	"fmt"
	"math/big"

	"github.com/tuneinsight/hetile/utils/bignum"
	"github.com/tuneinsight/hetile/utils/concurrency"
)

// DoubleCRT is an element of Z[X]/(X^N+1) represented by its residues
// modulo each prime of an IndexSet, in evaluation (NTT) form.
// A coefficient form of the residues is computed on demand and cached
// until the next mutation.
//
// A DoubleCRT is not safe for concurrent mutation.
type DoubleCRT struct {
	ring   *Ring
	set    IndexSet
	eval   [][]uint64
	coeffs [][]uint64
}

// NewDoubleCRT allocates the zero element over the primes of set.
func NewDoubleCRT(r *Ring, set IndexSet) *DoubleCRT {
	if !r.Valid(set) {
		panic(fmt.Errorf("cannot NewDoubleCRT: invalid index set %v for a ring with %d primes", set, r.PrimeCount()))
	}
	d := &DoubleCRT{ring: r, set: set, eval: make([][]uint64, set.Len())}
	for k := range d.eval {
		d.eval[k] = make([]uint64, r.n)
	}
	return d
}

// NewDoubleCRTFromInt64 returns the element with the given signed coefficients.
// Missing coefficients are zero.
func NewDoubleCRTFromInt64(r *Ring, set IndexSet, coeffs []int64) *DoubleCRT {
	d := NewDoubleCRT(r, set)
	d.SetInt64(coeffs)
	return d
}

// NewDoubleCRTFromBigInt returns the element with the given coefficients,
// taken modulo every prime. nil entries are zero.
func NewDoubleCRTFromBigInt(r *Ring, set IndexSet, coeffs []*big.Int) *DoubleCRT {
	d := NewDoubleCRT(r, set)
	d.SetBigInt(coeffs)
	return d
}

// Ring returns the ring of the element.
func (d *DoubleCRT) Ring() *Ring {
	return d.ring
}

// IndexSet returns the primes over which the element is represented.
func (d *DoubleCRT) IndexSet() IndexSet {
	return d.set
}

// Residues returns the evaluation form residues modulo the i-th prime
// of the ring. The returned slice must not be modified.
func (d *DoubleCRT) Residues(i int) []uint64 {
	pos := d.set.Position(i)
	if pos < 0 {
		panic(fmt.Errorf("cannot Residues: prime %d not in %v", i, d.set))
	}
	return d.eval[pos]
}

func (d *DoubleCRT) invalidate() {
	d.coeffs = nil
}

// forEach runs f on every position of the index set.
func (d *DoubleCRT) forEach(f func(k int, m *Modulus)) {
	idx := d.set.idx
	concurrency.ParallelFor(len(idx), d.ring.work(d.set), parallelThreshold, func(k int) {
		f(k, d.ring.moduli[idx[k]])
	})
}

// SetInt64 sets the coefficients of the element.
func (d *DoubleCRT) SetInt64(coeffs []int64) {
	if len(coeffs) > d.ring.n {
		panic(fmt.Errorf("cannot SetInt64: %d coefficients for degree %d", len(coeffs), d.ring.n))
	}
	d.forEach(func(k int, m *Modulus) {
		row := d.eval[k]
		for i := range row {
			row[i] = 0
		}
		for i, c := range coeffs {
			row[i] = FromCentered(c, m.Q)
		}
		m.NTT(row)
	})
	d.invalidate()
}

// SetBigInt sets the coefficients of the element.
func (d *DoubleCRT) SetBigInt(coeffs []*big.Int) {
	if len(coeffs) > d.ring.n {
		panic(fmt.Errorf("cannot SetBigInt: %d coefficients for degree %d", len(coeffs), d.ring.n))
	}
	d.forEach(func(k int, m *Modulus) {
		row := d.eval[k]
		q := new(big.Int).SetUint64(m.Q)
		tmp := new(big.Int)
		for i := range row {
			row[i] = 0
			if i < len(coeffs) && coeffs[i] != nil {
				row[i] = tmp.Mod(coeffs[i], q).Uint64()
			}
		}
		m.NTT(row)
	})
	d.invalidate()
}

// SetCoeffs sets the element from coefficient form residues aligned
// with its index set. The rows are copied.
func (d *DoubleCRT) SetCoeffs(coeffs [][]uint64) {
	if len(coeffs) != d.set.Len() {
		panic(fmt.Errorf("cannot SetCoeffs: %d rows for %d primes", len(coeffs), d.set.Len()))
	}
	d.forEach(func(k int, m *Modulus) {
		copy(d.eval[k], coeffs[k])
		m.NTT(d.eval[k])
	})
	d.invalidate()
}

// Coeffs returns the coefficient form residues of the element aligned with
// its index set. The returned rows are cached and must not be modified.
func (d *DoubleCRT) Coeffs() [][]uint64 {
	if d.coeffs == nil {
		coeffs := make([][]uint64, len(d.eval))
		d.forEach(func(k int, m *Modulus) {
			coeffs[k] = append([]uint64{}, d.eval[k]...)
			m.INTT(coeffs[k])
		})
		d.coeffs = coeffs
	}
	return d.coeffs
}

// BigCoeffs returns the coefficients of the element reconstructed by CRT,
// in [-Q/2, Q/2) if centered is true and in [0, Q) otherwise.
func (d *DoubleCRT) BigCoeffs(centered bool) (coeffs []*big.Int) {

	rows := d.Coeffs()
	moduli := d.ring.Moduli(d.set)
	Q := bignum.Product(moduli)

	// basis[k] = (Q/q_k) * [(Q/q_k)^-1]_{q_k}
	basis := make([]*big.Int, len(moduli))
	for k, qk := range moduli {
		bigQk := new(big.Int).SetUint64(qk)
		QHat := new(big.Int).Quo(Q, bigQk)
		inv := new(big.Int).ModInverse(new(big.Int).Mod(QHat, bigQk), bigQk)
		basis[k] = inv.Mul(inv, QHat)
	}

	coeffs = make([]*big.Int, d.ring.n)
	tmp := new(big.Int)
	for i := range coeffs {
		c := new(big.Int)
		for k := range moduli {
			c.Add(c, tmp.Mul(tmp.SetUint64(rows[k][i]), basis[k]))
		}
		c.Mod(c, Q)
		if centered {
			bignum.Center(c, Q)
		}
		coeffs[i] = c
	}

	return
}

// Copy sets d to a deep copy of other, including its index set.
func (d *DoubleCRT) Copy(other *DoubleCRT) {
	if d == other {
		return
	}
	d.ring = other.ring
	d.set = other.set
	d.eval = make([][]uint64, len(other.eval))
	for k := range other.eval {
		d.eval[k] = append([]uint64{}, other.eval[k]...)
	}
	d.invalidate()
}

// CopyNew returns a deep copy of d.
func (d *DoubleCRT) CopyNew() *DoubleCRT {
	c := &DoubleCRT{}
	c.Copy(d)
	return c
}

// Equal returns true if d and other are the same element over the same primes.
func (d *DoubleCRT) Equal(other *DoubleCRT) bool {
	if !d.set.Equal(other.set) || d.ring.n != other.ring.n {
		return false
	}
	for k := range d.eval {
		for i := range d.eval[k] {
			if d.eval[k][i] != other.eval[k][i] {
				return false
			}
		}
	}
	return true
}

// IsZero returns true if all residues are zero.
func (d *DoubleCRT) IsZero() bool {
	for k := range d.eval {
		for _, c := range d.eval[k] {
			if c != 0 {
				return false
			}
		}
	}
	return true
}

// align returns views of op0 and op1 over a common index set. If the sets differ and
// matchIndexSets is true, copies of the operands are extended to the union of their sets.
func align(op0, op1 *DoubleCRT, matchIndexSets bool) (a, b *DoubleCRT, err error) {

	if op0.set.Equal(op1.set) {
		return op0, op1, nil
	}

	if !matchIndexSets {
		return nil, nil, fmt.Errorf("%w: %v and %v", ErrIndexSetMismatch, op0.set, op1.set)
	}

	union := op0.set.Union(op1.set)

	if a = op0; !a.set.Equal(union) {
		a = op0.CopyNew()
		if err = a.Extend(union); err != nil {
			return
		}
	}

	if b = op1; !b.set.Equal(union) {
		b = op1.CopyNew()
		if err = b.Extend(union); err != nil {
			return
		}
	}

	return
}

// resize sets the index set of the receiver, reallocating its rows if needed.
// The content of the receiver becomes undefined.
func (d *DoubleCRT) resize(r *Ring, set IndexSet) {
	if d.ring == r && d.set.Equal(set) {
		return
	}
	d.ring = r
	d.set = set
	eval := make([][]uint64, set.Len())
	for k := range eval {
		eval[k] = make([]uint64, r.n)
	}
	d.eval = eval
}

func (d *DoubleCRT) binary(op0, op1 *DoubleCRT, matchIndexSets bool, f func(x, y, z []uint64, m *Modulus)) (err error) {
	a, b, err := align(op0, op1, matchIndexSets)
	if err != nil {
		return fmt.Errorf("cannot apply binary operation: %w", err)
	}
	ae, be := a.eval, b.eval
	d.resize(a.ring, a.set)
	d.forEach(func(k int, m *Modulus) {
		f(ae[k], be[k], d.eval[k], m)
	})
	d.invalidate()
	return
}

// Add sets d to op0 + op1. If the index sets of the operands differ, the
// operation fails with ErrIndexSetMismatch unless matchIndexSets is true,
// in which case the result is over the union of the sets.
func (d *DoubleCRT) Add(op0, op1 *DoubleCRT, matchIndexSets bool) (err error) {
	return d.binary(op0, op1, matchIndexSets, func(x, y, z []uint64, m *Modulus) {
		for i := range z {
			z[i] = CRed(x[i]+y[i], m.Q)
		}
	})
}

// Sub sets d to op0 - op1, see Add.
func (d *DoubleCRT) Sub(op0, op1 *DoubleCRT, matchIndexSets bool) (err error) {
	return d.binary(op0, op1, matchIndexSets, func(x, y, z []uint64, m *Modulus) {
		q := m.Q
		for i := range z {
			z[i] = CRed(x[i]+q-y[i], q)
		}
	})
}

// Mul sets d to op0 * op1, see Add.
func (d *DoubleCRT) Mul(op0, op1 *DoubleCRT, matchIndexSets bool) (err error) {
	return d.binary(op0, op1, matchIndexSets, func(x, y, z []uint64, m *Modulus) {
		for i := range z {
			z[i] = m.MulMod(x[i], y[i])
		}
	})
}

// MulThenAdd sets d to d + op0 * op1. The three operands must share the same index set.
func (d *DoubleCRT) MulThenAdd(op0, op1 *DoubleCRT) (err error) {
	if !d.set.Equal(op0.set) || !d.set.Equal(op1.set) {
		return fmt.Errorf("cannot MulThenAdd: %w: %v, %v and %v", ErrIndexSetMismatch, d.set, op0.set, op1.set)
	}
	d.forEach(func(k int, m *Modulus) {
		x, y, z := op0.eval[k], op1.eval[k], d.eval[k]
		for i := range z {
			z[i] = CRed(z[i]+m.MulMod(x[i], y[i]), m.Q)
		}
	})
	d.invalidate()
	return
}

// Neg sets d to -op.
func (d *DoubleCRT) Neg(op *DoubleCRT) {
	src := op.eval
	d.resize(op.ring, op.set)
	d.forEach(func(k int, m *Modulus) {
		x, z := src[k], d.eval[k]
		for i := range z {
			if x[i] == 0 {
				z[i] = 0
			} else {
				z[i] = m.Q - x[i]
			}
		}
	})
	d.invalidate()
}

// MulScalar sets d to c * op.
func (d *DoubleCRT) MulScalar(op *DoubleCRT, c uint64) {
	d.MulScalarBigint(op, new(big.Int).SetUint64(c))
}

// MulScalarBigint sets d to c * op for a signed scalar c.
func (d *DoubleCRT) MulScalarBigint(op *DoubleCRT, c *big.Int) {
	src := op.eval
	d.resize(op.ring, op.set)
	d.forEach(func(k int, m *Modulus) {
		ck := new(big.Int).Mod(c, new(big.Int).SetUint64(m.Q)).Uint64()
		x, z := src[k], d.eval[k]
		for i := range z {
			z[i] = m.MulMod(x[i], ck)
		}
	})
	d.invalidate()
}

// AddScalarBigint sets d to op + c for a signed scalar c, that is, adds c
// to the constant coefficient.
func (d *DoubleCRT) AddScalarBigint(op *DoubleCRT, c *big.Int) {
	src := op.eval
	d.resize(op.ring, op.set)
	d.forEach(func(k int, m *Modulus) {
		// the evaluation of a constant is the constant itself
		ck := new(big.Int).Mod(c, new(big.Int).SetUint64(m.Q)).Uint64()
		x, z := src[k], d.eval[k]
		for i := range z {
			z[i] = CRed(x[i]+ck, m.Q)
		}
	})
	d.invalidate()
}

// AddScalar sets d to op + c.
func (d *DoubleCRT) AddScalar(op *DoubleCRT, c int64) {
	d.AddScalarBigint(op, big.NewInt(c))
}

// DropTo restricts the element to the primes of set, which must be a subset of its index set.
func (d *DoubleCRT) DropTo(set IndexSet) (err error) {

	if !d.set.ContainsSet(set) {
		return fmt.Errorf("cannot DropTo: %w: %v is not a subset of %v", ErrIndexSetMismatch, set, d.set)
	}

	eval := make([][]uint64, set.Len())
	var coeffs [][]uint64
	if d.coeffs != nil {
		coeffs = make([][]uint64, set.Len())
	}

	for k, i := range set.idx {
		pos := d.set.Position(i)
		eval[k] = d.eval[pos]
		if coeffs != nil {
			coeffs[k] = d.coeffs[pos]
		}
	}

	d.set, d.eval, d.coeffs = set, eval, coeffs

	return
}

// Extend adds to the element the residues modulo the primes of set that are missing. The
// new residues are computed from the coefficient form of the element, taking the centered
// representative of each coefficient modulo the product of the current primes.
func (d *DoubleCRT) Extend(set IndexSet) (err error) {

	if !set.ContainsSet(d.set) {
		return fmt.Errorf("cannot Extend: %w: %v is not a superset of %v", ErrIndexSetMismatch, set, d.set)
	}

	if !d.ring.Valid(set) {
		return fmt.Errorf("cannot Extend: invalid index set %v", set)
	}

	added := set.Difference(d.set)
	if added.IsEmpty() {
		return
	}

	ext := d.ring.ExtendBasis(d.set, d.Coeffs(), added)

	eval := make([][]uint64, set.Len())
	coeffs := make([][]uint64, set.Len())

	for k, i := range set.idx {
		if pos := d.set.Position(i); pos >= 0 {
			eval[k] = d.eval[pos]
			coeffs[k] = d.coeffs[pos]
		} else {
			row := ext[added.Position(i)]
			coeffs[k] = append([]uint64{}, row...)
			d.ring.moduli[i].NTT(row)
			eval[k] = row
		}
	}

	d.set, d.eval, d.coeffs = set, eval, coeffs

	return
}

// ScaleDown divides the element by the product P of the primes of drop and rounds, removing
// these primes from its index set. If t > 1, the rounding term is chosen to be a multiple of t
// so that the element is left unchanged modulo t up to the factor P^-1.
func (d *DoubleCRT) ScaleDown(drop IndexSet, t uint64) (err error) {

	if drop.IsEmpty() {
		return
	}

	if !d.set.ContainsSet(drop) {
		return fmt.Errorf("cannot ScaleDown: %w: %v is not a subset of %v", ErrIndexSetMismatch, drop, d.set)
	}

	keep := d.set.Difference(drop)
	if keep.IsEmpty() {
		return fmt.Errorf("cannot ScaleDown: %w: cannot drop all the primes of %v", ErrIndexSetMismatch, d.set)
	}

	r := d.ring

	// z = [x * (-t^-1)]_P, or [-x]_P for t <= 1
	coeffs := d.Coeffs()
	z := make([][]uint64, drop.Len())
	for k, i := range drop.idx {
		m := r.moduli[i]
		src := coeffs[d.set.Position(i)]
		c := m.Q - 1
		if t > 1 {
			c = m.Q - ModInverse(m.Reduce(t), m.Q)
		}
		z[k] = make([]uint64, r.n)
		for j := range src {
			z[k][j] = m.MulMod(src[j], c)
		}
	}

	// delta = t * z centered, extended to the remaining primes
	delta := r.ExtendBasis(drop, z, keep)

	eval := make([][]uint64, keep.Len())
	for k, i := range keep.idx {
		eval[k] = d.eval[d.set.Position(i)]
	}

	concurrency.ParallelFor(keep.Len(), r.work(keep), parallelThreshold, func(k int) {

		i := keep.idx[k]
		m := r.moduli[i]
		row := delta[k]

		if t > 1 {
			tm := m.Reduce(t)
			for j := range row {
				row[j] = m.MulMod(row[j], tm)
			}
		}

		m.NTT(row)

		PInv := ModInverse(r.ProductModulus(drop, i), m.Q)

		x := eval[k]
		for j := range x {
			x[j] = m.MulMod(CRed(x[j]+row[j], m.Q), PInv)
		}
	})

	d.set, d.eval = keep, eval
	d.invalidate()

	return
}

// DivideByPrime divides the element by its i-th prime with rounding, see ScaleDown.
func (d *DoubleCRT) DivideByPrime(i int, t uint64) (err error) {
	return d.ScaleDown(NewIndexSet(i), t)
}

// InfNormLog2 returns log2 of the infinity norm of the centered coefficients, or 0 for the zero element.
func (d *DoubleCRT) InfNormLog2() float64 {
	max := new(big.Int)
	for _, c := range d.BigCoeffs(true) {
		if c.CmpAbs(max) > 0 {
			max.Abs(c)
		}
	}
	if max.Sign() == 0 {
		return 0
	}
	return bignum.Log2(max)
}

// AddResidues adds op to d modulo the primes of op only, leaving the other
// residues of d unchanged. The index set of op must be a subset of the index set of d.
func (d *DoubleCRT) AddResidues(op *DoubleCRT) (err error) {
	if !d.set.ContainsSet(op.set) {
		return fmt.Errorf("cannot AddResidues: %w: %v is not a subset of %v", ErrIndexSetMismatch, op.set, d.set)
	}
	for k, i := range op.set.idx {
		q := d.ring.moduli[i].Q
		x, z := op.eval[k], d.eval[d.set.Position(i)]
		for j := range z {
			z[j] = CRed(z[j]+x[j], q)
		}
	}
	d.invalidate()
	return
}
