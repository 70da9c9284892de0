package ring

import (
	"math"

	"github.com/tuneinsight/hetile/utils/concurrency"
)

// ExtendBasis takes the coefficient form residues of an element modulo the primes of
// from and returns its coefficient form residues modulo the primes of to. The value
// extended is the centered representative in [-Q/2, Q/2] of the element modulo
// Q = prod_{i in from} q_i, computed with the fast basis extension
//
//	x = sum_k y_k * (Q/q_k) - v * Q, with y_k = [x * (Q/q_k)^-1]_{q_k} and v = round(sum_k y_k/q_k),
//
// where v is evaluated in floating point. The result may be off by a multiple of Q
// for coefficients close to Q/2.
func (r *Ring) ExtendBasis(from IndexSet, coeffs [][]uint64, to IndexSet) (out [][]uint64) {

	N := r.n
	src := from.idx

	// [(Q/q_k)^-1]_{q_k}
	QHatInv := make([]uint64, len(src))
	qf := make([]float64, len(src))
	for k, i := range src {
		QHatInv[k] = ModInverse(r.ProductModulus(from.Remove(i), i), r.moduli[i].Q)
		qf[k] = float64(r.moduli[i].Q)
	}

	y := make([][]uint64, len(src))
	concurrency.ParallelFor(len(src), r.work(from), parallelThreshold, func(k int) {
		m := r.moduli[src[k]]
		y[k] = make([]uint64, N)
		for j, c := range coeffs[k] {
			y[k][j] = m.MulMod(c, QHatInv[k])
		}
	})

	v := make([]int64, N)
	for j := range v {
		var s float64
		for k := range src {
			s += float64(y[k][j]) / qf[k]
		}
		v[j] = int64(math.Round(s))
	}

	out = make([][]uint64, to.Len())
	concurrency.ParallelFor(to.Len(), r.work(to)*len(src), parallelThreshold, func(l int) {

		i := to.idx[l]
		m := r.moduli[i]
		q := m.Q

		if pos := from.Position(i); pos >= 0 {
			out[l] = append([]uint64{}, coeffs[pos]...)
			return
		}

		// [Q/q_k]_{p}, [Q]_{p}
		QHat := make([]uint64, len(src))
		for k, s := range src {
			QHat[k] = r.ProductModulus(from.Remove(s), i)
		}
		QModP := r.ProductModulus(from, i)

		row := make([]uint64, N)
		for j := range row {
			var acc uint64
			for k := range src {
				acc = CRed(acc+m.MulMod(m.Reduce(y[k][j]), QHat[k]), q)
			}
			vj := m.MulMod(FromCentered(v[j], q), QModP)
			row[j] = CRed(acc+q-vj, q)
		}
		out[l] = row
	})

	return
}
