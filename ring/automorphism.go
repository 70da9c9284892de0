package ring

import (
	"fmt"

	"github.com/tuneinsight/hetile/utils"
)

// AutomorphismNTTIndex returns the permutation of the evaluation form
// induced by X -> X^galEl: out[i] = in[index[i]].
func (r *Ring) AutomorphismNTTIndex(galEl uint64) (index []int) {

	mask := r.NthRoot() - 1
	logN := r.logN

	index = make([]int, r.n)
	for i := range index {
		e := 2*utils.BitReverse64(i, logN) + 1
		e = (e * galEl) & mask
		index[i] = int(utils.BitReverse64((e-1)>>1, logN))
	}

	return
}

// Automorphism sets d to op(X^galEl). galEl must be odd.
func (d *DoubleCRT) Automorphism(op *DoubleCRT, galEl uint64) {

	if galEl&1 == 0 {
		panic(fmt.Errorf("cannot Automorphism: galEl=%d is even", galEl))
	}

	index := op.ring.AutomorphismNTTIndex(galEl)

	src := op.eval
	if d == op {
		src = make([][]uint64, len(op.eval))
		for k := range op.eval {
			src[k] = append([]uint64{}, op.eval[k]...)
		}
	}

	d.resize(op.ring, op.set)
	d.forEach(func(k int, m *Modulus) {
		x, z := src[k], d.eval[k]
		for i, j := range index {
			z[i] = x[j]
		}
	})
	d.invalidate()
}

// Conjugate sets d to op(X^-1), which conjugates the complex slots of CKKS
// and swaps the two rows of the BGV hypercube.
func (d *DoubleCRT) Conjugate(op *DoubleCRT) {
	d.Automorphism(op, op.ring.GaloisElementForConjugate())
}
