// Package bignum implements arbitrary precision arithmetic helpers on top of math/big.
package bignum

import (
	"math/big"
)

// DivRound sets i to round(a/b), rounding half away from zero, and returns i.
func DivRound(a, b, i *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	r.Lsh(r.Abs(r), 1)
	if r.CmpAbs(b) >= 0 {
		if a.Sign() == b.Sign() {
			q.Add(q, big.NewInt(1))
		} else {
			q.Sub(q, big.NewInt(1))
		}
	}
	return i.Set(q)
}

// Center sets x to its representative in [-Q/2, Q/2) and returns it.
func Center(x, Q *big.Int) *big.Int {
	x.Mod(x, Q)
	if new(big.Int).Lsh(x, 1).Cmp(Q) >= 0 {
		x.Sub(x, Q)
	}
	return x
}

// Product returns the product of the given moduli.
func Product(moduli []uint64) (prod *big.Int) {
	prod = big.NewInt(1)
	for _, qi := range moduli {
		prod.Mul(prod, new(big.Int).SetUint64(qi))
	}
	return
}
