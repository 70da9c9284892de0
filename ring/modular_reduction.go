package ring

import (
	"math/big"
	"math/bits"
)

//============================
//=== MONTGOMERY REDUCTION ===
//============================

// MForm returns a*2^64 mod q.
func MForm(a, q uint64, u [2]uint64) (r uint64) {
	mhi, _ := bits.Mul64(a, u[1])
	r = -(a*u[0] + mhi) * q
	if r >= q {
		r -= q
	}
	return
}

// InvMForm returns a*(1/2^64) mod q.
func InvMForm(a, q, qInv uint64) (r uint64) {
	r, _ = bits.Mul64(a*qInv, q)
	r = q - r
	if r >= q {
		r -= q
	}
	return
}

// GenMRedConstant computes the constant qInv = (q^-1) mod 2^64
// required for MRed.
func GenMRedConstant(q uint64) (qInv uint64) {
	qInv = 1
	x := q
	for i := 0; i < 63; i++ {
		qInv *= x
		x *= x
	}
	return
}

// MRed computes x * y * (1/2^64) mod q.
// x and y must be smaller than 2q.
func MRed(x, y, q, qInv uint64) (r uint64) {
	ahi, alo := bits.Mul64(x, y)
	R := alo * qInv
	H, _ := bits.Mul64(R, q)
	r = ahi - H + q
	if r >= q {
		r -= q
	}
	return
}

//==========================
//=== BARRETT REDUCTION  ===
//==========================

// GenBRedConstant computes the constant floor(2^128/q) split
// in its high and low 64-bit words, required for BRed and BRedAdd.
func GenBRedConstant(q uint64) (u [2]uint64) {
	bigR := new(big.Int).Lsh(big.NewInt(1), 128)
	bigR.Quo(bigR, new(big.Int).SetUint64(q))
	u[1] = bigR.Uint64()
	u[0] = bigR.Rsh(bigR, 64).Uint64()
	return
}

// BRedAdd reduces a 64 bit integer by q.
func BRedAdd(x, q uint64, u [2]uint64) (r uint64) {
	s0, _ := bits.Mul64(x, u[0])
	r = x - s0*q
	if r >= q {
		r -= q
	}
	return
}

// BRed computes x*y mod q with a Barrett reduction.
func BRed(x, y, q uint64, u [2]uint64) (r uint64) {

	var lhi, mhi, mlo, s0, s1, carry uint64

	ahi, alo := bits.Mul64(x, y)

	// (alo*ulo)>>64
	lhi, _ = bits.Mul64(alo, u[1])

	// ((ahi*ulo + alo*uhi) + (alo*ulo))>>64
	mhi, mlo = bits.Mul64(alo, u[0])
	s0, carry = bits.Add64(mlo, lhi, 0)
	s1 = mhi + carry

	mhi, mlo = bits.Mul64(ahi, u[1])
	_, carry = bits.Add64(mlo, s0, 0)
	lhi = mhi + carry

	s0 = ahi*u[0] + s1 + lhi

	r = alo - s0*q

	if r >= q {
		r -= q
	}

	return
}

// CRed returns a mod q for a in [0, 2q-1].
func CRed(a, q uint64) uint64 {
	if a >= q {
		return a - q
	}
	return a
}

//=========================
//=== MODULAR HELPERS   ===
//=========================

// ModExp performs the modular exponentiation x^e mod q.
func ModExp(x, e, q uint64) (result uint64) {
	u := GenBRedConstant(q)
	result = 1
	x %= q
	for e > 0 {
		if e&1 == 1 {
			result = BRed(result, x, q, u)
		}
		x = BRed(x, x, q, u)
		e >>= 1
	}
	return
}

// ModInverse returns x^-1 mod q for q prime.
func ModInverse(x, q uint64) uint64 {
	return ModExp(x, q-2, q)
}

// Centered returns the representative of x mod q in (-q/2, q/2].
func Centered(x, q uint64) int64 {
	if x > q>>1 {
		return int64(x) - int64(q)
	}
	return int64(x)
}

// FromCentered returns x mod q for a signed x.
func FromCentered(x int64, q uint64) uint64 {
	if x < 0 {
		r := uint64(-x) % q
		if r == 0 {
			return 0
		}
		return q - r
	}
	return uint64(x) % q
}
