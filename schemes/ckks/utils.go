package ckks

import (
	"math"
	"math/big"
)

// GetRootsComplex128 returns the roots e^{2*pi*i*j/NthRoot} for 0 <= j <= NthRoot.
func GetRootsComplex128(NthRoot int) (roots []complex128) {

	roots = make([]complex128, NthRoot+1)

	quarm := NthRoot >> 2

	angle := 2 * math.Pi / float64(NthRoot)

	for i := 0; i < quarm; i++ {
		roots[i] = complex(math.Cos(angle*float64(i)), 0)
	}

	// sin(x) = cos(pi/2 - x)
	for i := 0; i < quarm; i++ {
		roots[quarm-i] += complex(0, real(roots[i]))
	}

	for i := 1; i < quarm+1; i++ {
		roots[i+1*quarm] = complex(-real(roots[quarm-i]), imag(roots[quarm-i]))
		roots[i+2*quarm] = -roots[i]
		roots[i+3*quarm] = complex(real(roots[quarm-i]), -imag(roots[quarm-i]))
	}

	roots[NthRoot] = roots[0]

	return
}

// maxInt64Float is 2^62, below which a rounded float64 fits an int64 with room for the sign.
const maxInt64Float = 4.611686018427388e+18

// toFixedPoint returns round(value * scale), rounding half away from zero.
func toFixedPoint(value, scale float64) *big.Int {

	x := value * scale

	if math.Abs(x) < maxInt64Float {
		return big.NewInt(int64(math.Round(x)))
	}

	f := new(big.Float).SetFloat64(value)
	f.Mul(f, new(big.Float).SetFloat64(scale))

	if f.Sign() < 0 {
		f.Sub(f, big.NewFloat(0.5))
	} else {
		f.Add(f, big.NewFloat(0.5))
	}

	i, _ := f.Int(nil)

	return i
}

// fromFixedPoint returns c / scale.
func fromFixedPoint(c *big.Int, scale float64) float64 {
	if c.IsInt64() {
		return float64(c.Int64()) / scale
	}
	f := new(big.Float).SetInt(c)
	f.Quo(f, new(big.Float).SetFloat64(scale))
	v, _ := f.Float64()
	return v
}
