package rlwe

import (
	"math"
	"math/big"

	"github.com/tuneinsight/hetile/utils"
	"github.com/tuneinsight/hetile/utils/bignum"
)

// Heuristic estimates of log2 of the infinity norm of the decryption of
// ciphertexts. The bound of a product of two random polynomials of norms
// a and b is taken as sqrt(N)*a*b, and samples are bounded by six
// standard deviations.

const log2BoundFactor = 2.584962500721156 // log2(6)

// log2Sum returns log2(2^a + 2^b).
func log2Sum(a, b float64) float64 {
	switch {
	case math.IsInf(a, -1):
		return b
	case math.IsInf(b, -1):
		return a
	}
	hi, lo := utils.Max(a, b), utils.Min(a, b)
	return hi + math.Log2(1+math.Exp2(lo-hi))
}

func log2BigAbs(c *big.Int) float64 {
	if c.Sign() == 0 {
		return math.Inf(-1)
	}
	return bigLog2(new(big.Int).Abs(c))
}

func bigLog2(c *big.Int) float64 {
	if c.BitLen() < 53 {
		return math.Log2(float64(c.Int64()))
	}
	return bignum.Log2(c)
}

func (ctx *Context) log2SqrtN() float64 {
	return 0.5 * float64(ctx.LogN())
}

func (ctx *Context) log2T() float64 {
	return math.Log2(float64(ctx.t))
}

// log2Secret is log2 of the bound of a product with the secret key.
func (ctx *Context) log2Secret() float64 {
	return log2BoundFactor + ctx.log2SqrtN() + math.Log2(ctx.xs.StandardDeviation(ctx.N()))
}

func (ctx *Context) log2Error() float64 {
	return log2BoundFactor + math.Log2(ctx.xe.StandardDeviation(ctx.N()))
}

// noiseSecretKeyEncryption is the bound of t*e.
func (ctx *Context) noiseSecretKeyEncryption() float64 {
	return ctx.log2T() + ctx.log2Error()
}

// noisePublicKeyEncryption is the bound of t*(e*u + e0 + e1*s).
func (ctx *Context) noisePublicKeyEncryption() float64 {
	return ctx.log2T() + ctx.log2Error() + math.Log2(1+2*math.Exp2(ctx.log2Secret()))
}

// noiseProduct is the bound of the product of two decryptions.
func (ctx *Context) noiseProduct(a, b float64) float64 {
	return a + b + ctx.log2SqrtN()
}

// noiseRounding is the bound of the rounding error of a division of a
// ciphertext with parts of the given powers.
func (ctx *Context) noiseRounding(parts []CtxtPart) float64 {
	var acc float64
	for _, p := range parts {
		acc += math.Exp2(float64(p.Handle.Power) * ctx.log2Secret())
	}
	return ctx.log2T() - 1 + math.Log2(acc)
}

// noiseKeySwitch is the bound of the noise added by a key switching at the given level.
func (ctx *Context) noiseKeySwitch(level int) float64 {

	set := ctx.LevelSet(level)

	var maxDigit float64
	var count int
	for _, digit := range ctx.digits {
		if d := digit.Intersection(set); !d.IsEmpty() {
			maxDigit = utils.Max(maxDigit, ctx.LogQ(d))
			count++
		}
	}

	ks := math.Log2(float64(count)) + maxDigit - 1 + ctx.log2Error() + ctx.log2SqrtN() + ctx.log2T() - ctx.LogQ(ctx.special)

	return log2Sum(ks, ctx.noiseRounding([]CtxtPart{{Handle: OneHandle()}, {Handle: BaseHandle(0)}}))
}

// noiseRescale is the bound after the division by the prime q.
func (ctx *Context) noiseRescale(noise float64, q uint64, parts []CtxtPart) float64 {
	return log2Sum(noise-math.Log2(float64(q)), ctx.noiseRounding(parts))
}
