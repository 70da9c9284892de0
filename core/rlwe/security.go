package rlwe

import (
	"github.com/tuneinsight/hetile/ring"
)

const (
	// XsUniformTernary is the standard deviation of a ternary key with uniform distribution
	XsUniformTernary = 0.816496580927726 //Sqrt(2/3)

	// DefaultNoise is the default standard deviation of the error
	DefaultNoise = 3.2

	// DefaultNoiseBound is the default bound of the error, six standard deviations
	DefaultNoiseBound = 19.2
)

var (
	// DefaultXe is the default discrete Gaussian distribution.
	DefaultXe = ring.DiscreteGaussian{Sigma: DefaultNoise, Bound: DefaultNoiseBound}

	// DefaultXs is the default ternary distribution.
	DefaultXs = ring.Ternary{P: 2 / 3.0}
)

// linear fit of the security of dense-key RLWE as a function of N/log2(QP)
const (
	securitySlope     = 7.2
	securityIntercept = 110
)

// EstimateSecurity returns the estimated security in bits of an RLWE
// instance of degree N and modulus of logQP bits, or 0 below the
// range of the estimate.
func EstimateSecurity(N int, logQP float64) float64 {
	if logQP <= 0 {
		return 0
	}
	if s := securitySlope*float64(N)/logQP - securityIntercept; s > 0 {
		return s
	}
	return 0
}

// SecurityLevel returns the estimated security of the context in bits,
// from the ring degree and the size of the largest modulus Q*P.
func (ctx *Context) SecurityLevel() float64 {
	return EstimateSecurity(ctx.N(), ctx.LogQ(ctx.FullPrimes()))
}
