package hebase

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/tuneinsight/hetile/core/rlwe"
)

// ConfigRequirement describes an HeContext by the properties it must offer
// instead of by its parameters.
type ConfigRequirement struct {
	// SecurityLevel is the minimum estimated security in bits.
	SecurityLevel int

	// IntegerPartPrecision and FractionalPartPrecision are the bits of the
	// integer and fractional parts of CKKS values.
	IntegerPartPrecision    int
	FractionalPartPrecision int

	// NumSlots is the minimum number of slots, or -1 for any.
	NumSlots int

	// MultiplicationDepth is the number of rescalings the chain must allow,
	// or -1 for the default depth.
	MultiplicationDepth int

	// PlaintextPrime is the plaintext modulus of BGV contexts.
	PlaintextPrime uint64
}

// DefaultConfigRequirement returns the requirement of 128-bit security, 10
// bits of integer precision and 38 bits of fractional precision.
func DefaultConfigRequirement() ConfigRequirement {
	return ConfigRequirement{
		SecurityLevel:           128,
		IntegerPartPrecision:    10,
		FractionalPartPrecision: 38,
		NumSlots:                -1,
		MultiplicationDepth:     -1,
		PlaintextPrime:          65537,
	}
}

const (
	minLogM      = 5
	maxLogM      = 17
	maxLogPrime  = 61
	defaultDepth = 3
)

// LiteralFromRequirement returns the literal of the smallest context of the
// scheme that satisfies req. It fails with rlwe.ErrConfiguration if no
// supported context does.
func LiteralFromRequirement(scheme rlwe.Scheme, req ConfigRequirement) (lit rlwe.ContextLiteral, err error) {

	depth := req.MultiplicationDepth
	if depth < 0 {
		depth = defaultDepth
	}

	var logQ []int
	maxM := 1 << maxLogM

	switch scheme {
	case rlwe.CKKS:

		frac, integer := req.FractionalPartPrecision, req.IntegerPartPrecision

		if frac < 10 || integer < 1 || frac+integer > maxLogPrime {
			return lit, fmt.Errorf("%w: precision of %d.%d bits is not supported", rlwe.ErrConfiguration, integer, frac)
		}

		logQ = append(logQ, frac+integer)
		for i := 0; i < depth; i++ {
			logQ = append(logQ, frac)
		}

		lit = rlwe.ContextLiteral{Scheme: rlwe.CKKS, LogDefaultScale: frac}

	case rlwe.BGV:

		p := req.PlaintextPrime
		if p < 3 || !new(big.Int).SetUint64(p).ProbablyPrime(20) {
			return lit, fmt.Errorf("%w: plaintext modulus %d is not an odd prime", rlwe.ErrConfiguration, p)
		}

		level := bits.Len64(p) + 32
		if level > maxLogPrime-1 {
			return lit, fmt.Errorf("%w: plaintext modulus %d is too large", rlwe.ErrConfiguration, p)
		}

		logQ = append(logQ, level+1)
		for i := 0; i < depth; i++ {
			logQ = append(logQ, level)
		}

		// the slots split in linear factors only if M divides p-1.
		maxM = 1 << bits.TrailingZeros64(p-1)
		if maxM > 1<<maxLogM {
			maxM = 1 << maxLogM
		}

		lit = rlwe.ContextLiteral{Scheme: rlwe.BGV, P: p}

	default:
		return lit, fmt.Errorf("%w: unknown scheme %v", rlwe.ErrConfiguration, scheme)
	}

	logSpecial := []int{maxLogPrime}

	logQP := float64(maxLogPrime)
	for _, l := range logQ {
		logQP += float64(l)
	}

	M := 1 << minLogM
	if req.NumSlots > 0 {
		slotsPerN := 2
		if scheme == rlwe.CKKS {
			slotsPerN = 4
		}
		for M < slotsPerN*req.NumSlots {
			M <<= 1
		}
	}

	for M <= maxM && rlwe.EstimateSecurity(M>>1, logQP) < float64(req.SecurityLevel) {
		M <<= 1
	}

	if M > maxM {
		return lit, fmt.Errorf("%w: no cyclotomic index up to %d offers %d bits of security with %d slots and depth %d", rlwe.ErrConfiguration, maxM, req.SecurityLevel, req.NumSlots, depth)
	}

	lit.M = M
	lit.LogQ = logQ
	lit.LogSpecial = logSpecial

	return
}

// IsConfigRequirementFeasible returns true if a context of the scheme can satisfy req.
func IsConfigRequirementFeasible(scheme rlwe.Scheme, req ConfigRequirement) bool {
	_, err := LiteralFromRequirement(scheme, req)
	return err == nil
}

// NewHeContextFromRequirement creates an HeContext, with fresh keys, from the
// smallest context of the scheme that satisfies req.
func NewHeContextFromRequirement(scheme rlwe.Scheme, req ConfigRequirement, rotations ...int) (he *HeContext, err error) {

	var lit rlwe.ContextLiteral
	if lit, err = LiteralFromRequirement(scheme, req); err != nil {
		return
	}

	var ctx *rlwe.Context
	if ctx, err = rlwe.NewContextFromLiteral(lit); err != nil {
		return
	}

	return NewHeContext(ctx, rotations...)
}
