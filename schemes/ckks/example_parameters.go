package ckks

import (
	"github.com/tuneinsight/hetile/core/rlwe"
)

var (
	// ExampleParametersM32768 is a CKKS context with N=16384 and 8 chain primes,
	// a 55-bit first prime and a default scale of 2^45.
	ExampleParametersM32768 = rlwe.ContextLiteral{
		Scheme:          rlwe.CKKS,
		M:               1 << 15,
		LogQ:            []int{55, 45, 45, 45, 45, 45, 45, 45},
		LogSpecial:      []int{61, 61},
		LogDefaultScale: 45,
	}

	// ExampleParametersMatrix is a small CKKS context with N=512, for
	// the matrix examples and tests. It is not secure.
	ExampleParametersMatrix = rlwe.ContextLiteral{
		Scheme:          rlwe.CKKS,
		M:               1 << 10,
		LogQ:            []int{55, 40, 40, 40, 40, 40},
		LogSpecial:      []int{60, 60},
		LogDefaultScale: 40,
	}
)
