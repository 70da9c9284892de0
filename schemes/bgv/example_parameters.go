package bgv

import (
	"github.com/tuneinsight/hetile/core/rlwe"
)

var (
	// ExampleParametersM32768P65537 is an example parameter set with M=2^15 (N=2^14 slots),
	// the 17-bit plaintext prime 65537 and a 416-bit chain of eight primes, offering about
	// 128 bits of security.
	ExampleParametersM32768P65537 = rlwe.ContextLiteral{
		Scheme:     rlwe.BGV,
		M:          1 << 15,
		P:          65537,
		LogQ:       []int{56, 45, 45, 45, 45, 45, 45, 45},
		LogSpecial: []int{60, 60},
	}

	// ExampleParametersDatabase is a toy parameter set for encrypted lookups with
	// equality tests based on x^(p-1): M=256 (128 slots) and p=257, with enough
	// levels for the exponentiation and the product over all the slots.
	// It is not secure and only meant for demonstration purposes.
	ExampleParametersDatabase = rlwe.ContextLiteral{
		Scheme:     rlwe.BGV,
		M:          256,
		P:          257,
		LogQ:       []int{50, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40},
		LogSpecial: []int{60, 60},
	}
)
