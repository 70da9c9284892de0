package ring

import (
	"fmt"
	"math/big"
	"math/bits"
)

// IsPrime applies the Baillie-PSW test, which is 100% accurate for numbers below 2^64.
func IsPrime(x uint64) bool {
	return new(big.Int).SetUint64(x).ProbablyPrime(0)
}

// GenerateNTTPrimes generates n distinct NthRoot NTT-friendly primes (q = 1 mod NthRoot)
// close to 2^logQ, alternating upward and downward. For logQ = 61 only primes
// below 2^61 are considered.
func GenerateNTTPrimes(logQ, NthRoot, n int) (primes []uint64, err error) {

	if logQ < 2 || logQ > 61 {
		return nil, fmt.Errorf("cannot GenerateNTTPrimes: logQ=%d must be between 2 and 61", logQ)
	}

	if n <= 0 {
		return
	}

	step := uint64(NthRoot)
	pow2 := uint64(1) << logQ

	up, down := pow2+1, pow2+1
	checkUp, checkDown := logQ < 61, true

	for checkUp || checkDown {

		if checkUp {
			if up += step; bits.Len64(up) > 61 {
				checkUp = false
			} else if IsPrime(up) {
				if primes = append(primes, up); len(primes) == n {
					return
				}
			}
		}

		if checkDown {
			if down <= step || bits.Len64(down-step) < logQ {
				checkDown = false
			} else if down -= step; IsPrime(down) {
				if primes = append(primes, down); len(primes) == n {
					return
				}
			}
		}
	}

	return nil, fmt.Errorf("cannot GenerateNTTPrimes: not enough primes of %d bits that are 1 mod %d", logQ, NthRoot)
}

// NextNTTPrime returns the next NthRoot NTT prime after q.
func NextNTTPrime(q uint64, NthRoot int) (qNext uint64, err error) {

	qNext = q + uint64(NthRoot)

	for !IsPrime(qNext) {

		qNext += uint64(NthRoot)

		if bits.Len64(qNext) > 61 {
			return 0, fmt.Errorf("next NTT prime exceeds the maximum bit-size of 61 bits")
		}
	}

	return qNext, nil
}

// PreviousNTTPrime returns the previous NthRoot NTT prime before q.
func PreviousNTTPrime(q uint64, NthRoot int) (qPrev uint64, err error) {

	if q <= uint64(NthRoot) {
		return 0, fmt.Errorf("previous NTT prime is smaller than NthRoot")
	}

	qPrev = q - uint64(NthRoot)

	for !IsPrime(qPrev) {

		if qPrev <= uint64(NthRoot) {
			return 0, fmt.Errorf("previous NTT prime is smaller than NthRoot")
		}

		qPrev -= uint64(NthRoot)
	}

	return qPrev, nil
}

// PrimitiveNthRoot returns a primitive NthRoot-th root of unity modulo q,
// for NthRoot a power of two dividing q-1. Candidates are tried in
// increasing order so the result is deterministic.
func PrimitiveNthRoot(q uint64, NthRoot int) (root uint64, err error) {

	if NthRoot < 2 || NthRoot&(NthRoot-1) != 0 {
		return 0, fmt.Errorf("cannot PrimitiveNthRoot: NthRoot=%d is not a power of two", NthRoot)
	}

	if (q-1)%uint64(NthRoot) != 0 {
		return 0, fmt.Errorf("cannot PrimitiveNthRoot: q=%d is not 1 mod %d", q, NthRoot)
	}

	exp := (q - 1) / uint64(NthRoot)
	half := uint64(NthRoot >> 1)

	// root is a primitive NthRoot-th root iff root^(NthRoot/2) = -1.
	for x := uint64(2); x < q; x++ {
		if root = ModExp(x, exp, q); ModExp(root, half, q) == q-1 {
			return root, nil
		}
	}

	return 0, fmt.Errorf("cannot PrimitiveNthRoot: no root found modulo %d", q)
}
