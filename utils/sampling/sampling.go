// Package sampling implements secure sampling of bytes and integers.
package sampling

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
)

// RandUint64 return a random value between 0 and 0xFFFFFFFFFFFFFFFF.
func RandUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint64(b[:])
}

// RandFloat64 returns a random float between min and max.
func RandFloat64(min, max float64) float64 {
	f := float64(RandUint64()>>11) / (1 << 53)
	return min + f*(max-min)
}

// RandInt generates a random Int in [0, max-1].
func RandInt(max *big.Int) (n *big.Int) {
	var err error
	if n, err = rand.Int(rand.Reader, max); err != nil {
		panic(err)
	}
	return
}

// ReadUint64 reads an uint64 from prng.
func ReadUint64(prng PRNG) uint64 {
	var b [8]byte
	if _, err := prng.Read(b[:]); err != nil {
		// Sanity check, this error should not happen.
		panic(err)
	}
	return binary.LittleEndian.Uint64(b[:])
}
