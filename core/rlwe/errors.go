package rlwe

import (
	"errors"

	"github.com/tuneinsight/hetile/ring"
)

var (
	// ErrConfiguration is returned when the parameters of a Context are inconsistent.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrIndexSetMismatch is returned when the operands of a ring operation
	// are not over the same primes and no alignment was requested.
	ErrIndexSetMismatch = ring.ErrIndexSetMismatch

	// ErrLevelMismatch is returned when the operands of a binary operation
	// are not at the same level.
	ErrLevelMismatch = errors.New("level mismatch")

	// ErrCapacityExhausted is returned when an operation needs a chain prime
	// that the operand does not have anymore.
	ErrCapacityExhausted = errors.New("capacity exhausted")

	// ErrKeyMaterial is returned when a needed key is missing or invalid.
	ErrKeyMaterial = errors.New("missing or invalid key material")

	// ErrSerialization is returned on malformed, truncated, tampered or
	// mismatching serialized data.
	ErrSerialization = errors.New("invalid serialized data")

	// ErrSlotOverflow is returned when a vector has more values than slots.
	ErrSlotOverflow = errors.New("too many values for the number of slots")

	// ErrScaleMismatch is returned when approximate operands have incompatible scales.
	ErrScaleMismatch = errors.New("scale mismatch")
)
