package buffer

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Read reads exactly len(c) bytes from r.
func Read(r Reader, c []byte) (n int64, err error) {
	nint, err := io.ReadFull(r, c)
	return int64(nint), err
}

// ReadUint8 reads a byte from r.
func ReadUint8(r Reader, c *uint8) (n int64, err error) {
	var bb [1]byte
	if n, err = Read(r, bb[:]); err != nil {
		return
	}
	*c = bb[0]
	return
}

// ReadUint16 reads an uint16 from r.
func ReadUint16(r Reader, c *uint16) (n int64, err error) {
	var bb [2]byte
	if n, err = Read(r, bb[:]); err != nil {
		return
	}
	*c = binary.LittleEndian.Uint16(bb[:])
	return
}

// ReadUint32 reads an uint32 from r.
func ReadUint32(r Reader, c *uint32) (n int64, err error) {
	var bb [4]byte
	if n, err = Read(r, bb[:]); err != nil {
		return
	}
	*c = binary.LittleEndian.Uint32(bb[:])
	return
}

// ReadUint64 reads an uint64 from r.
func ReadUint64(r Reader, c *uint64) (n int64, err error) {
	var bb [8]byte
	if n, err = Read(r, bb[:]); err != nil {
		return
	}
	*c = binary.LittleEndian.Uint64(bb[:])
	return
}

// ReadInt reads an int written as an uint64 from r.
func ReadInt(r Reader, c *int) (n int64, err error) {
	var u uint64
	if n, err = ReadUint64(r, &u); err != nil {
		return
	}
	*c = int(u)
	return
}

// ReadFloat64 reads an IEEE 754 binary float64 from r.
func ReadFloat64(r Reader, c *float64) (n int64, err error) {
	var u uint64
	if n, err = ReadUint64(r, &u); err != nil {
		return
	}
	*c = math.Float64frombits(u)
	return
}

// ReadUint64Slice reads len(c) uint64 from r, decoding
// directly from the internal buffer of r.
func ReadUint64Slice(r Reader, c []uint64) (n int64, err error) {

	var inc int

	for len(c) > 0 {

		size := r.Size()
		if len(c)<<3 < size {
			size = len(c) << 3
		}
		size -= size & 7

		if size == 0 {
			return n, fmt.Errorf("cannot ReadUint64Slice: %w", io.ErrUnexpectedEOF)
		}

		slice, _ := r.Peek(size)

		k := len(slice) >> 3
		if k == 0 {
			return n, io.ErrUnexpectedEOF
		}

		for i, j := 0, 0; i < k; i, j = i+1, j+8 {
			c[i] = binary.LittleEndian.Uint64(slice[j:])
		}

		if inc, err = r.Discard(k << 3); err != nil {
			return n + int64(inc), err
		}

		n += int64(inc)
		c = c[k:]
	}

	return
}
