package buffer

import (
	"encoding/binary"
	"fmt"
	"math"
)

// reserve makes sure at least size bytes are available on w.
func reserve(w Writer, size int) (err error) {
	if w.Available() >= size {
		return
	}
	if err = w.Flush(); err != nil {
		return
	}
	if w.Available() < size {
		return fmt.Errorf("cannot write: available buffer is smaller than %d bytes even after flush", size)
	}
	return
}

// Write writes a slice of bytes to w.
func Write(w Writer, c []byte) (n int64, err error) {
	nint, err := w.Write(c)
	return int64(nint), err
}

// WriteUint8 writes a byte c to w.
func WriteUint8(w Writer, c uint8) (n int64, err error) {
	if err = reserve(w, 1); err != nil {
		return
	}
	return Write(w, append(w.AvailableBuffer(), c))
}

// WriteUint16 writes an uint16 c to w.
func WriteUint16(w Writer, c uint16) (n int64, err error) {
	if err = reserve(w, 2); err != nil {
		return
	}
	return Write(w, binary.LittleEndian.AppendUint16(w.AvailableBuffer(), c))
}

// WriteUint32 writes an uint32 c to w.
func WriteUint32(w Writer, c uint32) (n int64, err error) {
	if err = reserve(w, 4); err != nil {
		return
	}
	return Write(w, binary.LittleEndian.AppendUint32(w.AvailableBuffer(), c))
}

// WriteUint64 writes an uint64 c to w.
func WriteUint64(w Writer, c uint64) (n int64, err error) {
	if err = reserve(w, 8); err != nil {
		return
	}
	return Write(w, binary.LittleEndian.AppendUint64(w.AvailableBuffer(), c))
}

// WriteInt writes an int c to w as an uint64.
func WriteInt(w Writer, c int) (n int64, err error) {
	return WriteUint64(w, uint64(c))
}

// WriteFloat64 writes the IEEE 754 binary representation of c to w.
func WriteFloat64(w Writer, c float64) (n int64, err error) {
	return WriteUint64(w, math.Float64bits(c))
}

// WriteUint64Slice writes a slice of uint64 c to w, filling
// the internal buffer of w before each flush.
func WriteUint64Slice(w Writer, c []uint64) (n int64, err error) {

	var inc int

	for len(c) > 0 {

		if err = reserve(w, 8); err != nil {
			return
		}

		k := w.Available() >> 3
		if k > len(c) {
			k = len(c)
		}

		buf := w.AvailableBuffer()
		for _, ci := range c[:k] {
			buf = binary.LittleEndian.AppendUint64(buf, ci)
		}

		if inc, err = w.Write(buf); err != nil {
			return n + int64(inc), err
		}

		n += int64(inc)
		c = c[k:]
	}

	return
}
