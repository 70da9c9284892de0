package ring

import (
	"bufio"
	"fmt"
	"io"

	"github.com/tuneinsight/hetile/utils/buffer"
)

// View returns an element over set sharing the residues of d.
// set must be a subset of the index set of d and the returned
// element must not be mutated.
func (d *DoubleCRT) View(set IndexSet) (v *DoubleCRT, err error) {
	if !d.set.ContainsSet(set) {
		return nil, fmt.Errorf("cannot View: %w: %v is not a subset of %v", ErrIndexSetMismatch, set, d.set)
	}
	v = &DoubleCRT{ring: d.ring, set: set, eval: make([][]uint64, set.Len())}
	for k, i := range set.idx {
		v.eval[k] = d.eval[d.set.Position(i)]
	}
	return
}

// BinarySize returns the serialized size of the object in bytes.
func (d *DoubleCRT) BinarySize() int {
	return 4 + 4*d.set.Len() + 8*d.set.Len()*d.ring.n
}

// WriteTo writes the index set and the evaluation form residues of d on w.
func (d *DoubleCRT) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = buffer.WriteUint32(w, uint32(d.set.Len())); err != nil {
			return n + inc, err
		}
		n += inc

		for _, i := range d.set.idx {
			if inc, err = buffer.WriteUint32(w, uint32(i)); err != nil {
				return n + inc, err
			}
			n += inc
		}

		for k := range d.eval {
			if inc, err = buffer.WriteUint64Slice(w, d.eval[k]); err != nil {
				return n + inc, err
			}
			n += inc
		}

		return n, w.Flush()

	default:
		return d.WriteTo(bufio.NewWriter(w))
	}
}

// ReadDoubleCRT reads an element of r written by WriteTo.
func ReadDoubleCRT(rd io.Reader, r *Ring) (d *DoubleCRT, n int64, err error) {
	switch rd := rd.(type) {
	case buffer.Reader:

		var inc int64
		var count uint32

		if inc, err = buffer.ReadUint32(rd, &count); err != nil {
			return nil, n + inc, err
		}
		n += inc

		if int(count) > r.PrimeCount() {
			return nil, n, fmt.Errorf("cannot ReadDoubleCRT: %d primes for a ring with %d primes", count, r.PrimeCount())
		}

		idx := make([]int, count)
		for k := range idx {
			var i uint32
			if inc, err = buffer.ReadUint32(rd, &i); err != nil {
				return nil, n + inc, err
			}
			n += inc
			idx[k] = int(i)
		}

		set := NewIndexSet(idx...)
		if set.Len() != len(idx) || !r.Valid(set) {
			return nil, n, fmt.Errorf("cannot ReadDoubleCRT: invalid index set %v", idx)
		}

		d = NewDoubleCRT(r, set)
		for k := range d.eval {
			if inc, err = buffer.ReadUint64Slice(rd, d.eval[k]); err != nil {
				return nil, n + inc, err
			}
			n += inc
			q := r.moduli[set.idx[k]].Q
			for _, c := range d.eval[k] {
				if c >= q {
					return nil, n, fmt.Errorf("cannot ReadDoubleCRT: residue %d not reduced modulo %d", c, q)
				}
			}
		}

		return

	default:
		return ReadDoubleCRT(bufio.NewReader(rd), r)
	}
}
