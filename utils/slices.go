package utils

// Alias1D returns true if x and y share the same base array.
func Alias1D[V any](x, y []V) bool {
	return cap(x) > 0 && cap(y) > 0 && &x[0:cap(x)][cap(x)-1] == &y[0:cap(y)][cap(y)-1]
}

// RotateSlice returns a new slice corresponding to s rotated by k positions to the left.
// Negative k rotates to the right.
func RotateSlice[V any](s []V, k int) []V {
	ret := make([]V, len(s))
	if len(s) == 0 {
		return ret
	}
	k %= len(s)
	if k < 0 {
		k += len(s)
	}
	copy(ret[:len(s)-k], s[k:])
	copy(ret[len(s)-k:], s[:k])
	return ret
}

// RotateSlotsNew returns a new slice where the two halves of the
// original slice are each rotated by k positions independently.
func RotateSlotsNew[V any](s []V, k int) (r []V) {
	r = make([]V, len(s))
	half := len(s) >> 1
	copy(r[:half], RotateSlice(s[:half], k))
	copy(r[half:], RotateSlice(s[half:], k))
	return
}

// BitReverseInPlaceSlice applies an in-place bit-reverse permutation on the first N elements of slice.
// N must be a power of two.
func BitReverseInPlaceSlice[V any](slice []V, N int) {

	var bit, j int

	for i := 1; i < N; i++ {

		bit = N >> 1

		for j >= bit {
			j -= bit
			bit >>= 1
		}

		j += bit

		if i < j {
			slice[i], slice[j] = slice[j], slice[i]
		}
	}
}

// PadSlice returns a copy of s zero-padded to n elements.
func PadSlice[V any](s []V, n int) (r []V) {
	r = make([]V, n)
	copy(r, s)
	return
}
