package ring

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// IndexSet is an immutable ordered set of non-negative prime indices.
// The zero value is the empty set.
type IndexSet struct {
	idx []int
}

// NewIndexSet returns the set of the given indices.
func NewIndexSet(indices ...int) IndexSet {
	idx := append([]int{}, indices...)
	slices.Sort(idx)
	return IndexSet{idx: slices.Compact(idx)}
}

// Interval returns the set {first, ..., last}, which is empty if last < first.
func Interval(first, last int) IndexSet {
	if last < first {
		return IndexSet{}
	}
	idx := make([]int, last-first+1)
	for i := range idx {
		idx[i] = first + i
	}
	return IndexSet{idx: idx}
}

// Len returns the cardinality of the set.
func (s IndexSet) Len() int {
	return len(s.idx)
}

// IsEmpty returns true if the set is empty.
func (s IndexSet) IsEmpty() bool {
	return len(s.idx) == 0
}

// First returns the smallest index of the set, or -1 if empty.
func (s IndexSet) First() int {
	if len(s.idx) == 0 {
		return -1
	}
	return s.idx[0]
}

// Last returns the largest index of the set, or -1 if empty.
func (s IndexSet) Last() int {
	if len(s.idx) == 0 {
		return -1
	}
	return s.idx[len(s.idx)-1]
}

// Contains returns true if i is in the set.
func (s IndexSet) Contains(i int) bool {
	_, found := slices.BinarySearch(s.idx, i)
	return found
}

// ContainsSet returns true if other is a subset of s.
func (s IndexSet) ContainsSet(other IndexSet) bool {
	for _, i := range other.idx {
		if !s.Contains(i) {
			return false
		}
	}
	return true
}

// Position returns the rank of i in the set, or -1 if i is not in the set.
func (s IndexSet) Position(i int) int {
	if pos, found := slices.BinarySearch(s.idx, i); found {
		return pos
	}
	return -1
}

// Slice returns a copy of the indices in increasing order.
func (s IndexSet) Slice() []int {
	return append([]int{}, s.idx...)
}

// IsInterval returns true if the set is a non-empty interval of consecutive indices.
func (s IndexSet) IsInterval() bool {
	return len(s.idx) > 0 && s.Last()-s.First()+1 == len(s.idx)
}

// Insert returns s ∪ {i}.
func (s IndexSet) Insert(i int) IndexSet {
	if s.Contains(i) {
		return s
	}
	return s.Union(NewIndexSet(i))
}

// Remove returns s \ {i}.
func (s IndexSet) Remove(i int) IndexSet {
	return s.Difference(NewIndexSet(i))
}

// Union returns s ∪ other.
func (s IndexSet) Union(other IndexSet) IndexSet {
	out := make([]int, 0, len(s.idx)+len(other.idx))
	i, j := 0, 0
	for i < len(s.idx) || j < len(other.idx) {
		switch {
		case j == len(other.idx) || (i < len(s.idx) && s.idx[i] < other.idx[j]):
			out = append(out, s.idx[i])
			i++
		case i == len(s.idx) || other.idx[j] < s.idx[i]:
			out = append(out, other.idx[j])
			j++
		default:
			out = append(out, s.idx[i])
			i++
			j++
		}
	}
	return IndexSet{idx: out}
}

// Intersection returns s ∩ other.
func (s IndexSet) Intersection(other IndexSet) IndexSet {
	var out []int
	for _, i := range s.idx {
		if other.Contains(i) {
			out = append(out, i)
		}
	}
	return IndexSet{idx: out}
}

// Difference returns s \ other.
func (s IndexSet) Difference(other IndexSet) IndexSet {
	var out []int
	for _, i := range s.idx {
		if !other.Contains(i) {
			out = append(out, i)
		}
	}
	return IndexSet{idx: out}
}

// Disjoint returns true if s and other have no common index.
func (s IndexSet) Disjoint(other IndexSet) bool {
	return s.Intersection(other).IsEmpty()
}

// Equal returns true if s and other hold the same indices.
func (s IndexSet) Equal(other IndexSet) bool {
	return slices.Equal(s.idx, other.idx)
}

// String returns the set in the form "{0 1 2}".
func (s IndexSet) String() string {
	str := make([]string, len(s.idx))
	for i, v := range s.idx {
		str[i] = fmt.Sprint(v)
	}
	return "{" + strings.Join(str, " ") + "}"
}
