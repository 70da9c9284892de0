package hebase

import (
	"github.com/tuneinsight/hetile/utils"
)

// RotationsForInnerSum returns the rotations used by CTile.InnerSum(rot1, rot2, reverse).
func RotationsForInnerSum(rot1, rot2 int, reverse bool) (rotations []int) {
	if rot1 <= 0 {
		return
	}
	for rot := rot1; rot < rot2; rot <<= 1 {
		if reverse {
			rotations = append(rotations, -rot)
		} else {
			rotations = append(rotations, rot)
		}
	}
	return
}

// RotationsForSumExpBySquaring returns the sorted rotations used by
// CTile.SumExpBySquaringLeftToRight(n) and CTile.SumExpBySquaringRightToLeft(n).
func RotationsForSumExpBySquaring(n int) (rotations []int) {

	set := map[int]bool{}

	// left to right
	k := 1
	for bit := bitLen(n) - 2; bit >= 0; bit-- {
		set[k] = true
		k <<= 1
		if n>>bit&1 == 1 {
			set[1] = true
			k++
		}
	}

	// right to left
	shift, pk := 0, 1
	for m := n; m > 0; m >>= 1 {
		if m&1 == 1 {
			if shift != 0 {
				set[shift] = true
			}
			shift += pk
		}
		if m > 1 {
			set[pk] = true
			pk <<= 1
		}
	}

	return utils.GetSortedKeys(set)
}
