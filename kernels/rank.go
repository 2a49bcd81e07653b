package kernels

import (
	"math"
	"sort"
)

// TopK returns the indices of the k largest scores, largest first. Equal
// scores keep their original order, so the lower index wins. NaN ranks below
// every number. k is clamped to [0, len(scores)].
func TopK(scores []float32, k int) []int {
	if k < 0 {
		k = 0
	}
	if k > len(scores) {
		k = len(scores)
	}
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return greater(scores[idx[a]], scores[idx[b]])
	})
	return idx[:k:k]
}

// ArgMax returns the first index holding the largest score, or false when
// scores is empty. NaN is only chosen when every score is NaN.
func ArgMax(scores []float32) (int, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if greater(scores[i], scores[best]) {
			best = i
		}
	}
	return best, true
}

// greater orders x before y, with NaN after every number.
func greater(x, y float32) bool {
	if isNaN(y) {
		return !isNaN(x)
	}
	return x > y
}

func isNaN(f float32) bool { return math.IsNaN(float64(f)) }
