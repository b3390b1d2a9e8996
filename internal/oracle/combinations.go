package oracle

import (
	"math"
	"math/bits"
)

// Binomial returns C(n, k), or 0 when k is out of range. Results that do not
// fit in an int saturate at math.MaxInt.
func Binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	var result uint64 = 1
	for i := 1; i <= k; i++ {
		// result*(n-k+i) is always divisible by i; the partial products only grow.
		hi, lo := bits.Mul64(result, uint64(n-k+i))
		if hi >= uint64(i) {
			return math.MaxInt
		}
		q, _ := bits.Div64(hi, lo, uint64(i))
		if q > math.MaxInt {
			return math.MaxInt
		}
		result = q
	}
	return int(result)
}

// Combinations enumerates every k-subset of [0, n) in lexicographic order.
func Combinations(n, k int) []Race {
	if k <= 0 || k > n {
		return nil
	}
	out := make([]Race, 0, Binomial(n, k))
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		out = append(out, NewRace(idx...))

		// Advance the rightmost index that still has room.
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
