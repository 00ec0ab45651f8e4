package analytics

import (
	"math"
	"sort"
)

// quantile returns the p-quantile of sorted using linear interpolation
// between the closest ranks, h = (n-1)p. sorted must be ascending and
// non-empty; p must be in [0, 1].
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
