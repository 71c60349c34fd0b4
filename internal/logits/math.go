package logits

import (
	"math"

	"golang.org/x/exp/constraints"
)

// argmax returns the index of the largest value. Ties resolve to the lowest
// index. It panics on an empty slice.
func argmax[T constraints.Ordered](x []T) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// softmax writes exp(x*scale - max) normalized to out and returns the
// normalizer. A zero or non-finite normalizer means the distribution is
// unusable.
func softmax[T constraints.Float](x []T, scale float64, out []float64) float64 {
	maxv := math.Inf(-1)
	for _, v := range x {
		if s := float64(v) * scale; s > maxv {
			maxv = s
		}
	}
	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v)*scale - maxv)
		out[i] = e
		sum += e
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return sum
	}
	inv := 1 / sum
	for i := range out[:len(x)] {
		out[i] *= inv
	}
	return sum
}

func isFinite[T constraints.Float](v T) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
