package reduction

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Host-side reductions used to check device results. They run sequentially
// in input order on the calling goroutine.

// Fold combines input left to right starting from zero.
func Fold[T any](input []T, op Op[T], zero T) T {
	acc := zero
	for _, v := range input {
		acc = op(acc, v)
	}
	return acc
}

// Real is any integer or floating-point type.
type Real interface {
	constraints.Integer | constraints.Float
}

// CompensatedSum sums input in float64 with Neumaier compensation and also
// returns the sum of absolute values, the scale against which the rounding
// error of a float sum is measured.
func CompensatedSum[T Real](input []T) (sum, magnitude float64) {
	var c float64
	for _, v := range input {
		x := float64(v)
		magnitude += math.Abs(x)

		t := sum + x
		if math.Abs(sum) >= math.Abs(x) {
			c += (sum - t) + x
		} else {
			c += (x - t) + sum
		}
		sum = t
	}
	return sum + c, magnitude
}
