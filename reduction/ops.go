package reduction

import (
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// Op combines two elements. It must be associative and commutative, and the
// engine's zero must be neutral for it: op(x, zero) == x for every x. The
// engine pads incomplete chunks with zero and cannot detect a zero that is
// not neutral; the result is then silently wrong.
type Op[T any] func(a, b T) T

// Number is any type with a built-in + operator that is commutative.
type Number interface {
	constraints.Integer | constraints.Float | constraints.Complex
}

// Sum adds two numbers. Its neutral element is 0.
func Sum[T Number](a, b T) T {
	return a + b
}

// Max returns the larger value. Its neutral element is the smallest value of T
// (math.Inf(-1) for floats).
func Max[T constraints.Ordered](a, b T) T {
	return max(a, b)
}

// Min returns the smaller value. Its neutral element is the largest value of T
// (math.Inf(1) for floats).
func Min[T constraints.Ordered](a, b T) T {
	return min(a, b)
}

// Float16Sum adds two half-precision values, rounding the float32 sum back to
// half precision. Its neutral element is float16.Float16(0).
func Float16Sum(a, b float16.Float16) float16.Float16 {
	return float16.Fromfloat32(a.Float32() + b.Float32())
}

// Extent is the compound minimum and maximum of a set of values.
type Extent[T constraints.Ordered] struct {
	Min, Max T
}

// ExtentOf is the extent of the single value v.
func ExtentOf[T constraints.Ordered](v T) Extent[T] {
	return Extent[T]{Min: v, Max: v}
}

// EmptyExtent is the neutral element of MergeExtent, given the smallest and
// largest values of T.
func EmptyExtent[T constraints.Ordered](lowest, highest T) Extent[T] {
	return Extent[T]{Min: highest, Max: lowest}
}

// MergeExtent combines two extents.
func MergeExtent[T constraints.Ordered](a, b Extent[T]) Extent[T] {
	return Extent[T]{Min: min(a.Min, b.Min), Max: max(a.Max, b.Max)}
}
