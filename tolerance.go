package guda

import (
	"math"
)

// ToleranceConfig defines tolerance parameters for floating-point comparison
type ToleranceConfig struct {
	// AbsTol is the absolute tolerance for values near zero
	AbsTol float64

	// RelTol is the relative tolerance as a fraction of the larger value
	RelTol float64

	// ULPTol is the maximum allowed difference in ULPs (Units in Last Place)
	ULPTol int

	// CheckNaN determines if NaN values should be considered equal
	CheckNaN bool

	// CheckInf determines if Inf values should be considered equal
	CheckInf bool
}

// DefaultTolerance returns default tolerance configuration
func DefaultTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol:   1e-7,
		RelTol:   1e-5,
		ULPTol:   MaxULPDiff,
		CheckNaN: true,
		CheckInf: true,
	}
}

// RelaxedTolerance returns relaxed tolerance for accumulated operations
func RelaxedTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol:   1e-5,
		RelTol:   1e-3,
		ULPTol:   16,
		CheckNaN: true,
		CheckInf: true,
	}
}

// ReductionTolerance returns the tolerance for comparing a float32 sum of n
// terms computed in tree order against a sequential sum. The rounding error of
// either order grows with log2(n) (tree) and n (sequential); the bound is
// relative to the sum of magnitudes the caller passes as scale.
func ReductionTolerance(n int, scale float64) ToleranceConfig {
	steps := math.Max(1, math.Log2(float64(max(n, 1))))
	return ToleranceConfig{
		AbsTol:   Float32Epsilon * steps * math.Abs(scale) * 4,
		RelTol:   Float32Epsilon * steps * 4,
		ULPTol:   0,
		CheckNaN: true,
		CheckInf: true,
	}
}

// Float32NearEqual checks if two float32 values are equal within tolerance
func Float32NearEqual(a, b float32, tol ToleranceConfig) bool {
	if Float64NearEqual(float64(a), float64(b), tol) {
		return true
	}
	if tol.ULPTol > 0 && !math.IsNaN(float64(a)) && !math.IsNaN(float64(b)) {
		return Float32ULPDiff(a, b) <= tol.ULPTol
	}
	return false
}

// Float64NearEqual checks if two float64 values are equal within the
// absolute and relative parts of tol
func Float64NearEqual(a, b float64, tol ToleranceConfig) bool {
	// Handle special cases
	if tol.CheckNaN && math.IsNaN(a) && math.IsNaN(b) {
		return true
	}

	if tol.CheckInf {
		if math.IsInf(a, 1) && math.IsInf(b, 1) {
			return true // Both +Inf
		}
		if math.IsInf(a, -1) && math.IsInf(b, -1) {
			return true // Both -Inf
		}
	}

	// Check if exactly equal (handles ±0)
	if a == b {
		return true
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}

	diff := math.Abs(a - b)
	if diff <= tol.AbsTol {
		return true
	}

	larger := math.Max(math.Abs(a), math.Abs(b))
	return diff <= larger*tol.RelTol
}

// Float32ULPDiff computes the difference in ULPs between two float32 values
func Float32ULPDiff(a, b float32) int {
	// Convert to bits
	aBits := math.Float32bits(a)
	bBits := math.Float32bits(b)

	// Check for different signs
	if (aBits^bBits)&0x80000000 != 0 {
		// Different signs, can't use simple subtraction
		// Return max int to indicate very different
		return math.MaxInt32
	}

	// Same sign, compute ULP difference
	if aBits > bBits {
		return int(aBits - bBits)
	}
	return int(bBits - aBits)
}
