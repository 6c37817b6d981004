package reduction

import (
	"fmt"

	"github.com/LynnColeArt/guda-reduction"
)

// NextSize returns how many elements remain after one pass with the given
// reduction factor: ceil(n / factor). The last, partial group of a pass still
// produces an output element, so no input is ever dropped.
func NextSize(factor, n int) int {
	return n/factor + boolToInt(n%factor != 0)
}

// Plan lists the element count left after each pass needed to reduce n
// elements to one. It is empty when n <= 1.
func Plan(factor, n int) []int {
	var sizes []int
	for n > 1 {
		n = NextSize(factor, n)
		sizes = append(sizes, n)
	}
	return sizes
}

// ValidateFactor rejects reduction factors that would never shrink the array.
func ValidateFactor(factor int) error {
	if factor < 2 {
		return guda.NewInvalidArgError("Reduce",
			fmt.Sprintf("reduction factor %d does not shrink the input, it must be at least 2", factor))
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
