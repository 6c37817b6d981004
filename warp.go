package guda

// ShflDown is __shfl_down_sync over a whole warp: dst[lane] receives the value
// lanes[lane+delta] held before the shuffle. Lanes whose source falls outside
// the warp read their own value, as on hardware. dst and lanes must have the
// same length (the warp width) and must not overlap.
func ShflDown[T any](dst, lanes []T, delta int) {
	width := len(lanes)
	for lane := range lanes {
		if src := lane + delta; src < width {
			dst[lane] = lanes[src]
		} else {
			dst[lane] = lanes[lane]
		}
	}
}
