package audio

// MixFrames sums two frames scaled by their gains, clipping to the int16
// range. A nil frame counts as silence. Both non-nil frames must have the
// same length.
func MixFrames(a, b []int16, gainA, gainB float64) []int16 {
	n := max(len(a), len(b))
	if n == 0 {
		n = FrameSamples
	}
	result := make([]int16, n)

	for i := range result {
		var mixed float64
		if a != nil {
			mixed += float64(a[i]) * gainA
		}
		if b != nil {
			mixed += float64(b[i]) * gainB
		}

		// Clip to int16 range
		if mixed > 32767 {
			mixed = 32767
		} else if mixed < -32768 {
			mixed = -32768
		}
		result[i] = int16(mixed)
	}

	return result
}
