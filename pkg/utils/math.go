package utils

import "math"

// UnitVector returns a copy of x scaled to unit L2 norm, accumulating in float64.
// ok is false when the norm is zero or not finite; the copy is then returned unscaled.
func UnitVector(x []float32) (unit []float32, ok bool) {
	unit = make([]float32, len(x))
	copy(unit, x)
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return unit, false
	}
	scale := 1 / math.Sqrt(sum)
	for i, v := range unit {
		unit[i] = float32(float64(v) * scale)
	}
	return unit, true
}
