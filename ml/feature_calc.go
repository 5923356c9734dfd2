package ml

import "math"

// NormalizeFeature maps value into [0,1] relative to min and max. A constant
// column (max == min) maps to 0.
func NormalizeFeature(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

// columnBounds returns the min and max of values. values must not be empty.
func columnBounds(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
