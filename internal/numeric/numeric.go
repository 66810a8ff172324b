// Package numeric holds the floating-point guards used by the force kernel.
package numeric

import "math"

const (
	// Epsilon is the difference between 1 and the next representable float64.
	Epsilon = 0x1p-52
	// MinNormal is the smallest positive normal float64.
	MinNormal = 0x1p-1022
)

// ApproxEqual reports whether a and b are equal within machine precision.
// Values near zero are compared absolutely, all others relatively.
func ApproxEqual(a, b float64) bool {
	if a == b {
		// covers equal infinities
		return true
	}

	diff := math.Abs(a - b)
	if a == 0 || b == 0 || diff < MinNormal {
		return diff < Epsilon*MinNormal
	}
	return diff/math.Min(math.Abs(a)+math.Abs(b), math.MaxFloat64) < Epsilon
}

// Clamp saturates v to the closed interval [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
