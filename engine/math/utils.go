package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// DivCeil divides rounding towards positive infinity. d must be non-zero.
func DivCeil[T constraints.Unsigned](n, d T) T {
	if n == 0 {
		return 0
	}
	return (n-1)/d + 1
}

// InRange reports whether low <= v < high.
func InRange[T constraints.Integer](v, low, high T) bool {
	return v >= low && v < high
}
