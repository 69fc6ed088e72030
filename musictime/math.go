package musictime

import "math"

// Epsilon is the tolerance used when comparing beat positions
const Epsilon = 1e-9

// Mod returns x modulo m with the sign of m, so Mod(-0.25, 1) == 0.75.
// m must be positive.
func Mod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	// math.Mod can hand back m itself for tiny negative x after the add
	if r >= m {
		r = 0
	}
	return r
}

// Frac returns the fractional part of x in [0,1), also for negative x
func Frac(x float64) float64 {
	return Mod(x, 1)
}

// ModInt is the integer counterpart of Mod
func ModInt(x, m int) int {
	r := x % m
	if r < 0 {
		r += m
	}
	return r
}
