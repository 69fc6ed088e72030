package musictime

import "math"

// Internal swing amounts are kept away from 0 and 1, where the curve would
// collapse half the range onto a point.
const (
	minSwingAmount = 0.01
	maxSwingAmount = 0.99
)

// swingAmount rescales the public [-1,1] swing to the [0,1] position that
// the halfway point of a subdivision moves to.
func swingAmount(swing float64) float64 {
	s := (swing + 1) / 2
	return math.Max(minSwingAmount, math.Min(maxSwingAmount, s))
}

func applySwingAmount(x, s float64) float64 {
	if x < 0.5 {
		return x * (s / 0.5)
	}
	return s + (x-0.5)*((1-s)/0.5)
}

func removeSwingAmount(y, s float64) float64 {
	if y < s {
		return y * (0.5 / s)
	}
	return 0.5 + (y-s)*(0.5/(1-s))
}

// ApplySwing maps a position within a subdivision x in [0,1) so that the
// halfway point lands on the swung position. swing is in [-1,1]; 0 is straight.
func ApplySwing(x, swing float64) float64 {
	return applySwingAmount(x, swingAmount(swing))
}

// RemoveSwing is the exact inverse of ApplySwing
func RemoveSwing(y, swing float64) float64 {
	return removeSwingAmount(y, swingAmount(swing))
}

// ApplySwingToBeats swings only the fractional part of a multi-beat value
func ApplySwingToBeats(beats, swing float64) float64 {
	whole := math.Floor(beats)
	return whole + ApplySwing(beats-whole, swing)
}

// RemoveSwingFromBeats is the inverse of ApplySwingToBeats
func RemoveSwingFromBeats(beats, swing float64) float64 {
	whole := math.Floor(beats)
	return whole + RemoveSwing(beats-whole, swing)
}
