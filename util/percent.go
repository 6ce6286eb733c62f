package util

import "math"

// Percent returns part/whole as a percentage, 0 when whole is 0.
func Percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// AlignDown rounds v down to a multiple of align.
func AlignDown(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return v - v%align
}
