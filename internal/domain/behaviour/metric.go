// Package behaviour implements the keystroke-timing matching core: a
// difference metric, six per-signal scorers, device-class weight profiles,
// and the guarded decision engine that grades an attempt against an
// enrolled template.
//
// Everything in this package is pure and side-effect free; callers supply
// the template, the attempt and the acceptance threshold on every call.
package behaviour

import "math"

// epsilon replaces any measured quantity that could be zero before it is
// used as a divisor. Changing it changes scores at the margins.
const epsilon = 1e-6

// fullMismatch is the percentage difference assigned to unmatched
// positions and to comparisons against an empty sequence.
const fullMismatch = 100.0

// Clamp bounds a score to the [0, 100] range.
func Clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// AveragePercentageDifference computes the mean relative difference, in
// percent, between two timing vectors. Aligned positions are compared
// relative to the reference value; every position only one side has is
// penalized as a full mismatch rather than ignored. An empty side yields
// 100. The result is unbounded above; callers clamp after converting to
// a similarity score.
func AveragePercentageDifference(reference, sample []float64) float64 {
	if len(reference) == 0 || len(sample) == 0 {
		return fullMismatch
	}

	minLen := min(len(reference), len(sample))
	maxLen := max(len(reference), len(sample))

	var sum float64
	for i := 0; i < minLen; i++ {
		denom := reference[i]
		if denom == 0 {
			denom = epsilon
		}
		sum += math.Abs(reference[i]-sample[i]) / denom * 100
	}
	sum += float64(maxLen-minLen) * fullMismatch

	return sum / float64(maxLen)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
