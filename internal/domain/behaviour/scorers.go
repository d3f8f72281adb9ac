package behaviour

import (
	"math"

	"github.com/typeshield/typeshield/internal/domain/model"
)

// The six dimension scorers below each turn one pair of template/attempt
// fields into a similarity score in [0, 100]. They are independent of each
// other and of device class.

// DwellScore compares per-key hold durations.
func DwellScore(tmpl model.Template, att model.Attempt) float64 {
	return Clamp(100 - AveragePercentageDifference(tmpl.DwellTimes, att.DwellTimes))
}

// FlightScore compares inter-key gap durations.
func FlightScore(tmpl model.Template, att model.Attempt) float64 {
	return Clamp(100 - AveragePercentageDifference(tmpl.FlightTimes, att.FlightTimes))
}

// TotalTimeScore compares overall input duration.
func TotalTimeScore(tmpl model.Template, att model.Attempt) float64 {
	denom := tmpl.TotalTime
	if denom == 0 {
		denom = epsilon
	}
	diff := math.Abs(tmpl.TotalTime-att.TotalTime) / denom * 100
	return Clamp(100 - diff)
}

// SpeedScore compares typing rate in keys per second.
func SpeedScore(tmpl model.Template, att model.Attempt) float64 {
	tmplSpeed := keysPerSecond(len(tmpl.DwellTimes), tmpl.TotalTime)
	attSpeed := keysPerSecond(len(att.DwellTimes), att.TotalTime)
	denom := tmplSpeed
	if denom == 0 {
		denom = epsilon
	}
	diff := math.Abs(tmplSpeed-attSpeed) / denom * 100
	return Clamp(100 - diff)
}

// LengthScore compares how many keys were typed.
func LengthScore(tmpl model.Template, att model.Attempt) float64 {
	tmplLen := len(tmpl.DwellTimes)
	attLen := len(att.DwellTimes)
	maxLen := max(tmplLen, attLen, 1)
	diff := math.Abs(float64(tmplLen-attLen)) / float64(maxLen) * 100
	return Clamp(100 - diff)
}

// ErrorScore compares correction counts. Two clean runs score 100.
func ErrorScore(tmpl model.Template, att model.Attempt) float64 {
	if tmpl.ErrorCount == 0 && att.ErrorCount == 0 {
		return 100.0
	}
	denom := float64(tmpl.ErrorCount)
	if denom == 0 {
		denom = 1.0
	}
	diff := math.Abs(float64(tmpl.ErrorCount-att.ErrorCount)) / denom * 100
	return Clamp(100 - diff)
}

// keysPerSecond derives typing rate from a key count and a duration in
// milliseconds. An empty sequence counts as one key and a zero duration
// as epsilon so the rate is always finite.
func keysPerSecond(keys int, totalMS float64) float64 {
	if keys == 0 {
		keys = 1
	}
	if totalMS == 0 {
		totalMS = epsilon
	}
	return float64(keys) * 1000 / totalMS
}
