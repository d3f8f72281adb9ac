package behaviour

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/typeshield/typeshield/internal/domain/model"
)

// Component keys used in the breakdown map returned by Similarity.
const (
	ComponentDwell     = "dwell"
	ComponentFlight    = "flight"
	ComponentTotalTime = "total_time"
	ComponentSpeed     = "speed"
	ComponentLength    = "length"
	ComponentErrors    = "errors"
)

// Tempo guard bounds: an attempt whose typing rate or total duration
// drifts outside this band relative to enrollment is rejected before any
// weighted scoring. The band is the same for both device classes; the
// combiner already discounts coarse-input speed sensitivity, while this
// stays a hard floor independent of the soft score.
const (
	tempoRatioMin = 0.6
	tempoRatioMax = 1.6
)

// maxKeyCountDelta is how far the attempt's key count may differ from the
// template's before the attempt is disqualified outright.
const maxKeyCountDelta = 1

// DefaultThreshold is the acceptance threshold used when configuration
// does not supply one.
const DefaultThreshold = 75.0

// Similarity aggregates the six dimension scores under the weight profile
// selected by the attempt's device class. It returns the combined score,
// clamped to [0, 100] and rounded to two decimals, plus the individual
// component scores keyed by the Component* constants.
func Similarity(tmpl model.Template, att model.Attempt) (float64, map[string]float64) {
	weights := WeightsFor(ParseDeviceClass(att.DeviceType))

	dwell := DwellScore(tmpl, att)
	flight := FlightScore(tmpl, att)
	total := TotalTimeScore(tmpl, att)
	speed := SpeedScore(tmpl, att)
	length := LengthScore(tmpl, att)
	errs := ErrorScore(tmpl, att)

	combined := weights.Dwell*dwell +
		weights.Flight*flight +
		weights.Total*total +
		weights.Speed*speed +
		weights.Length*length +
		weights.Error*errs

	components := map[string]float64{
		ComponentDwell:     round2(dwell),
		ComponentFlight:    round2(flight),
		ComponentTotalTime: round2(total),
		ComponentSpeed:     round2(speed),
		ComponentLength:    round2(length),
		ComponentErrors:    round2(errs),
	}

	return round2(Clamp(combined)), components
}

// reasonChecks drives rejection-message construction in a fixed order.
// Keys must stay aligned with the component map built by Similarity;
// applies lets a row opt out based on the attempt (the corrections row
// only fires when the attempt actually contained corrections).
var reasonChecks = []struct {
	key     string
	message string
	applies func(att model.Attempt) bool
}{
	{ComponentDwell, "Dwell timings differ", nil},
	{ComponentFlight, "Flight timings differ", nil},
	{ComponentSpeed, "Typing speed differs", nil},
	{ComponentTotalTime, "Total duration differs", nil},
	{ComponentLength, "Key count alignment off", nil},
	{ComponentErrors, "Too many corrections", func(att model.Attempt) bool { return att.ErrorCount > 0 }},
}

// Evaluate decides whether an attempt plausibly came from the template's
// typist. Two cheap guards run before the weighted score: a key-count
// guard and a tempo guard. A guard rejection carries score 0. Past the
// guards, acceptance is score >= threshold (inclusive); on rejection the
// reasons name each component that individually fell below the threshold,
// or a generic line when only the weighted combination fell short.
func Evaluate(tmpl model.Template, att model.Attempt, threshold float64) model.Decision {
	if delta := len(tmpl.DwellTimes) - len(att.DwellTimes); delta > maxKeyCountDelta || delta < -maxKeyCountDelta {
		return model.Decision{
			Score: 0.0,
			Reasons: []string{fmt.Sprintf("Key count differs: expected ~%d, got %d",
				len(tmpl.DwellTimes), len(att.DwellTimes))},
		}
	}

	// Recomputed rather than reusing SpeedScore so the guard band stays
	// independent of the weighted score's sensitivity.
	tmplSpeed := keysPerSecond(len(tmpl.DwellTimes), tmpl.TotalTime)
	attSpeed := keysPerSecond(len(att.DwellTimes), att.TotalTime)
	speedDenom := tmplSpeed
	if speedDenom == 0 {
		speedDenom = epsilon
	}
	speedRatio := attSpeed / speedDenom
	totalRatio := nonZero(att.TotalTime) / nonZero(tmpl.TotalTime)
	if speedRatio < tempoRatioMin || speedRatio > tempoRatioMax ||
		totalRatio < tempoRatioMin || totalRatio > tempoRatioMax {
		return model.Decision{
			Score:   0.0,
			Reasons: []string{"Overall tempo differs too much from enrollment"},
		}
	}

	score, components := Similarity(tmpl, att)
	if score >= threshold {
		return model.Decision{IsMatch: true, Score: score, Reasons: []string{}}
	}

	reasons := make([]string, 0, len(reasonChecks))
	for _, check := range reasonChecks {
		if check.applies != nil && !check.applies(att) {
			continue
		}
		if components[check.key] < threshold {
			reasons = append(reasons, fmt.Sprintf("%s (score %s%%)", check.message, formatScore(components[check.key])))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Behavioural score below threshold")
	}

	return model.Decision{Score: score, Reasons: reasons}
}

// formatScore renders a rounded component score with at least one decimal
// digit, so whole numbers read "50.0" rather than "50".
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func nonZero(v float64) float64 {
	if v == 0 {
		return epsilon
	}
	return v
}
