package typist

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// Jitter fractions applied to the enrolled timings. Genuine attempts stay
// well inside the acceptance threshold; imposter attempts land far outside.
const (
	genuineJitter  = 0.06
	imposterJitter = 0.55

	minPasswordKeys = 6
	maxPasswordKeys = 14
)

// persona is a synthetic user with a stable typing signature.
type persona struct {
	username string
	password string
	dwell    []float64
	flight   []float64
}

func newPersona(i int, rng *rand.Rand) persona {
	keys := minPasswordKeys + rng.Intn(maxPasswordKeys-minPasswordKeys+1)

	baseDwell := 70 + rng.Float64()*80  // 70-150ms holds
	baseFlight := 40 + rng.Float64()*90 // 40-130ms gaps

	dwell := make([]float64, keys)
	for k := range dwell {
		dwell[k] = baseDwell * (0.85 + rng.Float64()*0.3)
	}
	flight := make([]float64, keys-1)
	for k := range flight {
		flight[k] = baseFlight * (0.85 + rng.Float64()*0.3)
	}

	return persona{
		username: fmt.Sprintf("typist-%04d", i),
		password: fmt.Sprintf("hunter-%04d-%06d", i, rng.Intn(1_000_000)),
		dwell:    dwell,
		flight:   flight,
	}
}

// behaviourPayload is the JSON body the capture script would submit.
type behaviourPayload struct {
	AttemptID   string    `json:"attempt_id"`
	DwellTimes  []float64 `json:"dwell_times"`
	FlightTimes []float64 `json:"flight_times"`
	TotalTime   float64   `json:"total_time"`
	ErrorCount  int       `json:"error_count"`
	DeviceType  string    `json:"device_type"`
}

// capture produces a jittered sample of the persona's signature. A jitter of
// zero replays the signature exactly, which is what enrollment uses.
func (p persona) capture(jitter float64, rng *rand.Rand) behaviourPayload {
	sample := func(base []float64) []float64 {
		out := make([]float64, len(base))
		for i, v := range base {
			out[i] = v * (1 + jitter*(rng.Float64()*2-1))
		}
		return out
	}

	dwell := sample(p.dwell)
	flight := sample(p.flight)

	total := 0.0
	for _, v := range dwell {
		total += v
	}
	for _, v := range flight {
		total += v
	}

	errorCount := 0
	if jitter > 0 && rng.Float64() < jitter {
		errorCount = 1 + rng.Intn(2)
	}

	device := "fine"
	if rng.Intn(4) == 0 {
		device = "coarse"
	}

	return behaviourPayload{
		AttemptID:   uuid.NewString(),
		DwellTimes:  dwell,
		FlightTimes: flight,
		TotalTime:   total,
		ErrorCount:  errorCount,
		DeviceType:  device,
	}
}
