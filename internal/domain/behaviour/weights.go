package behaviour

// DeviceClass is the closed set of input device classes an attempt can
// report. Anything the capture layer sends that is not "coarse" maps to
// Fine, including the empty string.
type DeviceClass int

const (
	// Fine covers keyboards paired with precise pointers (mouse, trackpad).
	Fine DeviceClass = iota
	// Coarse covers touch input, where inter-key timing is noisier.
	Coarse
)

// ParseDeviceClass maps the capture layer's device_type string onto a
// DeviceClass, defaulting to Fine.
func ParseDeviceClass(s string) DeviceClass {
	if s == "coarse" {
		return Coarse
	}
	return Fine
}

func (d DeviceClass) String() string {
	if d == Coarse {
		return "coarse"
	}
	return "fine"
}

// Weights is a per-dimension weight profile. Each profile's fields sum
// to exactly 1.0.
type Weights struct {
	Dwell  float64
	Flight float64
	Total  float64
	Speed  float64
	Length float64
	Error  float64
}

// Sum returns the total of all weight fields; useful for invariant checks.
func (w Weights) Sum() float64 {
	return w.Dwell + w.Flight + w.Total + w.Speed + w.Length + w.Error
}

var (
	fineWeights = Weights{
		Dwell:  0.26,
		Flight: 0.26,
		Total:  0.14,
		Speed:  0.14,
		Length: 0.10,
		Error:  0.10,
	}

	// Touch input carries noisier speed and duration signals, so weight
	// shifts from speed/total toward dwell/flight shape.
	coarseWeights = Weights{
		Dwell:  0.30,
		Flight: 0.30,
		Total:  0.12,
		Speed:  0.08,
		Length: 0.10,
		Error:  0.10,
	}
)

// WeightsFor returns the weight profile for a device class.
func WeightsFor(d DeviceClass) Weights {
	if d == Coarse {
		return coarseWeights
	}
	return fineWeights
}
