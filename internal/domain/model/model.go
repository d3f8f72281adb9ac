// Package model contains domain records passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Template is the enrolled keystroke-timing reference for a user.
// Timings are milliseconds; sequences may be empty.
type Template struct {
	DwellTimes  []float64 // per key held, keydown -> keyup
	FlightTimes []float64 // per gap between consecutive keys
	TotalTime   float64   // whole input duration
	ErrorCount  int       // corrections (backspaces) during enrollment
}

// Attempt is the timing profile captured during one authentication try.
type Attempt struct {
	DwellTimes  []float64
	FlightTimes []float64
	TotalTime   float64
	ErrorCount  int
	DeviceType  string // "fine" or "coarse"; empty means fine
}

// Decision is the outcome of matching an attempt against a template.
// Reasons is empty exactly when IsMatch is true.
type Decision struct {
	IsMatch bool     `json:"is_match"`
	Score   float64  `json:"score"` // 0..100, rounded to 2 decimals
	Reasons []string `json:"reasons"`
}

// User is an enrolled account.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Attempt outcome status values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// AttemptRecord is one audited authentication try.
// Score is nil when the attempt never reached behavioural scoring
// (unknown user, bad password, malformed payload).
type AttemptRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID // uuid.Nil for unknown users
	Username  string
	Status    string
	Score     *float64
	Reasons   []string
	CreatedAt time.Time
}
