package typist

import (
	"os"
	"time"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Users         int           // Number of users to enroll
	LoginsPerUser int           // Genuine login attempts per user
	Imposters     int           // Imposter attempts per user
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	Seed          int64         // RNG seed, 0 picks one from the clock
	Verbose       bool          // Log every attempt
}

// ShowHelp prints usage information for the typist simulator.
func ShowHelp() {
	os.Stdout.WriteString(`TypeShield Typist Simulator
===========================

Enrolls synthetic users and replays jittered keystroke captures against a
running TypeShield instance. Genuine attempts jitter timings a little and
should mostly pass; imposter attempts jitter heavily and should mostly be
rejected.

Usage:
  go run ./cmd/typist-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -users int
        Number of users to enroll (default 20)
  -logins int
        Genuine login attempts per user (default 5)
  -imposters int
        Imposter attempts per user (default 2)
  -workers int
        Number of concurrent workers (default CPU cores)
  -timeout duration
        HTTP request timeout (default 10s)
  -seed int
        RNG seed for reproducible runs (default: from the clock)
  -verbose
        Log every attempt
  -help
        Show this help message

Examples:
  # Smoke-test a local instance
  go run ./cmd/typist-sim

  # Larger reproducible run
  go run ./cmd/typist-sim -users 200 -logins 10 -seed 42
`)
}
