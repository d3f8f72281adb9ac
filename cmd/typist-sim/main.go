package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/typeshield/typeshield/internal/typist"
)

// Default configuration constants.
const (
	defaultUsers         = 20
	defaultLoginsPerUser = 5
	defaultImposters     = 2
	defaultTimeout       = 10 * time.Second
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "Base URL of the service")
		users     = flag.Int("users", defaultUsers, "Number of users to enroll")
		logins    = flag.Int("logins", defaultLoginsPerUser, "Genuine login attempts per user")
		imposters = flag.Int("imposters", defaultImposters, "Imposter attempts per user")
		workers   = flag.Int("workers", runtime.NumCPU(), "Number of concurrent workers")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed      = flag.Int64("seed", 0, "RNG seed for reproducible runs")
		verbose   = flag.Bool("verbose", false, "Log every attempt")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		typist.ShowHelp()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &typist.Config{
		BaseURL:       *baseURL,
		Users:         *users,
		LoginsPerUser: *logins,
		Imposters:     *imposters,
		Workers:       *workers,
		Timeout:       *timeout,
		Seed:          *seed,
		Verbose:       *verbose,
	}

	if err := typist.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
