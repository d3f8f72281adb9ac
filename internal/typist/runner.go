package typist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/typeshield/typeshield/pkg/logger"
)

// tally counts attempt outcomes across workers.
type tally struct {
	accepted  atomic.Int64
	rejected  atomic.Int64
	errored   atomic.Int64
	enrolled  atomic.Int64
	startedAt time.Time
}

// Run enrolls cfg.Users personas and replays jittered logins against the
// service, then logs a summary. Genuine and imposter acceptance rates make
// for a quick end-to-end sanity check of the matching behaviour.
func Run(ctx context.Context, cfg *Config) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.Get().Named("typist")

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("loginsPerUser", cfg.LoginsPerUser),
		logger.Int("impostersPerUser", cfg.Imposters),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", seed),
	)

	client := &http.Client{Timeout: cfg.Timeout}

	personas := make([]persona, cfg.Users)
	for i := range personas {
		personas[i] = newPersona(i, rng)
	}

	counts := &tally{startedAt: time.Now()}

	// Enrollment first; logins need templates to match against.
	for _, p := range personas {
		if err := ctx.Err(); err != nil {
			return err
		}
		status, _, err := post(ctx, client, cfg.BaseURL+"/api/register", p, p.capture(0, rng))
		if err != nil {
			return fmt.Errorf("enroll %s: %w", p.username, err)
		}
		if status != http.StatusCreated {
			return fmt.Errorf("enroll %s: unexpected status %d", p.username, status)
		}
		counts.enrolled.Add(1)
	}
	log.Info(ctx, "enrollment complete", logger.Int("users", cfg.Users))

	// Fan the login attempts out over workers. Each attempt carries its own
	// pre-generated capture so workers never share the RNG.
	type attempt struct {
		p        persona
		body     behaviourPayload
		imposter bool
	}
	work := make([]attempt, 0, cfg.Users*(cfg.LoginsPerUser+cfg.Imposters))
	for _, p := range personas {
		for i := 0; i < cfg.LoginsPerUser; i++ {
			work = append(work, attempt{p: p, body: p.capture(genuineJitter, rng)})
		}
		for i := 0; i < cfg.Imposters; i++ {
			work = append(work, attempt{p: p, body: p.capture(imposterJitter, rng), imposter: true})
		}
	}
	rng.Shuffle(len(work), func(i, j int) { work[i], work[j] = work[j], work[i] })

	jobs := make(chan attempt)
	var wg sync.WaitGroup
	var genuineAccepted, genuineTotal, imposterAccepted, imposterTotal atomic.Int64

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				status, body, err := post(ctx, client, cfg.BaseURL+"/api/login", a.p, a.body)
				if err != nil {
					counts.errored.Add(1)
					log.Warn(ctx, "login request failed", logger.String("username", a.p.username), logger.Error(err))
					continue
				}
				if a.imposter {
					imposterTotal.Add(1)
				} else {
					genuineTotal.Add(1)
				}
				switch status {
				case http.StatusOK:
					counts.accepted.Add(1)
					if a.imposter {
						imposterAccepted.Add(1)
					} else {
						genuineAccepted.Add(1)
					}
				case http.StatusUnauthorized:
					counts.rejected.Add(1)
				default:
					counts.errored.Add(1)
					log.Warn(ctx, "unexpected login status",
						logger.String("username", a.p.username),
						logger.Int("status", status),
					)
				}
				if cfg.Verbose {
					log.Info(ctx, "attempt finished",
						logger.String("username", a.p.username),
						logger.Bool("imposter", a.imposter),
						logger.Int("status", status),
						logger.String("body", body),
					)
				}
			}
		}()
	}

	for _, a := range work {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- a:
		}
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(counts.startedAt)
	log.Info(ctx, "simulation complete",
		logger.Int("enrolled", int(counts.enrolled.Load())),
		logger.Int("accepted", int(counts.accepted.Load())),
		logger.Int("rejected", int(counts.rejected.Load())),
		logger.Int("errored", int(counts.errored.Load())),
		logger.String("genuineAcceptRate", rate(genuineAccepted.Load(), genuineTotal.Load())),
		logger.String("imposterAcceptRate", rate(imposterAccepted.Load(), imposterTotal.Load())),
		logger.Duration("elapsed", elapsed),
	)
	return nil
}

func rate(hit, total int64) string {
	if total == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(hit)/float64(total)*100)
}

func post(ctx context.Context, client *http.Client, url string, p persona, behaviour behaviourPayload) (int, string, error) {
	payload, err := json.Marshal(map[string]any{
		"username":  p.username,
		"password":  p.password,
		"behaviour": behaviour,
	})
	if err != nil {
		return 0, "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.String(), nil
}
