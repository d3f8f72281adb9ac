// Package app provides the application service that wires stores, the
// matching engine, sessions and the audit pipeline behind the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/typeshield/typeshield/internal/adapters/audit"
	"github.com/typeshield/typeshield/internal/adapters/repository"
	"github.com/typeshield/typeshield/internal/auth"
	"github.com/typeshield/typeshield/internal/domain/behaviour"
	"github.com/typeshield/typeshield/internal/domain/model"
	"github.com/typeshield/typeshield/internal/domain/replay"
	"github.com/typeshield/typeshield/pkg/logger"
	"github.com/typeshield/typeshield/pkg/metrics"
)

// ErrReplayedAttempt marks a capture payload whose nonce was already used.
var ErrReplayedAttempt = errors.New("behaviour payload already used")

// ErrInvalidInput marks empty usernames or passwords.
var ErrInvalidInput = errors.New("username and password are required")

// Service implements the API dependencies for the authentication system.
type Service struct {
	store      repository.Store
	sessions   *auth.SessionStore
	tokens     *auth.TokenService
	guard      replay.Guard
	auditQueue audit.Queue
	auditPool  *audit.WriterPool

	// Configuration
	dbPath       string
	signingKey   string
	threshold    float64
	tokenTTL     time.Duration
	sessionTTL   time.Duration
	replaySize   int
	queueSize    int
	writerCount  int
	recentLimit  int
	storeManaged bool // whether Stop should close the store

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a store, bypassing db_path-based selection. The
// caller keeps ownership and closes it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.storeManaged = false
		}
	}
}

// WithDBPath selects the sqlite database file; empty selects the
// in-memory store.
func WithDBPath(path string) Option {
	return func(s *Service) { s.dbPath = path }
}

// WithSigningKey sets the access-token signing key.
func WithSigningKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.signingKey = key
		}
	}
}

// WithThreshold sets the behavioural acceptance threshold.
func WithThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold >= 0 && threshold <= 100 {
			s.threshold = threshold
		}
	}
}

// WithTokenTTL sets access token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithSessionTTL sets browser session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithReplayCacheSize bounds the attempt-nonce guard.
func WithReplayCacheSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.replaySize = n
		}
	}
}

// WithAuditQueueSize bounds the async attempt-log queue.
func WithAuditQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithAuditWriterCount sets the number of attempt-log writers.
func WithAuditWriterCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.writerCount = n
		}
	}
}

// WithRecentAttemptsLimit caps the dashboard's recent-attempts list.
func WithRecentAttemptsLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		signingKey:   "dev-signing-key-change-me",
		threshold:    behaviour.DefaultThreshold,
		tokenTTL:     time.Hour,
		sessionTTL:   2 * time.Hour,
		replaySize:   50000,
		queueSize:    4096,
		writerCount:  2,
		recentLimit:  10,
		storeManaged: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the store, session machinery and audit pipeline.
func (s *Service) Start(ctx context.Context) error {
	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}

	if s.store == nil {
		if s.dbPath != "" {
			store, err := repository.NewSQLiteStore(ctx, s.dbPath)
			if err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using sqlite store", logger.String("path", s.dbPath))
		} else {
			s.store = repository.NewMemoryStore()
			s.logger.Info(ctx, "using in-memory store; state is lost on restart")
		}
		s.storeManaged = true
	}

	s.sessions = auth.NewSessionStore(s.sessionTTL)
	s.tokens = auth.NewTokenService(s.signingKey, s.tokenTTL)
	s.guard = replay.NewMemoryGuard(replay.WithMaxSize(s.replaySize))
	s.auditQueue = audit.NewMemoryQueue(audit.WithCapacity(s.queueSize))
	s.auditPool = audit.NewWriterPool(s.writerCount, s.auditQueue, s.store)
	s.auditPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "authentication service started",
		logger.Float64("threshold", s.threshold),
		logger.Int("auditWriters", s.writerCount),
	)
	return nil
}

// Stop drains the audit pipeline and releases the store.
func (s *Service) Stop() {
	if !s.started {
		return
	}
	s.auditPool.Stop()
	if s.storeManaged {
		if err := s.store.Close(); err != nil {
			s.logger.Error(context.Background(), "store close failed", logger.Error(err))
		}
	}
	s.started = false
	s.logger.Info(context.Background(), "authentication service stopped")
}

// Credentials is the session material returned by successful register and
// login calls.
type Credentials struct {
	Session auth.Session
	Token   string
}

// Register enrolls a new user with their password and typing template.
func (s *Service) Register(ctx context.Context, username, password string, att model.Attempt, attemptID string) (Credentials, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return Credentials{}, ErrInvalidInput
	}
	if s.guard.SeenAndRecord(ctx, attemptID) {
		metrics.RecordReplayRejection()
		return Credentials{}, ErrReplayedAttempt
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.guard.Unrecord(ctx, attemptID)
		return Credentials{}, err
	}

	user := model.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		s.guard.Unrecord(ctx, attemptID)
		return Credentials{}, err
	}

	tmpl := model.Template{
		DwellTimes:  att.DwellTimes,
		FlightTimes: att.FlightTimes,
		TotalTime:   att.TotalTime,
		ErrorCount:  att.ErrorCount,
	}
	if err := s.store.SaveTemplate(ctx, user.ID, tmpl); err != nil {
		return Credentials{}, err
	}

	metrics.RecordEnrollment()
	s.logger.Info(ctx, "user enrolled",
		logger.String("username", username),
		logger.Int("keys", len(att.DwellTimes)),
	)

	// Enrollment opens a session; the reference score is a perfect 100.
	return s.openSession(user, 100.0)
}

// LoginResult reports one authentication try. Credentials is only
// populated when Decision.IsMatch is true.
type LoginResult struct {
	Decision    model.Decision
	Credentials Credentials
}

// Login verifies the password, then grades the typing attempt against the
// enrolled template. A behavioural mismatch is a normal result, not an
// error; the decision carries the score and rejection reasons.
func (s *Service) Login(ctx context.Context, username, password string, att model.Attempt, attemptID string) (LoginResult, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return LoginResult{}, ErrInvalidInput
	}
	if s.guard.SeenAndRecord(ctx, attemptID) {
		metrics.RecordReplayRejection()
		return LoginResult{}, ErrReplayedAttempt
	}

	user, err := s.store.GetUserByName(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordLoginAttempt("bad_credentials")
			s.logAttempt(ctx, uuid.Nil, username, model.StatusFailure, nil, nil)
			return LoginResult{}, auth.ErrBadCredentials
		}
		return LoginResult{}, err
	}

	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		metrics.RecordLoginAttempt("bad_credentials")
		s.logAttempt(ctx, user.ID, username, model.StatusFailure, nil, nil)
		return LoginResult{}, err
	}

	tmpl, err := s.store.GetTemplate(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNoTemplate) {
			metrics.RecordLoginAttempt("no_template")
			s.logAttempt(ctx, user.ID, username, model.StatusFailure, nil, nil)
		}
		return LoginResult{}, err
	}

	decision := behaviour.Evaluate(tmpl, att, s.threshold)
	metrics.RecordSimilarityScore(decision.Score)

	if !decision.IsMatch {
		metrics.RecordLoginAttempt("mismatch")
		metrics.RecordGuardRejection(rejectionStage(decision))
		score := decision.Score
		s.logAttempt(ctx, user.ID, username, model.StatusFailure, &score, decision.Reasons)
		s.logger.Info(ctx, "behavioural mismatch",
			logger.String("username", username),
			logger.Float64("score", decision.Score),
		)
		return LoginResult{Decision: decision}, nil
	}

	metrics.RecordLoginAttempt("success")
	score := decision.Score
	s.logAttempt(ctx, user.ID, username, model.StatusSuccess, &score, nil)

	creds, err := s.openSession(user, decision.Score)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Decision: decision, Credentials: creds}, nil
}

// DashboardData is what the dashboard page renders for one user.
type DashboardData struct {
	Username       string
	LastScore      float64
	SuccessCount   int
	FailureCount   int
	RecentAttempts []model.AttemptRecord
}

// Dashboard assembles attempt statistics for the session's user.
func (s *Service) Dashboard(ctx context.Context, sessionID uuid.UUID) (DashboardData, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return DashboardData{}, err
	}

	success, failure, err := s.store.AttemptTotals(ctx, sess.UserID)
	if err != nil {
		return DashboardData{}, err
	}
	recent, err := s.store.RecentAttempts(ctx, sess.UserID, s.recentLimit)
	if err != nil {
		return DashboardData{}, err
	}

	return DashboardData{
		Username:       sess.Username,
		LastScore:      sess.LastScore,
		SuccessCount:   success,
		FailureCount:   failure,
		RecentAttempts: recent,
	}, nil
}

// Session returns the live session for an id.
func (s *Service) Session(sessionID uuid.UUID) (auth.Session, error) {
	return s.sessions.Get(sessionID)
}

// Logout closes a session.
func (s *Service) Logout(sessionID uuid.UUID) {
	s.sessions.Delete(sessionID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	stats := map[string]any{
		"started":   s.started,
		"threshold": s.threshold,
	}
	if !s.started {
		return stats
	}

	if users, err := s.store.CountUsers(context.Background()); err == nil {
		stats["users"] = users
	}
	stats["activeSessions"] = s.sessions.Count()
	stats["auditQueueLength"] = s.auditQueue.Len()
	stats["replayCacheSize"] = s.guard.Size()
	return stats
}

func (s *Service) openSession(user model.User, score float64) (Credentials, error) {
	sess := s.sessions.Create(user.ID, user.Username, score)
	token, err := s.tokens.Generate(user.ID, sess.ID, user.Username)
	if err != nil {
		s.sessions.Delete(sess.ID)
		return Credentials{}, fmt.Errorf("issue token: %w", err)
	}
	return Credentials{Session: sess, Token: token}, nil
}

// logAttempt records an attempt asynchronously, falling back to a
// synchronous write under backpressure so no attempt goes unaudited.
func (s *Service) logAttempt(ctx context.Context, userID uuid.UUID, username, status string, score *float64, reasons []string) {
	if reasons == nil {
		reasons = []string{}
	}
	rec := model.AttemptRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Username:  username,
		Status:    status,
		Score:     score,
		Reasons:   reasons,
		CreatedAt: time.Now().UTC(),
	}
	if s.auditQueue.Enqueue(ctx, rec) {
		return
	}
	if err := s.store.LogAttempt(ctx, rec); err != nil {
		s.logger.Error(ctx, "attempt record write failed", logger.Error(err))
	}
}

// rejectionStage classifies a rejection for metrics by which pipeline
// stage produced it.
func rejectionStage(d model.Decision) string {
	if d.Score == 0 && len(d.Reasons) == 1 {
		switch {
		case strings.HasPrefix(d.Reasons[0], "Key count differs"):
			return "key_count"
		case strings.HasPrefix(d.Reasons[0], "Overall tempo"):
			return "tempo"
		}
	}
	return "threshold"
}
