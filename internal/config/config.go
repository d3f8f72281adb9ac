// Package config defines service configuration and loading.
package config

import "github.com/typeshield/typeshield/internal/domain/behaviour"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the sqlite database file. Empty selects the in-memory store.
	DBPath string `koanf:"db_path"`

	// SigningKey signs access tokens. Must be overridden outside development.
	SigningKey string `koanf:"signing_key"`

	// TokenTTLMinutes bounds access token lifetime.
	TokenTTLMinutes int `koanf:"token_ttl_minutes"`

	// SessionTTLMinutes bounds browser session lifetime.
	SessionTTLMinutes int `koanf:"session_ttl_minutes"`

	// BehaviourThreshold is the acceptance threshold for the matching
	// engine, 0..100. Attempts scoring >= the threshold are accepted.
	BehaviourThreshold float64 `koanf:"behaviour_threshold"`

	// ReplayCacheSize bounds the attempt-nonce replay guard.
	ReplayCacheSize int `koanf:"replay_cache_size"`

	// AuditQueueSize bounds the async attempt-log queue.
	AuditQueueSize int `koanf:"audit_queue_size"`

	// AuditWriterCount sets the number of attempt-log writers.
	AuditWriterCount int `koanf:"audit_writer_count"`

	// RecentAttemptsLimit caps the dashboard's recent-attempts list.
	RecentAttemptsLimit int `koanf:"recent_attempts_limit"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":8080",
		DBPath:              "typeshield.db",
		SigningKey:          "dev-signing-key-change-me",
		TokenTTLMinutes:     60,
		SessionTTLMinutes:   120,
		BehaviourThreshold:  behaviour.DefaultThreshold,
		ReplayCacheSize:     50_000,
		AuditQueueSize:      4_096,
		AuditWriterCount:    2,
		RecentAttemptsLimit: 10,
	}
}
