package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. YAML file if TYPESHIELD_CONFIG is set
//  3. env (prefix TYPESHIELD_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("TYPESHIELD_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// TYPESHIELD_ADDR -> addr, TYPESHIELD_BEHAVIOUR_THRESHOLD -> behaviour_threshold.
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("TYPESHIELD_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "typeshield_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.BehaviourThreshold < 0 || c.BehaviourThreshold > 100:
		return fmt.Errorf("%w: behaviour_threshold must be in [0, 100]", ErrInvalidConfig)
	case c.SigningKey == "":
		return fmt.Errorf("%w: signing_key must not be empty", ErrInvalidConfig)
	case c.AuditQueueSize < 1:
		return fmt.Errorf("%w: audit_queue_size must be positive", ErrInvalidConfig)
	case c.AuditWriterCount < 1:
		return fmt.Errorf("%w: audit_writer_count must be positive", ErrInvalidConfig)
	case c.RecentAttemptsLimit < 1:
		return fmt.Errorf("%w: recent_attempts_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
