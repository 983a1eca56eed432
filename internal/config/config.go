// Package config loads service configuration from the environment and the
// moderation policy from an optional YAML file.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the process-level settings shared by the moderation binaries.
type Config struct {
	// Server
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	AdminToken  string `envconfig:"ADMIN_TOKEN" default:""`

	// Redis. An empty address keeps the ledger in memory.
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	LedgerTTL     time.Duration `envconfig:"LEDGER_TTL" default:"25h"`

	// NATS. An empty URL disables async review and suspension events.
	NATSURL string `envconfig:"NATS_URL" default:""`

	// PostgreSQL audit trail. An empty DSN logs audit events instead.
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Policy file; empty uses the built-in defaults.
	PolicyFile string `envconfig:"MODERATION_POLICY_FILE" default:""`

	// Client-side ledger database; empty uses the per-user default.
	ClientDBPath string `envconfig:"CLIENT_DB_PATH" default:""`

	// Per-actor write rate limit.
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithPolicy reads the environment and then the policy file it names.
func LoadWithPolicy() (*Config, Policy, error) {
	cfg, err := Load()
	if err != nil {
		return nil, Policy{}, err
	}
	p, err := LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, Policy{}, err
	}
	return cfg, p, nil
}
