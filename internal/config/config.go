package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Lock backends
const (
	LockBackendMemory   = "memory"
	LockBackendPostgres = "postgres"
	LockBackendRedis    = "redis"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	ConfigRoot    string `envconfig:"CONFIG_ROOT" default:"registry"`
	WorkspaceRoot string `envconfig:"WORKSPACE_ROOT" default:"workspace"`

	// Zero disables polling; SIGHUP still reloads.
	ReloadInterval time.Duration `envconfig:"RELOAD_INTERVAL" default:"30s"`

	LockBackend string        `envconfig:"LOCK_BACKEND" default:"memory"`
	LockTimeout time.Duration `envconfig:"LOCK_TIMEOUT" default:"10s"`
	LockTTL     time.Duration `envconfig:"LOCK_TTL" default:"30s"`

	// Optional. Enables the postgres lock backend and the audit mirror.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`

	RedisURL string `envconfig:"REDIS_URL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"truststack-evidence"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	MaxEvidenceBytes int64 `envconfig:"MAX_EVIDENCE_BYTES" default:"52428800"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("TRUSTSTACK", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks combinations envconfig cannot express.
func (c *Config) Validate() error {
	switch c.LockBackend {
	case LockBackendMemory:
	case LockBackendPostgres:
		if !c.HasDatabase() {
			return fmt.Errorf("lock backend %q requires TRUSTSTACK_DATABASE_URL", c.LockBackend)
		}
	case LockBackendRedis:
		if !c.HasRedis() {
			return fmt.Errorf("lock backend %q requires TRUSTSTACK_REDIS_URL", c.LockBackend)
		}
	default:
		return fmt.Errorf("unknown lock backend %q", c.LockBackend)
	}
	if c.MaxEvidenceBytes <= 0 {
		return fmt.Errorf("TRUSTSTACK_MAX_EVIDENCE_BYTES must be positive")
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}
