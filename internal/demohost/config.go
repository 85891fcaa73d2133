package demohost

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-auth-softdelete/adapters/redisstore"
)

// Config contains demo server configuration parameters.
type Config struct {
	Addr       string     `env:"ADDR" envDefault:":8080"`
	Debug      bool       `env:"DEBUG" envDefault:"false"`
	Database   Database   `envPrefix:"DATABASE_"`
	Redis      Redis      `envPrefix:"REDIS_"`
	SoftDelete SoftDelete `envPrefix:"SOFT_DELETE_"`
}

// Database contains database connection parameters.
type Database struct {
	DSN string `env:"DSN" envDefault:"file::memory:?cache=shared"`
}

// Redis contains optional Redis parameters. An empty Addr disables the
// secondary storage and the restore rate limiter.
type Redis struct {
	Addr      string `env:"ADDR"`
	Password  string `env:"PASSWORD"`
	DB        int    `env:"DB" envDefault:"0"`
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"softdelete"`
}

// SoftDelete contains plugin parameters.
type SoftDelete struct {
	RetentionDays       int           `env:"RETENTION_DAYS" envDefault:"30"`
	BlockReRegistration bool          `env:"BLOCK_RE_REGISTRATION" envDefault:"true"`
	BasePath            string        `env:"BASE_PATH" envDefault:"/soft-delete"`
	RestoreWindow       time.Duration `env:"RESTORE_RATE_WINDOW" envDefault:"15m"`
	RestoreMax          int           `env:"RESTORE_RATE_MAX" envDefault:"5"`
}

// RateLimit converts the restore limits to the redis limiter config.
func (c Config) RateLimit() redisstore.SlidingWindowConfig {
	return redisstore.SlidingWindowConfig{
		KeyPrefix: c.Redis.KeyPrefix + ":restore",
		Window:    c.SoftDelete.RestoreWindow,
		Max:       c.SoftDelete.RestoreMax,
	}
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
