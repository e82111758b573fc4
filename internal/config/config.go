package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the server.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppAddr         string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout  time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`

	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`

	// Empty DATABASE_URL selects the in-memory store, which is only meant
	// for development and tests.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	AuthSecret    string        `envconfig:"AUTH_SECRET"`
	TokenTTL      time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"8h"`
	LoginRateRPM  int           `envconfig:"LOGIN_RATE_PER_MINUTE" default:"10"`

	ReportCacheTTL time.Duration `envconfig:"REPORT_CACHE_TTL" default:"5m"`
	SaleTxTimeout  time.Duration `envconfig:"SALE_TX_TIMEOUT" default:"10s"`

	InvoicingEnabled bool `envconfig:"INVOICING_ENABLED" default:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.AuthSecret == "" {
		return nil, errors.New("AUTH_SECRET must be provided")
	}
	return &cfg, nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
