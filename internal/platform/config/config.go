// Package config loads process configuration from PROPREG_* environment
// variables. Empty backend URLs select the in-process fallbacks.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "PROPREG_"

// DevSigningKey is the HS256 key used when none is configured.
const DevSigningKey = "dev-secret-key-change-in-production"

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Server   Server   `envPrefix:"SERVER_"`
	Database Database `envPrefix:"DATABASE_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Kafka    Kafka    `envPrefix:"KAFKA_"`
	Auth     Auth     `envPrefix:"AUTH_"`
	Chain    Chain    `envPrefix:"CHAIN_"`
	Audit    Audit    `envPrefix:"AUDIT_"`
	Tracing  Tracing  `envPrefix:"OTEL_"`

	RateLimit RateLimit `envPrefix:"RATELIMIT_"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	TxTimeout       time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`
}

type Database struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnectRetries  uint64        `env:"CONNECT_RETRIES" envDefault:"5"`
}

type Redis struct {
	URL            string        `env:"URL"`
	PoolSize       int           `env:"POOL_SIZE" envDefault:"10"`
	DialTimeout    time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	ConnectRetries uint64        `env:"CONNECT_RETRIES" envDefault:"5"`
}

type Kafka struct {
	Brokers           []string `env:"BROKERS" envSeparator:","`
	Topic             string   `env:"TOPIC" envDefault:"propreg.audit"`
	Partitions        int32    `env:"PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"REPLICATION_FACTOR" envDefault:"1"`
}

type Auth struct {
	SigningKey string        `env:"SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer     string        `env:"ISSUER" envDefault:"propreg"`
	Audience   string        `env:"AUDIENCE" envDefault:"propreg-api"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
}

// Chain configures the block-height clock.
type Chain struct {
	StartHeight   uint64        `env:"START_HEIGHT" envDefault:"1"`
	BlockInterval time.Duration `env:"BLOCK_INTERVAL" envDefault:"6s"`
}

// Audit tunes async delivery of audit events. DeliveryTimeout bounds one
// sink call; DrainTimeout bounds how long shutdown waits for the queue.
type Audit struct {
	BufferSize       int           `env:"BUFFER_SIZE" envDefault:"1024"`
	DeliveryTimeout  time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"5s"`
	DrainTimeout     time.Duration `env:"DRAIN_TIMEOUT" envDefault:"10s"`
	BreakerThreshold int           `env:"BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN" envDefault:"1m"`
}

// RateLimit sets per-caller request budgets. A zero budget disables the
// class.
type RateLimit struct {
	Disabled      bool          `env:"DISABLED"`
	ReadRequests  int           `env:"READ_REQUESTS" envDefault:"300"`
	WriteRequests int           `env:"WRITE_REQUESTS" envDefault:"60"`
	Window        time.Duration `env:"WINDOW" envDefault:"1m"`
}

type Tracing struct {
	Endpoint string `env:"ENDPOINT"`
}

// FromEnv parses and validates the configuration.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Auth.SigningKey == "" {
		return errors.New("auth signing key is required")
	}
	if c.IsProduction() && c.Auth.SigningKey == DevSigningKey {
		return errors.New("the development signing key cannot be used in production")
	}
	if c.Chain.BlockInterval <= 0 {
		return errors.New("chain block interval must be positive")
	}
	if !c.RateLimit.Disabled && c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if c.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must not be negative")
	}
	if c.Audit.DeliveryTimeout <= 0 || c.Audit.DrainTimeout <= 0 {
		return errors.New("audit delivery and drain timeouts must be positive")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
