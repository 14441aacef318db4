package config

import (
	"fmt"

	pkgconfig "github.com/hoffnungslabor/mediable/pkg/config"
	"github.com/hoffnungslabor/mediable/pkg/mediable"
)

// Store backend names accepted by MEDIABLE_STORE.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the mediable service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"MEDIABLE_HTTP_PORT" envDefault:"8013"`

	// Association store backend: "postgres" or "memory".
	Store string `env:"MEDIABLE_STORE" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"mediable"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"mediable_secret"`
	PostgresDB   string `env:"MEDIABLE_DB_NAME" envDefault:"mediable_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Kafka
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerEnabled  bool     `env:"MEDIABLE_CONSUMER_ENABLED" envDefault:"true"`
	ConsumerGroup    string   `env:"MEDIABLE_CONSUMER_GROUP" envDefault:"mediable-service"`
	HostDeletedTopic string   `env:"MEDIABLE_HOST_DELETED_TOPIC" envDefault:"mediable.host.deleted"`

	// Redis, used for consumer idempotency tracking. An empty address falls
	// back to the in-process store.
	RedisAddr string `env:"REDIS_ADDR" envDefault:""`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Association behavior defaults.
	RehydrateMedia     bool `env:"MEDIABLE_REHYDRATE_MEDIA" envDefault:"true"`
	DetachOnSoftDelete bool `env:"MEDIABLE_DETACH_ON_SOFT_DELETE" envDefault:"false"`

	// Per-host-type overrides of the behavior flags, e.g.
	// "post:true,gallery:false".
	RehydrateOverrides map[string]bool `env:"MEDIABLE_REHYDRATE_OVERRIDES" envSeparator:"," envKeyValSeparator:":"`
	DetachOverrides    map[string]bool `env:"MEDIABLE_DETACH_OVERRIDES" envSeparator:"," envKeyValSeparator:":"`

	// Host types accepted by the API. Empty means any type is accepted.
	HostTypes []string `env:"MEDIABLE_HOST_TYPES" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load mediable config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize drops empty entries that an explicitly empty env var produces.
func (c *Config) normalize() {
	types := c.HostTypes[:0]
	for _, t := range c.HostTypes {
		if t != "" {
			types = append(types, t)
		}
	}
	c.HostTypes = types
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("invalid MEDIABLE_STORE %q: must be %q or %q", c.Store, StorePostgres, StoreMemory)
	}
	if c.Store == StorePostgres {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.ConsumerEnabled && c.HostDeletedTopic == "" {
		return fmt.Errorf("MEDIABLE_HOST_DELETED_TOPIC is required when the consumer is enabled")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// OptionsForHost resolves the association options for one host type by
// applying the per-type overrides on top of the global defaults.
func (c *Config) OptionsForHost(hostType string) mediable.Options {
	opts := mediable.Options{
		RehydrateMedia:     c.RehydrateMedia,
		DetachOnSoftDelete: c.DetachOnSoftDelete,
	}
	if v, ok := c.RehydrateOverrides[hostType]; ok {
		opts.RehydrateMedia = v
	}
	if v, ok := c.DetachOverrides[hostType]; ok {
		opts.DetachOnSoftDelete = v
	}
	return opts
}

// HostTypeAllowed reports whether the API accepts the given host type. An
// empty allow-list accepts every type.
func (c *Config) HostTypeAllowed(hostType string) bool {
	if len(c.HostTypes) == 0 {
		return true
	}
	for _, t := range c.HostTypes {
		if t == hostType {
			return true
		}
	}
	return false
}
