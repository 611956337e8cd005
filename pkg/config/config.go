package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"ventureops/pkg/circuitbreaker"
)

// Config is the typed process configuration. YAML provides the base values;
// environment variables named in env tags override them.
type Config struct {
	Env     string        `yaml:"env" env:"CONFIG_ENV"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	DB      DBConfig      `yaml:"db"`
	MQ      MQConfig      `yaml:"mq"`
	Redis   RedisConfig   `yaml:"redis"`
	JWT     JWTConfig     `yaml:"jwt"`
	Log     LogConfig     `yaml:"log"`
	Otel    OtelConfig    `yaml:"otel"`
	Outbox  OutboxConfig  `yaml:"outbox"`
	Worker  WorkerConfig  `yaml:"worker"`
}

type ServerConfig struct {
	Port            string        `yaml:"port" env:"SERVER_PORT" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver     string `yaml:"driver" env:"STORAGE_DRIVER" validate:"required,oneof=postgres sqlite"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" validate:"required_if=Driver sqlite"`
}

type DBConfig struct {
	Host               string        `yaml:"host" env:"DB_HOST"`
	Port               int           `yaml:"port" env:"DB_PORT"`
	User               string        `yaml:"user" env:"DB_USER"`
	Password           string        `yaml:"password" env:"DB_PASSWORD"`
	Name               string        `yaml:"name" env:"DB_NAME"`
	SSLMode            string        `yaml:"sslmode" env:"DB_SSLMODE"`
	MaxConns           int32         `yaml:"max_conns"`
	MinConns           int32         `yaml:"min_conns"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

// DSN returns the pgx connection string.
func (c DBConfig) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, sslmode)
}

type MQConfig struct {
	URL      string `yaml:"url" env:"MQ_URL"`
	Exchange string `yaml:"exchange" env:"MQ_EXCHANGE"`
}

type RedisConfig struct {
	Addr           string        `yaml:"addr" env:"REDIS_ADDR"`
	Password       string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB             int           `yaml:"db" env:"REDIS_DB"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret" env:"JWT_SECRET" validate:"required,min=16"`
	TTL    time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT"`
}

type OtelConfig struct {
	Enabled     bool   `yaml:"enabled" env:"OTEL_ENABLED"`
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
}

type OutboxConfig struct {
	Enabled    bool                  `yaml:"enabled" env:"OUTBOX_ENABLED"`
	Interval   time.Duration         `yaml:"interval"`
	BatchSize  int                   `yaml:"batch_size"`
	MaxRetries int                   `yaml:"max_retries"`
	Breaker    circuitbreaker.Config `yaml:"breaker"`
}

type WorkerConfig struct {
	MaxRetries int64         `yaml:"max_retries"`
	DedupeTTL  time.Duration `yaml:"dedupe_ttl"`
}

// ApplyEnv overrides cfg from the process environment.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Storage.Driver == "postgres" && c.DB.Host == "" {
		return fmt.Errorf("invalid config: db.host is required for the postgres driver")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.JWT.TTL == 0 {
		c.JWT.TTL = 24 * time.Hour
	}
	if c.MQ.Exchange == "" {
		c.MQ.Exchange = "events"
	}
	if c.Redis.IdempotencyTTL == 0 {
		c.Redis.IdempotencyTTL = 24 * time.Hour
	}
	if c.Outbox.Interval == 0 {
		c.Outbox.Interval = time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Outbox.MaxRetries == 0 {
		c.Outbox.MaxRetries = 5
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 3
	}
	if c.Worker.DedupeTTL == 0 {
		c.Worker.DedupeTTL = 24 * time.Hour
	}
	if c.DB.SlowQueryThreshold == 0 {
		c.DB.SlowQueryThreshold = 100 * time.Millisecond
	}
}
