package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends. Ledger additionally supports redis and dynamodb.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

// Config is the whole process configuration, parsed from the environment.
type Config struct {
	Server    Server
	Storage   Storage
	Postgres  PostgresConfig
	Redis     RedisConfig
	Dynamo    DynamoConfig
	Auth      Auth
	Stripe    Stripe
	Kafka     Kafka
	Otel      Otel
	RateLimit RateLimit
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"BLOODLINK_ADDR" envDefault:":8080"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MetricsToken    string        `env:"METRICS_TOKEN"`
}

// Storage selects the document store backend per store.
type Storage struct {
	Backend       string `env:"STORAGE_BACKEND" envDefault:"memory"`
	LedgerBackend string `env:"LEDGER_BACKEND"`
}

// Ledger returns the ledger backend, defaulting to the shared backend.
func (s Storage) Ledger() string {
	if s.LedgerBackend != "" {
		return s.LedgerBackend
	}
	return s.Backend
}

type PostgresConfig struct {
	DSN          string `env:"DATABASE_URL"`
	MaxOpenConns int    `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns int    `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
}

type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

type DynamoConfig struct {
	Region      string `env:"DYNAMODB_REGION" envDefault:"us-east-1"`
	Endpoint    string `env:"DYNAMODB_ENDPOINT"`
	LedgerTable string `env:"DYNAMODB_LEDGER_TABLE" envDefault:"bloodlink-pledges"`
}

// Auth configures the bearer token verifier.
type Auth struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"bloodlink"`
	JWTAudience   string `env:"JWT_AUDIENCE" envDefault:"bloodlink-api"`

	// BootstrapAdmins register with role admin.
	BootstrapAdmins []string `env:"BOOTSTRAP_ADMIN_EMAILS" envSeparator:","`
}

type Stripe struct {
	SecretKey  string `env:"STRIPE_SECRET_KEY"`
	APIURL     string `env:"STRIPE_API_URL"`
	Currency   string `env:"PLEDGE_CURRENCY" envDefault:"usd"`
	SuccessURL string `env:"PLEDGE_SUCCESS_URL" envDefault:"http://localhost:5173/funding/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL  string `env:"PLEDGE_CANCEL_URL" envDefault:"http://localhost:5173/funding"`
}

type Kafka struct {
	Brokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"bloodlink.audit"`
	// AuditGroup and OpsSampleRate configure cmd/auditsink.
	AuditGroup    string  `env:"KAFKA_AUDIT_GROUP" envDefault:"bloodlink-audit-sink"`
	OpsSampleRate float64 `env:"AUDIT_OPS_SAMPLE_RATE" envDefault:"1"`
}

type Otel struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"bloodlink"`
}

// RateLimit budgets are per client IP per minute. Backend is memory or redis.
type RateLimit struct {
	Enabled          bool   `env:"RATELIMIT_ENABLED" envDefault:"true"`
	Backend          string `env:"RATELIMIT_BACKEND" envDefault:"memory"`
	ReadPerMinute    int    `env:"RATELIMIT_READ_PER_MINUTE" envDefault:"300"`
	WritePerMinute   int    `env:"RATELIMIT_WRITE_PER_MINUTE" envDefault:"60"`
	PaymentPerMinute int    `env:"RATELIMIT_PAYMENT_PER_MINUTE" envDefault:"10"`
}

// NeedsRedis reports whether any component runs on redis.
func (c Config) NeedsRedis() bool {
	return c.Storage.Ledger() == BackendRedis || (c.RateLimit.Enabled && c.RateLimit.Backend == BackendRedis)
}

// Load reads an optional .env file and parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load(".env")
	return FromEnv()
}

// FromEnv parses the environment without touching .env files.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", c.Storage.Backend)
	}
	switch c.Storage.Ledger() {
	case BackendMemory, BackendPostgres, BackendRedis, BackendDynamoDB:
	default:
		return fmt.Errorf("LEDGER_BACKEND must be memory, postgres, redis or dynamodb, got %q", c.Storage.Ledger())
	}
	if (c.Storage.Backend == BackendPostgres || c.Storage.Ledger() == BackendPostgres) && c.Postgres.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres backend")
	}
	switch c.RateLimit.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("RATELIMIT_BACKEND must be memory or redis, got %q", c.RateLimit.Backend)
	}
	if c.NeedsRedis() && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required for the redis backends")
	}
	return nil
}
