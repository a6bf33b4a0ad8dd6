// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// StoreBackend selects the session store: "memory", "postgres", or "mongo".
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// DatabaseURL is the Postgres DSN; required when StoreBackend is "postgres".
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MongoURI is the MongoDB connection string; required when StoreBackend is "mongo".
	MongoURI string `mapstructure:"MONGO_URI"`
	// MongoDatabase is the MongoDB database name (default "sessions").
	MongoDatabase string `mapstructure:"MONGO_DB"`
	// SessionIdleTimeout is the inactivity threshold after which a session is
	// closed by the system (e.g. "120s"). Shared by the status path and the reaper.
	SessionIdleTimeout string `mapstructure:"SESSION_IDLE_TIMEOUT"`
	// ReaperInterval is how often the background reaper scans for idle sessions (e.g. "60s").
	ReaperInterval string `mapstructure:"REAPER_INTERVAL"`
	// FieldKey is an optional 64-char hex key (32 bytes). When set, the email
	// field is encrypted before it reaches the store.
	FieldKey string `mapstructure:"FIELD_KEY"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317).
	// Empty disables OTel export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// AuditKafkaBrokers is a comma-separated list of Kafka broker addresses
	// (e.g. "localhost:9092"). When set, session audit events are produced to Kafka.
	AuditKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the Kafka topic for session audit events (default session-audit).
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL the audit worker pushes events to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE_BACKEND", "memory")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DB", "sessions")
	v.SetDefault("SESSION_IDLE_TIMEOUT", "120s")
	v.SetDefault("REAPER_INTERVAL", "60s")
	v.SetDefault("FIELD_KEY", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "session-audit")
	v.SetDefault("KAFKA_GROUP_ID", "session-audit-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	switch cfg.StoreBackend {
	case "memory", "postgres", "mongo":
	default:
		return nil, fmt.Errorf("config: STORE_BACKEND must be memory, postgres, or mongo, got %q", cfg.StoreBackend)
	}
	if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set when STORE_BACKEND=postgres")
	}
	if cfg.StoreBackend == "mongo" && cfg.MongoURI == "" {
		return nil, errors.New("config: MONGO_URI must be set when STORE_BACKEND=mongo")
	}

	if cfg.FieldKey != "" {
		key, err := hex.DecodeString(cfg.FieldKey)
		if err != nil {
			return nil, errors.New("config: FIELD_KEY must be hex-encoded")
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("config: FIELD_KEY must decode to 32 bytes, got %d", len(key))
		}
	}

	return &cfg, nil
}

// IdleTimeout parses SessionIdleTimeout as a time.Duration. Returns 120s if unset or invalid.
func (c *Config) IdleTimeout() time.Duration {
	d, err := time.ParseDuration(c.SessionIdleTimeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// ReapEvery parses ReaperInterval as a time.Duration. Returns 60s if unset or invalid.
func (c *Config) ReapEvery() time.Duration {
	d, err := time.ParseDuration(c.ReaperInterval)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// FieldKeyBytes returns the decoded field cipher key, or nil when FIELD_KEY is unset.
// Load has already validated the encoding and length.
func (c *Config) FieldKeyBytes() []byte {
	if c == nil || c.FieldKey == "" {
		return nil
	}
	key, err := hex.DecodeString(c.FieldKey)
	if err != nil {
		return nil
	}
	return key
}

// AuditKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if audit production is enabled (non-empty list) and to create the producer.
func (c *Config) AuditKafkaBrokersList() []string {
	if c == nil || c.AuditKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.AuditKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
