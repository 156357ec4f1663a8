package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_URL"`
}

// NATSConfig holds the event relay configuration.
type NATSConfig struct {
	URL           string `yaml:"url" env:"NATS_URL"`
	SubjectPrefix string `yaml:"subject_prefix" env:"NATS_SUBJECT_PREFIX"`
	RelayEnabled  bool   `yaml:"relay_enabled" env:"NATS_RELAY_ENABLED"`
	// Stream, when set, makes the relay publish through JetStream.
	Stream string `yaml:"stream" env:"NATS_STREAM"`
}

// HTTPConfig holds the operator API configuration.
type HTTPConfig struct {
	Address        string   `yaml:"address" env:"HTTP_ADDRESS"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" envSeparator:","`
}

// ScoringConfig bounds the flag submission path and the event bus.
type ScoringConfig struct {
	LockTimeout         time.Duration `yaml:"lock_timeout" env:"SCORING_LOCK_TIMEOUT"`
	SubmissionTimeout   time.Duration `yaml:"submission_timeout" env:"SCORING_SUBMISSION_TIMEOUT"`
	SubscriberQueueSize int           `yaml:"subscriber_queue_size" env:"SCORING_SUBSCRIBER_QUEUE_SIZE"`
	SubscriberTimeout   time.Duration `yaml:"subscriber_timeout" env:"SCORING_SUBSCRIBER_TIMEOUT"`
	// SubmissionRate is the sustained per-player submissions per second; zero disables limiting.
	SubmissionRate  float64 `yaml:"submission_rate" env:"SCORING_SUBMISSION_RATE"`
	SubmissionBurst int     `yaml:"submission_burst" env:"SCORING_SUBMISSION_BURST"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	Environment    string `yaml:"environment" env:"ENV"`
	Version        string `yaml:"version" env:"VERSION"`
	LogLevel       string `yaml:"log_level" env:"LOG_LEVEL"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	MetricsAddress string `yaml:"metrics_address" env:"METRICS_ADDRESS"`
}

// LoadConfig loads the configuration from a YAML file, then applies any
// environment overrides. A missing file falls back to the environment alone.
func LoadConfig(filename string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if os.Getenv("DATABASE_URL") == "" {
			return nil, errors.New("config file not found and DATABASE_URL is not set")
		}
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "ctf"
	}
	if c.Scoring.LockTimeout <= 0 {
		c.Scoring.LockTimeout = 5 * time.Second
	}
	if c.Scoring.SubmissionTimeout <= 0 {
		c.Scoring.SubmissionTimeout = 10 * time.Second
	}
	if c.Scoring.SubscriberQueueSize <= 0 {
		c.Scoring.SubscriberQueueSize = 256
	}
	if c.Scoring.SubscriberTimeout <= 0 {
		c.Scoring.SubscriberTimeout = 2 * time.Second
	}
	if c.Scoring.SubmissionRate > 0 && c.Scoring.SubmissionBurst <= 0 {
		c.Scoring.SubmissionBurst = 5
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = "production"
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
}
