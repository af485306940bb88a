// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Kafka, Redis, Reference, Pipeline,
// Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/clinsight/ade-signal-pipeline/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Reference ReferenceConfig `yaml:"reference"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the validator service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the result
// store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	MentionBatches string `yaml:"mentionBatches"`
	Decisions      string `yaml:"decisions"`
}

// RedisConfig holds Redis connection and caching parameters for the
// fuzzy-match memoisation cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// ReferenceConfig locates the pharmacovigilance source tables.
type ReferenceConfig struct {
	DrugTablePath   string `yaml:"drugTablePath"`
	EffectTablePath string `yaml:"effectTablePath"`
	ATCMapPath      string `yaml:"atcMapPath"`
}

// PipelineConfig holds the evidence-pipeline thresholds and tuning knobs.
type PipelineConfig struct {
	FuzzyThreshold       int           `yaml:"fuzzyThreshold"`
	MinFreq              int           `yaml:"minFreq"`
	ConsistencyThreshold float64       `yaml:"consistencyThreshold"`
	MatchWorkers         int           `yaml:"matchWorkers"`
	UseFallbackScorer    bool          `yaml:"useFallbackScorer"`
	BatchTimeout         time.Duration `yaml:"batchTimeout"`
}

// LoggingConfig controls slog level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads the YAML file at path, applies environment overrides, fills in
// defaults, and validates thresholds. Threshold violations are surfaced
// immediately rather than clamped.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration, validated, without reading a
// file. Used by the batch CLIs when no config file is supplied.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "adesignal",
			User:            "adesignal",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "ade-validator",
			Topics: KafkaTopics{
				MentionBatches: "ade.mention-batches",
				Decisions:      "ade.decisions",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 24 * time.Hour,
		},
		Pipeline: PipelineConfig{
			FuzzyThreshold:       85,
			MinFreq:              2,
			ConsistencyThreshold: 0.4,
			MatchWorkers:         8,
			BatchTimeout:         5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate checks threshold ranges before any processing begins.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.FuzzyThreshold < 0 || p.FuzzyThreshold > 100 {
		return fmt.Errorf("%w: pipeline.fuzzyThreshold %d outside [0,100]", apperrors.ErrInvalidConfig, p.FuzzyThreshold)
	}
	if p.MinFreq < 0 {
		return fmt.Errorf("%w: pipeline.minFreq %d must be non-negative", apperrors.ErrInvalidConfig, p.MinFreq)
	}
	if p.ConsistencyThreshold < 0 || p.ConsistencyThreshold > 1 {
		return fmt.Errorf("%w: pipeline.consistencyThreshold %v outside [0,1]", apperrors.ErrInvalidConfig, p.ConsistencyThreshold)
	}
	if p.MatchWorkers < 0 {
		return fmt.Errorf("%w: pipeline.matchWorkers %d must be non-negative", apperrors.ErrInvalidConfig, p.MatchWorkers)
	}
	return nil
}

// applyEnvOverrides replaces config values with ADE_*-prefixed environment
// variables when set, so deployments can override the file without editing
// it.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ADE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ADE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("ADE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("ADE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("ADE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("ADE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("ADE_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("ADE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ADE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ADE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ADE_REFERENCE_DRUG_TABLE"); v != "" {
		cfg.Reference.DrugTablePath = v
	}
	if v := os.Getenv("ADE_REFERENCE_EFFECT_TABLE"); v != "" {
		cfg.Reference.EffectTablePath = v
	}
	if v := os.Getenv("ADE_REFERENCE_ATC_MAP"); v != "" {
		cfg.Reference.ATCMapPath = v
	}
	if v := os.Getenv("ADE_PIPELINE_FUZZY_THRESHOLD"); v != "" {
		if t, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.FuzzyThreshold = t
		}
	}
	if v := os.Getenv("ADE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ADE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
