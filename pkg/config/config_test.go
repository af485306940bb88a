package config

import (
	pkgerrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/clinsight/ade-signal-pipeline/pkg/errors"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9999\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want file value 9999", cfg.Server.Port)
	}
	if cfg.Pipeline.FuzzyThreshold != 85 {
		t.Errorf("FuzzyThreshold = %d, want default 85", cfg.Pipeline.FuzzyThreshold)
	}
	if cfg.Pipeline.MinFreq != 2 || cfg.Pipeline.ConsistencyThreshold != 0.4 {
		t.Errorf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if cfg.Kafka.Topics.MentionBatches != "ade.mention-batches" {
		t.Errorf("topic default = %q", cfg.Kafka.Topics.MentionBatches)
	}
	if cfg.Redis.CacheTTL != 24*time.Hour {
		t.Errorf("CacheTTL default = %v", cfg.Redis.CacheTTL)
	}
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"fuzzy threshold above 100", "pipeline:\n  fuzzyThreshold: 150\n"},
		{"negative fuzzy threshold", "pipeline:\n  fuzzyThreshold: -3\n"},
		{"consistency above 1", "pipeline:\n  consistencyThreshold: 1.2\n"},
		{"negative min freq", "pipeline:\n  minFreq: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			_, err := Load(path)
			if !pkgerrors.Is(err, apperrors.ErrInvalidConfig) {
				t.Errorf("Load error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ADE_POSTGRES_HOST", "db.internal")
	t.Setenv("ADE_PIPELINE_FUZZY_THRESHOLD", "90")
	t.Setenv("ADE_KAFKA_BROKERS", "k1:9092,k2:9092")

	path := writeConfigFile(t, "postgres:\n  host: localhost\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("Postgres.Host = %q, want env override", cfg.Postgres.Host)
	}
	if cfg.Pipeline.FuzzyThreshold != 90 {
		t.Errorf("FuzzyThreshold = %d, want env override 90", cfg.Pipeline.FuzzyThreshold)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "p",
		Database: "adesignal", SSLMode: "disable",
	}.DSN()
	want := "host=localhost port=5432 user=u password=p dbname=adesignal sslmode=disable"
	if dsn != want {
		t.Errorf("DSN = %q, want %q", dsn, want)
	}
}
