// Package config loads service configuration from a YAML file with
// environment variable overrides for deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the audience engine.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Logging      LoggingConfig      `yaml:"logging"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the optional Redis connection for cross-host
// refresh locking. An empty URL disables Redis and falls back to
// Postgres advisory locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// SegmentationConfig tunes the materialization engine.
type SegmentationConfig struct {
	ChunkSize             int `yaml:"chunk_size"`
	RefreshLockTTLSeconds int `yaml:"refresh_lock_ttl_seconds"`
	MemberPageSizeMax     int `yaml:"member_page_size_max"`
}

// RefreshLockTTL returns the per-segment lock TTL as a duration.
func (s SegmentationConfig) RefreshLockTTL() time.Duration {
	return time.Duration(s.RefreshLockTTLSeconds) * time.Second
}

// Load reads configuration from a YAML file and applies defaults.
// A missing file is not an error; defaults plus env overrides are enough
// to run.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Segmentation.ChunkSize == 0 {
		cfg.Segmentation.ChunkSize = 500
	}
	if cfg.Segmentation.RefreshLockTTLSeconds == 0 {
		cfg.Segmentation.RefreshLockTTLSeconds = 300
	}
	if cfg.Segmentation.MemberPageSizeMax == 0 {
		cfg.Segmentation.MemberPageSizeMax = 1000
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file (if present) is read first so secrets can live there
// locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}
