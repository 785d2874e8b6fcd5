// Package config loads service configuration from an optional YAML file
// with environment variable overrides applied on top.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/stampd-app/stampd/pkg/logger"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Database  DatabaseConfig       `yaml:"database"`
	Redis     RedisConfig          `yaml:"redis"`
	Auth      AuthConfig           `yaml:"auth"`
	Analytics AnalyticsConfig      `yaml:"analytics"`
	Logging   logger.LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"STAMPD_HOST"`
	Port            int           `yaml:"port" env:"STAMPD_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"STAMPD_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"STAMPD_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"STAMPD_SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" env:"STAMPD_RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"STAMPD_RATE_LIMIT_BURST"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// DatabaseConfig controls the PostgreSQL connection. An empty URL selects
// the in-memory store.
type DatabaseConfig struct {
	URL          string        `yaml:"url" env:"DATABASE_URL"`
	MaxOpenConns int           `yaml:"max_open_conns" env:"STAMPD_DB_MAX_OPEN_CONNS"`
	MaxIdleConns int           `yaml:"max_idle_conns" env:"STAMPD_DB_MAX_IDLE_CONNS"`
	ConnLifetime time.Duration `yaml:"conn_lifetime" env:"STAMPD_DB_CONN_LIFETIME"`
	Migrate      bool          `yaml:"migrate" env:"STAMPD_DB_MIGRATE"`
}

// RedisConfig controls the daily-counter cache. An empty address keeps
// counters in the primary store.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// AuthConfig controls session issuance.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"STAMPD_JWT_SECRET"`
}

// AnalyticsConfig controls counter retention and the nightly rollup.
type AnalyticsConfig struct {
	RetentionDays  int    `yaml:"retention_days" env:"STAMPD_ANALYTICS_RETENTION_DAYS"`
	RollupSchedule string `yaml:"rollup_schedule" env:"STAMPD_ANALYTICS_ROLLUP_SCHEDULE"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			ConnLifetime: 5 * time.Minute,
			Migrate:      true,
		},
		Auth: AuthConfig{},
		Analytics: AnalyticsConfig{
			RetentionDays:  365,
			RollupSchedule: "10 0 * * *",
		},
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// it exists, then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// File is optional; env and defaults carry the config.
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required (set STAMPD_JWT_SECRET)")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth jwt_secret must be at least 16 bytes")
	}
	if c.Analytics.RetentionDays < 1 {
		return fmt.Errorf("analytics retention_days must be at least 1")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
