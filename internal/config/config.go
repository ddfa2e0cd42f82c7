// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds every setting the binaries read at startup
type Config struct {
	Port        string
	Environment string

	StoreDriver string
	DatabaseURL string // postgres DSN, built from DB_* parts when DATABASE_URL is unset
	SQLitePath  string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret string

	OTLPEndpoint string
	SamplingRate float64

	LogLevel string
	LogFile  string

	AssemblyConcurrency int
	SessionIdleTimeout  time.Duration // zero keeps viewer caches until logout
}

// Load reads envFile (if present) and the process environment.
// A missing envFile is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Port:                v.GetString("PORT"),
		Environment:         v.GetString("ENVIRONMENT"),
		StoreDriver:         strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		SQLitePath:          v.GetString("SQLITE_PATH"),
		RedisHost:           v.GetString("REDIS_HOST"),
		RedisPort:           v.GetString("REDIS_PORT"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		OTLPEndpoint:        v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SamplingRate:        v.GetFloat64("OTEL_TRACES_SAMPLER_ARG"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogFile:             v.GetString("LOG_FILE"),
		AssemblyConcurrency: v.GetInt("FEED_ASSEMBLY_CONCURRENCY"),
		SessionIdleTimeout:  v.GetDuration("FEED_SESSION_IDLE_TIMEOUT"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			v.GetString("DB_HOST"), v.GetString("DB_PORT"), v.GetString("DB_USER"),
			v.GetString("DB_PASSWORD"), v.GetString("DB_NAME"), v.GetString("DB_SSLMODE"))
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8787")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("SQLITE_PATH", "codeconnects.db")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "codeconnects")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", "6379")

	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("OTEL_TRACES_SAMPLER_ARG", 0.1)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "codeconnects.log")

	v.SetDefault("FEED_ASSEMBLY_CONCURRENCY", 8)
	v.SetDefault("FEED_SESSION_IDLE_TIMEOUT", "30m")
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// RedisEnabled reports whether a redis host was configured
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// RedisAddr returns host:port for the redis client
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// Validate returns an error naming every invalid or missing setting
func (c *Config) Validate() error {
	var problems []string

	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("STORE_DRIVER %q must be postgres, sqlite or memory", c.StoreDriver))
	}
	if c.StoreDriver == DriverSQLite && c.SQLitePath == "" {
		problems = append(problems, "SQLITE_PATH is required for the sqlite driver")
	}
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.Port == "" {
		problems = append(problems, "PORT is required")
	}
	if c.AssemblyConcurrency < 1 {
		problems = append(problems, "FEED_ASSEMBLY_CONCURRENCY must be at least 1")
	}
	if c.SessionIdleTimeout < 0 {
		problems = append(problems, "FEED_SESSION_IDLE_TIMEOUT must not be negative")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		problems = append(problems, "OTEL_TRACES_SAMPLER_ARG must be between 0 and 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
