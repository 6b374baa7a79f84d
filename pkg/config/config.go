package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Snapshot source kinds
const (
	SourceSQL  = "sql"
	SourceFile = "file"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Snapshot source configuration
	Snapshot SnapshotConfig

	// Ability cache configuration
	Cache CacheConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// Header carrying the upstream-authenticated user id
	UserHeader string

	MaxBodyBytes int64
}

// SnapshotConfig selects where user snapshots come from
type SnapshotConfig struct {
	Source   string
	DBDriver string
	DBDSN    string
	File     string

	// Apply migrations and seed preset roles on startup (sql source only)
	Migrate bool
}

// CacheConfig sizes the per-user ability cache
type CacheConfig struct {
	Size int
	TTL  time.Duration

	// Optional shared version store; empty means in-process versions
	RedisURL string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Snapshot:      loadSnapshotConfig(),
		Cache:         loadCacheConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("MESAUTHZ_HOST", "0.0.0.0"),
		Port:            getEnv("MESAUTHZ_PORT", "8080"),
		ReadTimeout:     getEnvDuration("MESAUTHZ_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("MESAUTHZ_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("MESAUTHZ_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("MESAUTHZ_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("MESAUTHZ_HEALTH_PORT", "9090"),
		UserHeader:      getEnv("MESAUTHZ_USER_HEADER", "X-User-ID"),
		MaxBodyBytes:    getEnvInt64("MESAUTHZ_MAX_BODY_BYTES", 1<<20),
	}
}

func loadSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		Source:   strings.ToLower(getEnv("MESAUTHZ_SOURCE", SourceSQL)),
		DBDriver: strings.ToLower(getEnv("MESAUTHZ_DB_DRIVER", DriverSQLite)),
		DBDSN:    getEnv("MESAUTHZ_DB_DSN", "file:mesauthz.db?_foreign_keys=on"),
		File:     getEnv("MESAUTHZ_SNAPSHOT_FILE", ""),
		Migrate:  getEnvBool("MESAUTHZ_MIGRATE", true),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Size:     getEnvInt("MESAUTHZ_CACHE_SIZE", 4096),
		TTL:      getEnvDuration("MESAUTHZ_CACHE_TTL", 5*time.Minute),
		RedisURL: getEnv("MESAUTHZ_REDIS_URL", ""),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           strings.ToLower(getEnv("MESAUTHZ_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("MESAUTHZ_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("MESAUTHZ_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("MESAUTHZ_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("MESAUTHZ_OTEL_SERVICE_NAME", "mesauthzd"),
		OTelServiceVersion: getEnv("MESAUTHZ_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("MESAUTHZ_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("MESAUTHZ_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.UserHeader == "" {
		return fmt.Errorf("user header is required")
	}

	switch c.Snapshot.Source {
	case SourceSQL:
		switch c.Snapshot.DBDriver {
		case DriverSQLite, DriverPostgres:
		default:
			return fmt.Errorf("invalid database driver: %s (must be sqlite3 or postgres)", c.Snapshot.DBDriver)
		}
		if c.Snapshot.DBDSN == "" {
			return fmt.Errorf("database DSN is required for sql source")
		}
	case SourceFile:
		if c.Snapshot.File == "" {
			return fmt.Errorf("snapshot file is required for file source")
		}
	default:
		return fmt.Errorf("invalid snapshot source: %s (must be sql or file)", c.Snapshot.Source)
	}

	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	return nil
}

// Addr returns the API listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// HealthAddr returns the health/metrics listen address
func (s ServerConfig) HealthAddr() string {
	return s.Host + ":" + s.HealthPort
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
