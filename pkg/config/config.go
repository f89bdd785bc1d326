package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/classroom/pkg/auth"
	"github.com/platinummonkey/classroom/pkg/observability"
	"github.com/platinummonkey/classroom/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config
	Redis   storage.RedisConfig

	// Authentication configuration
	Auth AuthConfig

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
	MaxBodyBytes    int64

	// Metrics server (separate port)
	MetricsPort string
}

// AuthConfig holds token, password and policy settings
type AuthConfig struct {
	JWTSecret   string
	TokenTTL    time.Duration
	TokenIssuer string
	BcryptCost  int

	// Principal cache is disabled when the TTL is zero
	PrincipalCacheTTL  time.Duration
	PrincipalCacheSize int

	// Optional YAML policy merged ahead of the built-in rules
	PolicyFile string

	LoginRateLimit  int
	LoginRateWindow time.Duration

	// Proxies (IPs or CIDRs) whose X-Forwarded-For is believed; empty trusts none
	TrustedProxies []string

	// Default admin seeded at startup when AdminPassword is set. Without it a
	// fresh database has no admin and startup logs a warning.
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	Tracing observability.TracingConfig

	// Interval of the users gauge refresh, cron syntax
	StatsSchedule string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CLASSROOM_HOST", "0.0.0.0"),
		Port:            getEnv("CLASSROOM_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CLASSROOM_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CLASSROOM_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CLASSROOM_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CLASSROOM_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("CLASSROOM_MAX_BODY_BYTES", 1<<20),
		MetricsPort:     getEnv("CLASSROOM_METRICS_PORT", "9090"),
	}
}

// loadStorageConfig loads database configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if driver := getEnv("CLASSROOM_DB_DRIVER", ""); driver != "" {
		cfg.Driver = driver
	}
	if url := getEnv("CLASSROOM_DB_URL", ""); url != "" {
		cfg.URL = url
	}
	if maxConns := getEnvInt("CLASSROOM_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxOpenConns = maxConns
	}
	if idleConns := getEnvInt("CLASSROOM_DB_IDLE_CONNS", 0); idleConns > 0 {
		cfg.MaxIdleConns = idleConns
	}
	if timeout := getEnvDuration("CLASSROOM_DB_TIMEOUT", 0); timeout > 0 {
		cfg.ConnectTimeout = timeout
	}

	return cfg
}

// loadRedisConfig loads the optional Redis connection from environment
func loadRedisConfig() storage.RedisConfig {
	return storage.RedisConfig{
		URL:        getEnv("CLASSROOM_REDIS_URL", ""),
		PoolSize:   getEnvInt("CLASSROOM_REDIS_POOL_SIZE", 0),
		MaxRetries: getEnvInt("CLASSROOM_REDIS_MAX_RETRIES", 0),
		Timeout:    getEnvDuration("CLASSROOM_REDIS_TIMEOUT", 5*time.Second),
	}
}

// loadAuthConfig loads authentication configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:          os.Getenv("CLASSROOM_JWT_SECRET"),
		TokenTTL:           getEnvDuration("CLASSROOM_TOKEN_TTL", auth.DefaultTokenTTL),
		TokenIssuer:        getEnv("CLASSROOM_TOKEN_ISSUER", "classroom"),
		BcryptCost:         getEnvInt("CLASSROOM_BCRYPT_COST", 10),
		PrincipalCacheTTL:  getEnvDuration("CLASSROOM_PRINCIPAL_CACHE_TTL", 0),
		PrincipalCacheSize: getEnvInt("CLASSROOM_PRINCIPAL_CACHE_SIZE", 1000),
		PolicyFile:         getEnv("CLASSROOM_POLICY_FILE", ""),
		LoginRateLimit:     getEnvInt("CLASSROOM_LOGIN_RATE_LIMIT", 10),
		LoginRateWindow:    getEnvDuration("CLASSROOM_LOGIN_RATE_WINDOW", time.Minute),
		TrustedProxies:     getEnvList("CLASSROOM_TRUSTED_PROXIES"),
		AdminUsername:      getEnv("CLASSROOM_ADMIN_USERNAME", "admin"),
		AdminEmail:         getEnv("CLASSROOM_ADMIN_EMAIL", "admin@classroom.local"),
		AdminPassword:      os.Getenv("CLASSROOM_ADMIN_PASSWORD"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("CLASSROOM_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("CLASSROOM_METRICS_ENABLED", true),
		Tracing: observability.TracingConfig{
			Enabled:        getEnvBool("CLASSROOM_OTEL_ENABLED", false),
			Endpoint:       getEnv("CLASSROOM_OTEL_ENDPOINT", "localhost:4317"),
			ServiceName:    getEnv("CLASSROOM_OTEL_SERVICE_NAME", "classroom"),
			ServiceVersion: getEnv("CLASSROOM_OTEL_SERVICE_VERSION", "1.0.0"),
			Insecure:       getEnvBool("CLASSROOM_OTEL_INSECURE", true),
			SampleRatio:    getEnvFloat("CLASSROOM_OTEL_SAMPLE_RATIO", 1.0),
		},
		StatsSchedule: getEnv("CLASSROOM_STATS_SCHEDULE", "@every 1m"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.MetricsPort == "" {
		return fmt.Errorf("metrics port is required")
	}
	if c.Server.Port == c.Server.MetricsPort {
		return fmt.Errorf("server port and metrics port must be different")
	}

	// Validate storage config
	switch c.Storage.Driver {
	case storage.DriverPostgres, storage.DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver: %s (must be %s or %s)",
			c.Storage.Driver, storage.DriverPostgres, storage.DriverSQLite)
	}
	if c.Storage.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	// Validate auth config
	if len(c.Auth.JWTSecret) < auth.MinSigningKeyLength {
		return fmt.Errorf("CLASSROOM_JWT_SECRET must be at least %d bytes", auth.MinSigningKeyLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.PrincipalCacheTTL < 0 {
		return fmt.Errorf("principal cache TTL must not be negative")
	}
	if c.Auth.LoginRateLimit <= 0 || c.Auth.LoginRateWindow <= 0 {
		return fmt.Errorf("login rate limit and window must be positive")
	}
	if _, err := auth.ParseTrustedProxies(c.Auth.TrustedProxies); err != nil {
		return fmt.Errorf("CLASSROOM_TRUSTED_PROXIES: %w", err)
	}
	if c.Auth.AdminPassword != "" {
		if c.Auth.AdminUsername == "" || c.Auth.AdminEmail == "" {
			return fmt.Errorf("admin username and email are required when an admin password is set")
		}
		if len(c.Auth.AdminPassword) < auth.MinPasswordLength {
			return fmt.Errorf("admin password must be at least %d characters", auth.MinPasswordLength)
		}
	}

	// Validate OpenTelemetry config
	tracing := c.Observability.Tracing
	if tracing.Enabled {
		if tracing.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if tracing.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// Addr returns the API listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// MetricsAddr returns the metrics listen address
func (s ServerConfig) MetricsAddr() string {
	return s.Host + ":" + s.MetricsPort
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable, dropping empty items
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
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
