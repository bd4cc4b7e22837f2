package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service     ServiceConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Queue       QueueConfig
	Cache       CacheConfig
	Marketplace MarketplaceConfig
	Broker      BrokerConfig
	RateLimit   RateLimitConfig
	Telemetry   TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// QueueConfig holds notification stream settings
type QueueConfig struct {
	Type         string // "redis" for production, "memory" for dev/tests
	RecordStream string
}

// CacheConfig holds offer-listing cache settings
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// MarketplaceConfig holds provider-directory settings
type MarketplaceConfig struct {
	// URL of the marketplace offer index.
	URL string
	// FetchTimeout bounds the index fetch before falling back.
	FetchTimeout time.Duration
	// CacheTTL bounds how long a live listing is reused.
	CacheTTL time.Duration
}

// BrokerConfig holds agreement-settlement boundary settings.
// The endpoint is configuration, never a compiled-in constant, so it can
// be swapped per environment and in tests.
type BrokerConfig struct {
	Endpoint     string
	PaymentToken string
	Timeout      time.Duration
}

// RateLimitConfig holds public query-surface limits
type RateLimitConfig struct {
	Enabled       bool
	GlobalLimit   int64
	WindowSeconds int
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "ledger"),
			User:        getEnv("POSTGRES_USER", "ledger"),
			Password:    getEnv("POSTGRES_PASSWORD", "ledger"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Queue: QueueConfig{
			Type:         getEnv("QUEUE_TYPE", "redis"),
			RecordStream: getEnv("RECORD_STREAM", "ledger.records.created"),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Minute),
		},
		Marketplace: MarketplaceConfig{
			URL:          getEnv("MARKETPLACE_URL", "http://localhost:9580/offers"),
			FetchTimeout: getEnvDuration("MARKETPLACE_FETCH_TIMEOUT", 5*time.Second),
			CacheTTL:     getEnvDuration("MARKETPLACE_CACHE_TTL", 30*time.Second),
		},
		Broker: BrokerConfig{
			Endpoint:     getEnv("BROKER_ENDPOINT", "http://localhost:9581/agreements"),
			PaymentToken: getEnv("BROKER_PAYMENT_TOKEN", ""),
			Timeout:      getEnvDuration("BROKER_TIMEOUT", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvBool("RATE_LIMIT_ENABLED", true),
			GlobalLimit:   int64(getEnvInt("RATE_LIMIT_GLOBAL", 300)),
			WindowSeconds: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", true),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Broker.Endpoint == "" {
		return fmt.Errorf("broker endpoint is required")
	}

	if c.Queue.Type != "redis" && c.Queue.Type != "memory" {
		return fmt.Errorf("unknown queue type: %s", c.Queue.Type)
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the host:port address for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
