package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cache backends understood by CacheConfig.Backend
const (
	CacheBackendStore  = "store"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Store     StoreConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Tenants   TenantConfig
	RateLimit RateLimitConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
	LogFile     string // optional; rotated with lumberjack when set
}

// StoreConfig holds document store connection settings
type StoreConfig struct {
	URI                    string // "memory://" selects the in-process store
	NamespacePrefix        string
	MaxPoolSize            int
	ServerSelectionTimeout time.Duration
	ConnectTimeout         time.Duration
	OperationTimeout       time.Duration
	RetryWrites            bool
}

// CacheConfig holds LLM context cache settings
type CacheConfig struct {
	Backend    string
	DefaultTTL time.Duration
}

// RedisConfig holds Redis connection settings (used by the redis cache backend)
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// TenantConfig restricts which hospital tenants may be served.
// An empty Allowed list admits every tenant.
type TenantConfig struct {
	Allowed []string
}

// RateLimitConfig caps API requests per tenant. Zero disables the limit;
// a positive value requires Redis.
type RateLimitConfig struct {
	PerTenantPerMinute int64
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	return LoadFile(serviceName, "")
}

// LoadFile loads configuration from an optional file, with environment
// variables taking precedence over file values.
func LoadFile(serviceName, path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        v.GetInt("port"),
			Environment: v.GetString("environment"),
			LogLevel:    v.GetString("log_level"),
			LogFormat:   v.GetString("log_format"),
			LogFile:     v.GetString("log_file"),
		},
		Store: StoreConfig{
			URI:                    v.GetString("store_uri"),
			NamespacePrefix:        v.GetString("store_namespace_prefix"),
			MaxPoolSize:            v.GetInt("store_max_pool_size"),
			ServerSelectionTimeout: v.GetDuration("store_server_selection_timeout"),
			ConnectTimeout:         v.GetDuration("store_connect_timeout"),
			OperationTimeout:       v.GetDuration("store_operation_timeout"),
			RetryWrites:            v.GetBool("store_retry_writes"),
		},
		Cache: CacheConfig{
			Backend:    strings.ToLower(v.GetString("cache_backend")),
			DefaultTTL: v.GetDuration("cache_default_ttl"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   v.GetBool("enable_pprof"),
			PprofPort:     v.GetInt("pprof_port"),
			EnableMetrics: v.GetBool("enable_metrics"),
			MetricsPort:   v.GetInt("metrics_port"),
		},
		Tenants: TenantConfig{
			Allowed: splitList(v.GetStringSlice("allowed_tenants")),
		},
		RateLimit: RateLimitConfig{
			PerTenantPerMinute: v.GetInt64("rate_limit_per_tenant"),
		},
	}

	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text") // Default to text for development
	v.SetDefault("log_file", "")

	v.SetDefault("store_uri", "mongodb://localhost:27017/")
	v.SetDefault("store_namespace_prefix", "test_automation_")
	v.SetDefault("store_max_pool_size", 50)
	v.SetDefault("store_server_selection_timeout", 5*time.Second)
	v.SetDefault("store_connect_timeout", 10*time.Second)
	v.SetDefault("store_operation_timeout", 10*time.Second)
	v.SetDefault("store_retry_writes", true)

	v.SetDefault("cache_backend", CacheBackendStore)
	v.SetDefault("cache_default_ttl", 24*time.Hour)

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("enable_pprof", false)
	v.SetDefault("pprof_port", 6060)
	v.SetDefault("enable_metrics", true)
	v.SetDefault("metrics_port", 9090)

	v.SetDefault("allowed_tenants", []string{})
	v.SetDefault("rate_limit_per_tenant", 0)
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Store.URI == "" {
		return errors.New("store uri is required")
	}

	if c.Store.MaxPoolSize < 1 {
		return fmt.Errorf("invalid store max pool size: %d", c.Store.MaxPoolSize)
	}

	if c.Store.ServerSelectionTimeout <= 0 || c.Store.ConnectTimeout <= 0 {
		return errors.New("store timeouts must be positive")
	}

	switch c.Cache.Backend {
	case CacheBackendStore, CacheBackendRedis, CacheBackendMemory:
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}

	if c.RateLimit.PerTenantPerMinute < 0 {
		return fmt.Errorf("invalid rate limit: %d", c.RateLimit.PerTenantPerMinute)
	}

	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("invalid cache default ttl: %s", c.Cache.DefaultTTL)
	}

	return nil
}

// NeedsRedis reports whether any configured feature uses Redis
func (c *Config) NeedsRedis() bool {
	return c.Cache.Backend == CacheBackendRedis || c.RateLimit.PerTenantPerMinute > 0
}

// IsMemoryStore reports whether the in-process document store was requested
func (c *Config) IsMemoryStore() bool {
	return strings.HasPrefix(strings.ToLower(c.Store.URI), "memory://")
}

// splitList flattens comma separated entries; env values arrive as one string.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
