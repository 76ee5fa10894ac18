package bootstrap

import (
	"context"
	"fmt"

	"github.com/lyzr/teststate/common/cache"
	"github.com/lyzr/teststate/common/config"
	"github.com/lyzr/teststate/common/db"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/ratelimit"
	"github.com/lyzr/teststate/common/redis"
	"github.com/lyzr/teststate/common/state"
	"github.com/lyzr/teststate/common/telemetry"
	"github.com/lyzr/teststate/common/tenant"
)

// Setup initializes all service components
// This is the main entry point for the API server and the CLI
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	// Apply options
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := components.Config

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.NewWithFile(cfg.Service.LogLevel, cfg.Service.LogFormat, cfg.Service.LogFile)
		components.addCleanup(components.Logger.Close)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", cfg.Service.Environment,
	)

	// 3. Initialize document store
	if options.store != nil {
		components.Store = options.store
	} else {
		components.Logger.Info("connecting to document store")
		components.DB, err = db.New(ctx, cfg, components.Logger)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to document store: %w", err)
		}
		components.Store = components.DB.Store()

		components.addCleanup(func() error {
			return components.DB.Close(context.Background())
		})

		if options.dbInitHook != nil {
			components.Logger.Info("running database init hook")
			if err := options.dbInitHook(components.DB); err != nil {
				components.Shutdown(ctx) // Cleanup what we've initialized
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	// 4. Initialize redis (redis cache backend or tenant rate limiting)
	if cfg.NeedsRedis() {
		if options.redisClient != nil {
			components.Redis = options.redisClient
		} else {
			components.Logger.Info("connecting to redis", "addr", cfg.Redis.Addr)
			components.Redis, err = redis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, components.Logger)
			if err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("failed to connect to redis: %w", err)
			}
			components.addCleanup(func() error {
				components.Logger.Info("closing redis connection")
				return components.Redis.Close()
			})
		}
	}

	if components.Redis != nil && cfg.RateLimit.PerTenantPerMinute > 0 {
		components.RateLimiter = ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), components.Logger)
	}

	// 5. Tenant registry
	components.Tenants = state.NewRegistry(state.RegistryConfig{
		Store:           components.Store,
		Logger:          components.Logger,
		NamespacePrefix: cfg.Store.NamespacePrefix,
		Allowed:         cfg.Tenants.Allowed,
		NewCache:        components.cacheFactory(),
		Options:         []state.Option{state.WithDefaultCacheTTL(cfg.Cache.DefaultTTL)},
	})
	components.addCleanup(components.Tenants.Close)

	// 6. Initialize telemetry (if not skipped)
	if !options.skipTelemetry && (cfg.Telemetry.EnablePprof || cfg.Telemetry.EnableMetrics) {
		components.Logger.Info("initializing telemetry")
		pprofPort, metricsPort := 0, 0
		if cfg.Telemetry.EnablePprof {
			pprofPort = cfg.Telemetry.PprofPort
		}
		if cfg.Telemetry.EnableMetrics {
			metricsPort = cfg.Telemetry.MetricsPort
		}
		components.Telemetry = telemetry.New(pprofPort, metricsPort, components.Logger)

		if err := components.Telemetry.Start(ctx); err != nil {
			components.Logger.Warn("failed to start telemetry", "error", err)
			// Don't fail startup if telemetry fails
		} else {
			components.addCleanup(func() error {
				return components.Telemetry.Stop(context.Background())
			})
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"cache_backend", cfg.Cache.Backend,
		"redis", components.Redis != nil,
		"rate_limit", cfg.RateLimit.PerTenantPerMinute,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

// cacheFactory maps the configured backend onto a per-tenant cache.
// The store backend returns nil so each Manager uses its own collection.
func (c *Components) cacheFactory() state.CacheFactory {
	switch c.Config.Cache.Backend {
	case config.CacheBackendMemory:
		return func(*tenant.Context) (cache.Cache, error) {
			return cache.Instrument(cache.NewMemoryCache(c.Logger, nil), config.CacheBackendMemory), nil
		}
	case config.CacheBackendRedis:
		return func(tc *tenant.Context) (cache.Cache, error) {
			return cache.Instrument(cache.NewRedisCache(c.Redis, tc.ID(), nil), config.CacheBackendRedis), nil
		}
	default:
		return nil
	}
}

// MustSetup is like Setup but panics on error
// Useful for services that can't recover from initialization failure
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
