package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/lyzr/teststate/common/config"
	"github.com/lyzr/teststate/common/db"
	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/ratelimit"
	"github.com/lyzr/teststate/common/redis"
	"github.com/lyzr/teststate/common/state"
	"github.com/lyzr/teststate/common/telemetry"
)

const healthTimeout = 3 * time.Second

// Components holds all initialized service dependencies
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *db.DB // nil when the store was supplied by the caller
	Store     docstore.Store
	Redis     *redis.Client // nil unless a feature needs Redis
	Telemetry *telemetry.Telemetry
	Tenants   *state.Registry

	// RateLimiter is nil when tenant rate limiting is off
	RateLimiter *ratelimit.RateLimiter

	// Internal
	cleanupFuncs []func() error
}

// Shutdown performs graceful shutdown of all components
// Should be called with defer after Setup()
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errors []error

	// Run cleanup functions in reverse order (LIFO)
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errors = append(errors, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}
	c.cleanupFuncs = nil

	if len(errors) > 0 {
		return fmt.Errorf("shutdown errors: %v", errors)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks the document store and, when configured, Redis
func (c *Components) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := c.Store.Ping(ctx); err != nil {
		return fmt.Errorf("document store unhealthy: %w", err)
	}

	if c.Redis != nil {
		if err := c.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}

	return nil
}

// addCleanup registers a cleanup function
func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
