package container

import (
	"github.com/lyzr/teststate/common/bootstrap"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/middleware"
	"github.com/lyzr/teststate/common/state"
)

// Container holds the dependencies shared by every handler
type Container struct {
	Components *bootstrap.Components
	Tenants    *state.Registry
	Logger     *logger.Logger

	// RateLimiter is nil when tenant rate limiting is off
	RateLimiter        middleware.TenantLimiter
	RateLimitPerMinute int64
}

// NewContainer wires handlers to the bootstrapped components
func NewContainer(components *bootstrap.Components) *Container {
	c := &Container{
		Components: components,
		Tenants:    components.Tenants,
		Logger:     components.Logger,
	}
	if components.RateLimiter != nil {
		c.RateLimiter = components.RateLimiter
		c.RateLimitPerMinute = components.Config.RateLimit.PerTenantPerMinute
	}
	return c
}
