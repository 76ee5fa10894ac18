package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/cmd/stateapi/handlers"
	"github.com/lyzr/teststate/cmd/stateapi/middleware"
	commonmw "github.com/lyzr/teststate/common/middleware"
)

// Register mounts /health and every tenant-scoped /api/v1 route
func Register(e *echo.Echo, c *container.Container) {
	health := handlers.NewHealthHandler(c)
	e.GET("/health", health.Health)

	api := e.Group("/api/v1", middleware.ResolveTenant(c.Tenants, c.Logger))
	if c.RateLimiter != nil {
		api.Use(commonmw.TenantRateLimitMiddleware(c.RateLimiter, c.RateLimitPerMinute))
	}
	RegisterTestCaseRoutes(api, c)
	RegisterSelfHealRoutes(api, c)
	RegisterSnapshotRoutes(api, c)
	RegisterContextCacheRoutes(api, c)
	RegisterAnalyticsRoutes(api, c)
}
