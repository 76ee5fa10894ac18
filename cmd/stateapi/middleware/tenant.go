package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/state"
	"github.com/lyzr/teststate/common/tenant"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ManagerKey is the echo context key holding the tenant's state manager
	ManagerKey ContextKey = "state_manager"
)

// ResolveTenant reads the X-Tenant-ID header and attaches that tenant's
// Manager to the request. Requests without a usable tenant never reach
// the handler.
func ResolveTenant(tenants *state.Registry, log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(tenant.Header)
			if id == "" {
				return c.JSON(http.StatusBadRequest, map[string]interface{}{
					"error": tenant.Header + " header is required",
				})
			}

			ctx := c.Request().Context()
			m, err := tenants.Get(ctx, id)
			switch {
			case errors.Is(err, tenant.ErrInvalidTenant):
				return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
			case errors.Is(err, state.ErrTenantNotAllowed):
				return c.JSON(http.StatusForbidden, map[string]interface{}{"error": err.Error()})
			case err != nil:
				log.WithContext(ctx).Error("failed to resolve tenant", "hospital", id, "error", err)
				return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
					"error": "tenant state unavailable",
				})
			}

			c.SetRequest(c.Request().WithContext(tenant.WithTenant(ctx, id)))
			c.Set(string(ManagerKey), m)
			return next(c)
		}
	}
}

// GetManager retrieves the tenant's Manager set by ResolveTenant
func GetManager(c echo.Context) *state.Manager {
	m, _ := c.Get(string(ManagerKey)).(*state.Manager)
	return m
}
