package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/common/ratelimit"
	"github.com/lyzr/teststate/common/tenant"
)

const windowSeconds = 60

// TenantLimiter counts requests per tenant
type TenantLimiter interface {
	CheckTenantLimit(ctx context.Context, hospitalID string, limit int64, windowSec int) (*ratelimit.RateLimitResult, error)
}

// TenantRateLimitMiddleware caps requests per tenant per minute. It must run
// after the tenant has been resolved onto the request context. Limiter
// errors let the request through.
func TenantRateLimitMiddleware(limiter TenantLimiter, limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			hospitalID, ok := tenant.FromContext(c.Request().Context())
			if !ok {
				return next(c)
			}

			result, err := limiter.CheckTenantLimit(c.Request().Context(), hospitalID, limit, windowSeconds)
			if err != nil {
				// On error, allow request (fail open for availability)
				return next(c)
			}

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "tenant_rate_limit_exceeded",
					"message": "Tenant request quota exceeded. Please wait before trying again.",
					"details": map[string]interface{}{
						"hospital":            hospitalID,
						"limit":               result.Limit,
						"window":              "60 seconds",
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
