package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/common/logger"
)

// HealthChecker reports whether backing services are reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	checker HealthChecker
	log     *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(c *container.Container) *HealthHandler {
	return &HealthHandler{checker: c.Components, log: c.Logger}
}

// Health pings the document store (and Redis when configured)
// GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	if err := h.checker.Health(c.Request().Context()); err != nil {
		h.log.WithContext(c.Request().Context()).Warn("health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "stateapi",
	})
}
