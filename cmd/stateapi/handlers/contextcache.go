package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/cmd/stateapi/middleware"
	"github.com/lyzr/teststate/common/logger"
)

// ContextCacheHandler handles the LLM context cache
type ContextCacheHandler struct {
	log *logger.Logger
}

// NewContextCacheHandler creates a new context cache handler
func NewContextCacheHandler(c *container.Container) *ContextCacheHandler {
	return &ContextCacheHandler{log: c.Logger}
}

// PutContext stores context under a prompt hash. ttl_hours <= 0 uses the
// configured default.
// PUT /api/v1/context-cache/:hash
func (h *ContextCacheHandler) PutContext(c echo.Context) error {
	var req struct {
		ContextData map[string]interface{} `json:"context_data"`
		TTLHours    float64                `json:"ttl_hours"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	ttl := time.Duration(req.TTLHours * float64(time.Hour))
	if err := middleware.GetManager(c).CacheContext(c.Request().Context(), c.Param("hash"), req.ContextData, ttl); err != nil {
		return respondError(c, h.log, "cache context", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetContext returns unexpired context for a prompt hash
// GET /api/v1/context-cache/:hash
func (h *ContextCacheHandler) GetContext(c echo.Context) error {
	data, found, err := middleware.GetManager(c).CachedContext(c.Request().Context(), c.Param("hash"))
	if err != nil {
		return respondError(c, h.log, "get cached context", err)
	}
	if !found {
		return notFound(c, "cached context")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"context_data": data,
	})
}
