package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/cmd/stateapi/middleware"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/models"
	"github.com/lyzr/teststate/common/repository"
)

// AnalyticsHandler serves read-only tenant statistics
type AnalyticsHandler struct {
	log *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(c *container.Container) *AnalyticsHandler {
	return &AnalyticsHandler{log: c.Logger}
}

// FlakyTests lists tests whose pass rate sits in the flaky band
// GET /api/v1/analytics/flaky?min=0.3&max=0.7&min_runs=5
func (h *AnalyticsHandler) FlakyTests(c echo.Context) error {
	var opts repository.FlakyOptions
	if err := echo.QueryParamsBinder(c).
		Float64("min", &opts.PassRateMin).
		Float64("max", &opts.PassRateMax).
		Int("min_runs", &opts.MinRuns).
		BindError(); err != nil {
		return badRequest(c, err.Error())
	}

	flaky, err := middleware.GetManager(c).FlakyTests(c.Request().Context(), opts)
	if err != nil {
		return respondError(c, h.log, "find flaky tests", err)
	}
	if flaky == nil {
		flaky = []models.FlakyTest{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"flaky_tests": flaky,
		"count":       len(flaky),
	})
}

// SuccessRate reports the share of approved self-heal decisions
// GET /api/v1/analytics/success-rate?days=30
func (h *AnalyticsHandler) SuccessRate(c echo.Context) error {
	var days int
	if err := echo.QueryParamsBinder(c).Int("days", &days).BindError(); err != nil {
		return badRequest(c, err.Error())
	}

	rate, err := middleware.GetManager(c).SelfHealSuccessRate(c.Request().Context(), days)
	if err != nil {
		return respondError(c, h.log, "compute self-heal success rate", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success_rate": rate,
	})
}

// ExecutionStats reports per-status counts and mean durations
// GET /api/v1/analytics/execution-stats?days=7
func (h *AnalyticsHandler) ExecutionStats(c echo.Context) error {
	var days int
	if err := echo.QueryParamsBinder(c).Int("days", &days).BindError(); err != nil {
		return badRequest(c, err.Error())
	}

	stats, err := middleware.GetManager(c).ExecutionStats(c.Request().Context(), days)
	if err != nil {
		return respondError(c, h.log, "compute execution stats", err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Dashboard bundles the tenant summaries
// GET /api/v1/analytics/dashboard
func (h *AnalyticsHandler) Dashboard(c echo.Context) error {
	dash, err := middleware.GetManager(c).Dashboard(c.Request().Context())
	if err != nil {
		return respondError(c, h.log, "build dashboard", err)
	}
	return c.JSON(http.StatusOK, dash)
}
