package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/cmd/stateapi/handlers"
)

// RegisterAnalyticsRoutes registers read-only statistics routes
func RegisterAnalyticsRoutes(api *echo.Group, c *container.Container) {
	h := handlers.NewAnalyticsHandler(c)

	analytics := api.Group("/analytics")
	{
		analytics.GET("/flaky", h.FlakyTests)
		analytics.GET("/success-rate", h.SuccessRate)
		analytics.GET("/execution-stats", h.ExecutionStats)
		analytics.GET("/dashboard", h.Dashboard)
	}
}
