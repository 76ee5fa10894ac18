package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/cmd/stateapi/handlers"
)

// RegisterSelfHealRoutes registers decision and approval routes
func RegisterSelfHealRoutes(api *echo.Group, c *container.Container) {
	h := handlers.NewSelfHealHandler(c)

	heals := api.Group("/heals")
	{
		heals.POST("", h.RecordSelfHeal)              // POST /api/v1/heals
		heals.GET("/pending", h.PendingApprovals)     // GET /api/v1/heals/pending
		heals.GET("/similar", h.FindSimilar)          // GET /api/v1/heals/similar?reason=...
		heals.GET("/:id", h.GetSelfHeal)              // GET /api/v1/heals/{heal_id}
		heals.POST("/:id/approve", h.ApproveSelfHeal) // POST /api/v1/heals/{heal_id}/approve
	}
}
