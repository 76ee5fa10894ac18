package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/cmd/stateapi/handlers"
)

// RegisterSnapshotRoutes registers UI snapshot routes
func RegisterSnapshotRoutes(api *echo.Group, c *container.Container) {
	h := handlers.NewSnapshotHandler(c)

	snapshots := api.Group("/snapshots")
	{
		snapshots.POST("", h.SaveSnapshot)               // POST /api/v1/snapshots
		snapshots.GET("/:page/latest", h.LatestSnapshot) // GET /api/v1/snapshots/login_page/latest
		snapshots.POST("/:page/diff", h.DetectChanges)   // POST /api/v1/snapshots/login_page/diff
	}
}

// RegisterContextCacheRoutes registers LLM context cache routes
func RegisterContextCacheRoutes(api *echo.Group, c *container.Container) {
	h := handlers.NewContextCacheHandler(c)

	api.PUT("/context-cache/:hash", h.PutContext)
	api.GET("/context-cache/:hash", h.GetContext)
}
