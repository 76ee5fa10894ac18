package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/cmd/stateapi/middleware"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/models"
)

// SnapshotHandler handles UI snapshots and change detection
type SnapshotHandler struct {
	log *logger.Logger
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(c *container.Container) *SnapshotHandler {
	return &SnapshotHandler{log: c.Logger}
}

// SaveSnapshot stores a page fingerprint
// POST /api/v1/snapshots
func (h *SnapshotHandler) SaveSnapshot(c echo.Context) error {
	var req models.UISnapshot
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.PageIdentifier == "" {
		return badRequest(c, "page_identifier is required")
	}

	id, err := middleware.GetManager(c).SaveSnapshot(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.log, "save snapshot", err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id": id,
	})
}

// LatestSnapshot returns the newest snapshot of a page
// GET /api/v1/snapshots/:page/latest
func (h *SnapshotHandler) LatestSnapshot(c echo.Context) error {
	snap, err := middleware.GetManager(c).LatestSnapshot(c.Request().Context(), c.Param("page"))
	if err != nil {
		return respondError(c, h.log, "get latest snapshot", err)
	}
	if snap == nil {
		return notFound(c, "snapshot")
	}
	return c.JSON(http.StatusOK, snap)
}

// DetectChanges diffs the posted selectors against the latest snapshot.
// Nothing is stored.
// POST /api/v1/snapshots/:page/diff
func (h *SnapshotHandler) DetectChanges(c echo.Context) error {
	var req models.UISnapshot
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	diff, err := middleware.GetManager(c).DetectUIChanges(c.Request().Context(), c.Param("page"), &req)
	if err != nil {
		return respondError(c, h.log, "detect ui changes", err)
	}
	return c.JSON(http.StatusOK, diff)
}
