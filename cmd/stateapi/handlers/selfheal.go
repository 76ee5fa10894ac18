package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/cmd/stateapi/middleware"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/models"
)

// SelfHealHandler handles self-heal decisions and their approval
type SelfHealHandler struct {
	log *logger.Logger
}

// NewSelfHealHandler creates a new self-heal handler
func NewSelfHealHandler(c *container.Container) *SelfHealHandler {
	return &SelfHealHandler{log: c.Logger}
}

// RecordSelfHeal stores a proposed repair as pending
// POST /api/v1/heals
func (h *SelfHealHandler) RecordSelfHeal(c echo.Context) error {
	var req models.SelfHealDecision
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.TestID == "" {
		return badRequest(c, "test_id is required")
	}

	id, err := middleware.GetManager(c).RecordSelfHeal(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.log, "record self-heal decision", err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id": id,
	})
}

// GetSelfHeal retrieves one decision
// GET /api/v1/heals/:id
func (h *SelfHealHandler) GetSelfHeal(c echo.Context) error {
	d, err := middleware.GetManager(c).GetSelfHeal(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, "get self-heal decision", err)
	}
	if d == nil {
		return notFound(c, "self-heal decision")
	}
	return c.JSON(http.StatusOK, d)
}

// PendingApprovals lists decisions awaiting an engineer, newest first
// GET /api/v1/heals/pending
func (h *SelfHealHandler) PendingApprovals(c echo.Context) error {
	pending, err := middleware.GetManager(c).PendingApprovals(c.Request().Context())
	if err != nil {
		return respondError(c, h.log, "list pending approvals", err)
	}
	if pending == nil {
		pending = []models.SelfHealDecision{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"pending": pending,
		"count":   len(pending),
	})
}

// ApproveSelfHeal approves a pending decision. Approving twice, or an
// unknown id, reports approved=false.
// POST /api/v1/heals/:id/approve
func (h *SelfHealHandler) ApproveSelfHeal(c echo.Context) error {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	approved, err := middleware.GetManager(c).ApproveSelfHeal(c.Request().Context(), c.Param("id"), req.Notes)
	if err != nil {
		return respondError(c, h.log, "approve self-heal decision", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"approved": approved,
	})
}

// FindSimilar looks up past decisions with a similar failure reason
// GET /api/v1/heals/similar?reason=...&limit=5
func (h *SelfHealHandler) FindSimilar(c echo.Context) error {
	var (
		reason string
		limit  int64
	)
	if err := echo.QueryParamsBinder(c).
		MustString("reason", &reason).
		Int64("limit", &limit).
		BindError(); err != nil {
		return badRequest(c, err.Error())
	}

	similar, err := middleware.GetManager(c).FindSimilarHeals(c.Request().Context(), reason, limit)
	if err != nil {
		return respondError(c, h.log, "find similar self-heal decisions", err)
	}
	if similar == nil {
		similar = []models.SelfHealDecision{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"similar": similar,
		"count":   len(similar),
	})
}
