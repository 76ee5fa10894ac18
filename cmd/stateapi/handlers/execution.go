package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/cmd/stateapi/middleware"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/models"
)

// ExecutionHandler handles the execution ledger
type ExecutionHandler struct {
	log *logger.Logger
}

// NewExecutionHandler creates a new execution handler
func NewExecutionHandler(c *container.Container) *ExecutionHandler {
	return &ExecutionHandler{log: c.Logger}
}

// RecordExecution appends one run to the ledger
// POST /api/v1/executions
func (h *ExecutionHandler) RecordExecution(c echo.Context) error {
	var req models.Execution
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.TestCaseID == "" || req.Status == "" {
		return badRequest(c, "test_case_id and status are required")
	}

	id, err := middleware.GetManager(c).RecordExecution(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.log, "record execution", err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id": id,
	})
}

// ExecutionHistory lists the newest runs of a test case
// GET /api/v1/testcases/:test_id/executions?limit=10
func (h *ExecutionHandler) ExecutionHistory(c echo.Context) error {
	var limit int64
	if err := echo.QueryParamsBinder(c).Int64("limit", &limit).BindError(); err != nil {
		return badRequest(c, err.Error())
	}

	history, err := middleware.GetManager(c).ExecutionHistory(c.Request().Context(), c.Param("test_id"), limit)
	if err != nil {
		return respondError(c, h.log, "get execution history", err)
	}
	if history == nil {
		history = []models.Execution{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"executions": history,
		"count":      len(history),
	})
}
