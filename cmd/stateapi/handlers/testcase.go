package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/cmd/stateapi/middleware"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/models"
)

// TestCaseHandler handles the test case registry
type TestCaseHandler struct {
	log *logger.Logger
}

// NewTestCaseHandler creates a new test case handler
func NewTestCaseHandler(c *container.Container) *TestCaseHandler {
	return &TestCaseHandler{log: c.Logger}
}

// CreateTestCase registers a test case
// POST /api/v1/testcases
func (h *TestCaseHandler) CreateTestCase(c echo.Context) error {
	var req models.TestCase
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.TestID == "" {
		return badRequest(c, "test_id is required")
	}

	id, err := middleware.GetManager(c).CreateTestCase(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.log, "create test case", err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":      id,
		"test_id": req.TestID,
	})
}

// GetTestCase retrieves a test case by its external id
// GET /api/v1/testcases/:test_id
func (h *TestCaseHandler) GetTestCase(c echo.Context) error {
	tc, err := middleware.GetManager(c).GetTestCase(c.Request().Context(), c.Param("test_id"))
	if err != nil {
		return respondError(c, h.log, "get test case", err)
	}
	if tc == nil {
		return notFound(c, "test case")
	}
	return c.JSON(http.StatusOK, tc)
}

// UpdateTestCase applies a partial update
// PATCH /api/v1/testcases/:test_id
func (h *TestCaseHandler) UpdateTestCase(c echo.Context) error {
	var req models.TestCaseUpdate
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	updated, err := middleware.GetManager(c).UpdateTestCase(c.Request().Context(), c.Param("test_id"), req)
	if err != nil {
		return respondError(c, h.log, "update test case", err)
	}
	if !updated {
		return notFound(c, "test case")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"updated": true,
	})
}

// DeactivateTestCase retires a test case. Records are never removed.
// DELETE /api/v1/testcases/:test_id
func (h *TestCaseHandler) DeactivateTestCase(c echo.Context) error {
	changed, err := middleware.GetManager(c).DeactivateTestCase(c.Request().Context(), c.Param("test_id"))
	if err != nil {
		return respondError(c, h.log, "deactivate test case", err)
	}
	if !changed {
		return notFound(c, "test case")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": models.TestCaseInactive,
	})
}

// ListTestCases lists test cases by tag, or by status (active by default)
// GET /api/v1/testcases?status=active&tag=smoke&limit=50
func (h *TestCaseHandler) ListTestCases(c echo.Context) error {
	var (
		status string
		tag    string
		limit  int64
	)
	if err := echo.QueryParamsBinder(c).
		String("status", &status).
		String("tag", &tag).
		Int64("limit", &limit).
		BindError(); err != nil {
		return badRequest(c, err.Error())
	}

	list, err := middleware.GetManager(c).ListTestCases(c.Request().Context(), models.TestCaseStatus(status), tag, limit)
	if err != nil {
		return respondError(c, h.log, "list test cases", err)
	}
	if list == nil {
		list = []models.TestCase{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"test_cases": list,
		"count":      len(list),
	})
}
