package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/cmd/stateapi/handlers"
)

// RegisterTestCaseRoutes registers the registry and ledger routes
func RegisterTestCaseRoutes(api *echo.Group, c *container.Container) {
	h := handlers.NewTestCaseHandler(c)
	ex := handlers.NewExecutionHandler(c)

	testCases := api.Group("/testcases")
	{
		testCases.POST("", h.CreateTestCase)                       // POST /api/v1/testcases
		testCases.GET("", h.ListTestCases)                         // GET /api/v1/testcases?status=active
		testCases.GET("/:test_id", h.GetTestCase)                  // GET /api/v1/testcases/TC_LOGIN_001
		testCases.PATCH("/:test_id", h.UpdateTestCase)             // PATCH /api/v1/testcases/TC_LOGIN_001
		testCases.DELETE("/:test_id", h.DeactivateTestCase)        // DELETE /api/v1/testcases/TC_LOGIN_001
		testCases.GET("/:test_id/executions", ex.ExecutionHistory) // GET /api/v1/testcases/TC_LOGIN_001/executions
	}

	api.POST("/executions", ex.RecordExecution) // POST /api/v1/executions
}
