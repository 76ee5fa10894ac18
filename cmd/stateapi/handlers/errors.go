package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/models"
	"github.com/lyzr/teststate/common/repository"
	"github.com/lyzr/teststate/common/state"
	"github.com/lyzr/teststate/common/tenant"
)

// statusFor maps state errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, docstore.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, docstore.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, repository.ErrInvalid),
		errors.Is(err, tenant.ErrInvalidTenant),
		errors.Is(err, models.ErrReservedField):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrTenantNotAllowed):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}. Server-side failures are
// logged and their detail withheld.
func respondError(c echo.Context, log *logger.Logger, action string, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithContext(c.Request().Context()).Error("failed to "+action, "error", err)
		return c.JSON(status, map[string]interface{}{
			"error": "failed to " + action,
		})
	}
	return c.JSON(status, map[string]interface{}{
		"error": err.Error(),
	})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"error": msg,
	})
}

func notFound(c echo.Context, what string) error {
	return c.JSON(http.StatusNotFound, map[string]interface{}{
		"error": what + " not found",
	})
}
