package errors

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pipedesk/pipedesk/pkg/models"
)

// BadRequest returns a 400 with the given message in the envelope.
// The message is safe to expose (validation detail, bad id, ...).
func BadRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.Fail(message))
}

// ValidationError returns a 400 for a failed request validation, logging the
// underlying error for debugging
func ValidationError(c echo.Context, err error) error {
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)
	return c.JSON(http.StatusBadRequest, models.Fail(err.Error()))
}

// Unauthorized returns a 401
func Unauthorized(c echo.Context, message string) error {
	if message == "" {
		message = "Not authorized to access this resource"
	}
	return c.JSON(http.StatusUnauthorized, models.Fail(message))
}

// Forbidden returns a 403
func Forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, models.Fail("You do not have permission to perform this action"))
}

// NotFound returns a 404. Documents owned by another user report the same
// message as missing ones, so ownership is never leaked.
func NotFound(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, models.Fail(resource+" not found"))
}

// Conflict returns a 409 with a message that is safe to expose
func Conflict(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, models.Fail(message))
}

// DatabaseError returns a generic 500 without exposing internal details
func DatabaseError(c echo.Context, err error) error {
	log.Printf("[DATABASE ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)
	return c.JSON(http.StatusInternalServerError, models.Fail("A database error occurred. Please try again later."))
}

// InternalError returns a generic 500
func InternalError(c echo.Context, err error) error {
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)
	return c.JSON(http.StatusInternalServerError, models.Fail("An internal error occurred. Please try again later."))
}
