package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pipedesk/pipedesk/pkg/models"
)

// RequireAdmin ensures the authenticated user has the admin role.
// It relies on the JWT middleware having resolved the account already.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("user_role").(string)
			if !ok {
				return c.JSON(http.StatusUnauthorized, models.Fail("Authentication required"))
			}

			if role != models.RoleAdmin {
				return c.JSON(http.StatusForbidden, models.Fail("Admin access required"))
			}

			return next(c)
		}
	}
}
