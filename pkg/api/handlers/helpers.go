package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// currentUserID reads the authenticated user id set by the JWT middleware
func currentUserID(c echo.Context) (primitive.ObjectID, bool) {
	id, ok := c.Get("user_id").(primitive.ObjectID)
	return id, ok
}

// pathID parses the :id path parameter as an ObjectID
func pathID(c echo.Context) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(c.Param("id"))
}

// pageParams reads the page and limit query parameters, zero when absent.
// Services clamp them to their real bounds.
func pageParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return page, limit
}
