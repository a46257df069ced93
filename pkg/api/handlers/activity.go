package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/pipedesk/pipedesk/pkg/activities"
	"github.com/pipedesk/pipedesk/pkg/api/errors"
	"github.com/pipedesk/pipedesk/pkg/metrics"
	"github.com/pipedesk/pipedesk/pkg/models"
)

// ActivityHandler handles activity CRUD and calendar endpoints
type ActivityHandler struct {
	activities *activities.Service
	metrics    *metrics.Metrics
	validator  *validator.Validate
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activitySvc *activities.Service, m *metrics.Metrics) *ActivityHandler {
	return &ActivityHandler{
		activities: activitySvc,
		metrics:    m,
		validator:  validator.New(),
	}
}

// List returns the user's activities with filters and pagination
func (h *ActivityHandler) List(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var filter models.ActivityFilter
	if err := c.Bind(&filter); err != nil {
		return errors.BadRequest(c, "Invalid query parameters")
	}
	page, limit := pageParams(c)

	items, total, err := h.activities.List(c.Request().Context(), userID, filter, page, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, models.Paginated(items, models.NewPagination(page, limit, total)))
}

// Get returns one activity
func (h *ActivityHandler) Get(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Activity")
	}

	activity, err := h.activities.Get(c.Request().Context(), userID, id)
	if err != nil {
		if err == activities.ErrNotFound {
			return errors.NotFound(c, "Activity")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(activity))
}

// Create adds a new activity
func (h *ActivityHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var req models.CreateActivityRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := req.Validate(); err != nil {
		return errors.BadRequest(c, err.Error())
	}

	activity, err := h.activities.Create(c.Request().Context(), userID, req)
	if err != nil {
		if err == activities.ErrBadReference {
			return errors.BadRequest(c, "Linked resource does not exist")
		}
		return errors.DatabaseError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordCreated("activity")
	}
	return c.JSON(http.StatusCreated, models.OK(activity))
}

// Update applies a partial update to an activity
func (h *ActivityHandler) Update(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Activity")
	}

	var req models.UpdateActivityRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	activity, err := h.activities.Update(c.Request().Context(), userID, id, req)
	if err != nil {
		switch err {
		case activities.ErrNotFound:
			return errors.NotFound(c, "Activity")
		case activities.ErrBadReference:
			return errors.BadRequest(c, "Linked resource does not exist")
		case activities.ErrBadSchedule:
			return errors.BadRequest(c, err.Error())
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(activity))
}

// Delete removes an activity
func (h *ActivityHandler) Delete(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Activity")
	}

	if err := h.activities.Delete(c.Request().Context(), userID, id); err != nil {
		if err == activities.ErrNotFound {
			return errors.NotFound(c, "Activity")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(map[string]string{"message": "Activity deleted"}))
}

// Range returns activities whose start time falls inside a calendar window
func (h *ActivityHandler) Range(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return errors.BadRequest(c, "start must be an RFC3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return errors.BadRequest(c, "end must be an RFC3339 timestamp")
	}
	if end.Before(start) {
		return errors.BadRequest(c, "end must not be before start")
	}

	filter := models.ActivityFilter{From: &start, To: &end}
	page, limit := pageParams(c)

	items, total, err := h.activities.List(c.Request().Context(), userID, filter, page, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, models.Paginated(items, models.NewPagination(page, limit, total)))
}

// Upcoming returns scheduled activities for the next days, soonest first
func (h *ActivityHandler) Upcoming(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	days, _ := strconv.Atoi(c.QueryParam("days"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	items, err := h.activities.Upcoming(c.Request().Context(), userID, days, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(items))
}

// Overdue returns activities whose start time has passed without completion
func (h *ActivityHandler) Overdue(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	items, err := h.activities.Overdue(c.Request().Context(), userID)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(items))
}
