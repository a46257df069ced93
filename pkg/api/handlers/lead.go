package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/pipedesk/pipedesk/pkg/api/errors"
	"github.com/pipedesk/pipedesk/pkg/leads"
	"github.com/pipedesk/pipedesk/pkg/metrics"
	"github.com/pipedesk/pipedesk/pkg/models"
)

// LeadHandler handles lead CRUD, conversion and funnel analytics
type LeadHandler struct {
	leads     *leads.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leadSvc *leads.Service, m *metrics.Metrics) *LeadHandler {
	return &LeadHandler{
		leads:     leadSvc,
		metrics:   m,
		validator: validator.New(),
	}
}

// List returns the user's leads with filters and pagination
func (h *LeadHandler) List(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var filter models.LeadFilter
	if err := c.Bind(&filter); err != nil {
		return errors.BadRequest(c, "Invalid query parameters")
	}
	page, limit := pageParams(c)

	items, total, err := h.leads.List(c.Request().Context(), userID, filter, page, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, models.Paginated(items, models.NewPagination(page, limit, total)))
}

// Get returns one lead
func (h *LeadHandler) Get(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Lead")
	}

	lead, err := h.leads.Get(c.Request().Context(), userID, id)
	if err != nil {
		if err == leads.ErrNotFound {
			return errors.NotFound(c, "Lead")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(lead))
}

// Create adds a new lead
func (h *LeadHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var req models.CreateLeadRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	lead, err := h.leads.Create(c.Request().Context(), userID, req)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordCreated("lead")
	}
	return c.JSON(http.StatusCreated, models.OK(lead))
}

// Update applies a partial update to a lead
func (h *LeadHandler) Update(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Lead")
	}

	var req models.UpdateLeadRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	lead, err := h.leads.Update(c.Request().Context(), userID, id, req)
	if err != nil {
		if err == leads.ErrNotFound {
			return errors.NotFound(c, "Lead")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(lead))
}

// Delete removes a lead
func (h *LeadHandler) Delete(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Lead")
	}

	if err := h.leads.Delete(c.Request().Context(), userID, id); err != nil {
		if err == leads.ErrNotFound {
			return errors.NotFound(c, "Lead")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(map[string]string{"message": "Lead deleted"}))
}

// Hot returns the highest scored warm and hot leads still in play
func (h *LeadHandler) Hot(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	items, err := h.leads.Hot(c.Request().Context(), userID, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(items))
}

// Convert turns a lead into CRM records and marks it converted
func (h *LeadHandler) Convert(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Lead")
	}

	var req models.ConvertLeadRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	result, err := h.leads.Convert(c.Request().Context(), userID, id, req)
	if err != nil {
		switch err {
		case leads.ErrNotFound:
			return errors.NotFound(c, "Lead")
		case leads.ErrAlreadyConverted:
			return errors.Conflict(c, "Lead has already been converted")
		case leads.ErrOpportunityNeedsCompany:
			return errors.BadRequest(c, "Creating an opportunity requires creating a company")
		}
		return errors.DatabaseError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordLeadConverted()
	}
	return c.JSON(http.StatusOK, models.OK(result))
}

// Stats returns lead counts by status, temperature and source
func (h *LeadHandler) Stats(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	stats, err := h.leads.Stats(c.Request().Context(), userID)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(stats))
}

// Conversion returns the conversion rate and converted value totals
func (h *LeadHandler) Conversion(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	stats, err := h.leads.ConversionStats(c.Request().Context(), userID)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(stats))
}
