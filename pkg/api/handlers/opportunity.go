package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pipedesk/pipedesk/pkg/api/errors"
	"github.com/pipedesk/pipedesk/pkg/metrics"
	"github.com/pipedesk/pipedesk/pkg/models"
	"github.com/pipedesk/pipedesk/pkg/opportunities"
)

// OpportunityHandler handles opportunity CRUD and pipeline analytics
type OpportunityHandler struct {
	opportunities *opportunities.Service
	metrics       *metrics.Metrics
	validator     *validator.Validate
}

// NewOpportunityHandler creates a new opportunity handler
func NewOpportunityHandler(oppSvc *opportunities.Service, m *metrics.Metrics) *OpportunityHandler {
	return &OpportunityHandler{
		opportunities: oppSvc,
		metrics:       m,
		validator:     validator.New(),
	}
}

// List returns the user's opportunities with filters and pagination
func (h *OpportunityHandler) List(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var filter models.OpportunityFilter
	if err := c.Bind(&filter); err != nil {
		return errors.BadRequest(c, "Invalid query parameters")
	}
	page, limit := pageParams(c)

	items, total, err := h.opportunities.List(c.Request().Context(), userID, filter, page, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, models.Paginated(items, models.NewPagination(page, limit, total)))
}

// ByCompany returns the opportunities attached to one company
func (h *OpportunityHandler) ByCompany(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	if _, err := primitive.ObjectIDFromHex(c.Param("id")); err != nil {
		return errors.BadRequest(c, "Invalid company id")
	}

	filter := models.OpportunityFilter{CompanyID: c.Param("id")}
	page, limit := pageParams(c)

	items, total, err := h.opportunities.List(c.Request().Context(), userID, filter, page, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, models.Paginated(items, models.NewPagination(page, limit, total)))
}

// Get returns one opportunity
func (h *OpportunityHandler) Get(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Opportunity")
	}

	opp, err := h.opportunities.Get(c.Request().Context(), userID, id)
	if err != nil {
		if err == opportunities.ErrNotFound {
			return errors.NotFound(c, "Opportunity")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(opp))
}

// Create adds a new opportunity
func (h *OpportunityHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var req models.CreateOpportunityRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	opp, err := h.opportunities.Create(c.Request().Context(), userID, req)
	if err != nil {
		switch err {
		case opportunities.ErrCompanyNotFound:
			return errors.BadRequest(c, "Referenced company does not exist")
		case opportunities.ErrContactNotFound:
			return errors.BadRequest(c, "Referenced contact does not exist")
		}
		return errors.DatabaseError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordCreated("opportunity")
	}
	return c.JSON(http.StatusCreated, models.OK(opp))
}

// Update applies a partial update to an opportunity
func (h *OpportunityHandler) Update(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Opportunity")
	}

	var req models.UpdateOpportunityRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	opp, err := h.opportunities.Update(c.Request().Context(), userID, id, req)
	if err != nil {
		switch err {
		case opportunities.ErrNotFound:
			return errors.NotFound(c, "Opportunity")
		case opportunities.ErrCompanyNotFound:
			return errors.BadRequest(c, "Referenced company does not exist")
		case opportunities.ErrContactNotFound:
			return errors.BadRequest(c, "Referenced contact does not exist")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(opp))
}

// Delete removes an opportunity
func (h *OpportunityHandler) Delete(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Opportunity")
	}

	if err := h.opportunities.Delete(c.Request().Context(), userID, id); err != nil {
		if err == opportunities.ErrNotFound {
			return errors.NotFound(c, "Opportunity")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(map[string]string{"message": "Opportunity deleted"}))
}

// Pipeline returns per-stage counts and amounts in funnel order
func (h *OpportunityHandler) Pipeline(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	stages, err := h.opportunities.Pipeline(c.Request().Context(), userID)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(stages))
}

// Forecast returns forecast amounts grouped by forecast category
func (h *OpportunityHandler) Forecast(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	buckets, err := h.opportunities.Forecast(c.Request().Context(), userID)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(buckets))
}
