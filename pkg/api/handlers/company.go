package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/pipedesk/pipedesk/pkg/api/errors"
	"github.com/pipedesk/pipedesk/pkg/companies"
	"github.com/pipedesk/pipedesk/pkg/metrics"
	"github.com/pipedesk/pipedesk/pkg/models"
)

// CompanyHandler handles company CRUD and stats endpoints
type CompanyHandler struct {
	companies *companies.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewCompanyHandler creates a new company handler
func NewCompanyHandler(companySvc *companies.Service, m *metrics.Metrics) *CompanyHandler {
	return &CompanyHandler{
		companies: companySvc,
		metrics:   m,
		validator: validator.New(),
	}
}

// List returns the user's companies with filters and pagination
func (h *CompanyHandler) List(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var filter models.CompanyFilter
	if err := c.Bind(&filter); err != nil {
		return errors.BadRequest(c, "Invalid query parameters")
	}
	page, limit := pageParams(c)

	items, total, err := h.companies.List(c.Request().Context(), userID, filter, page, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, models.Paginated(items, models.NewPagination(page, limit, total)))
}

// Get returns one company
func (h *CompanyHandler) Get(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Company")
	}

	company, err := h.companies.Get(c.Request().Context(), userID, id)
	if err != nil {
		if err == companies.ErrNotFound {
			return errors.NotFound(c, "Company")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(company))
}

// Create adds a new company
func (h *CompanyHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var req models.CreateCompanyRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := req.Validate(); err != nil {
		return errors.BadRequest(c, err.Error())
	}

	company, err := h.companies.Create(c.Request().Context(), userID, req)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordCreated("company")
	}
	return c.JSON(http.StatusCreated, models.OK(company))
}

// Update applies a partial update to a company
func (h *CompanyHandler) Update(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Company")
	}

	var req models.UpdateCompanyRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}
	if req.Contacts != nil {
		for _, embedded := range *req.Contacts {
			if embedded.Name == "" {
				return errors.BadRequest(c, "Embedded contacts require a name")
			}
		}
	}

	company, err := h.companies.Update(c.Request().Context(), userID, id, req)
	if err != nil {
		if err == companies.ErrNotFound {
			return errors.NotFound(c, "Company")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(company))
}

// Delete removes a company and its dependent documents
func (h *CompanyHandler) Delete(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Company")
	}

	if err := h.companies.Delete(c.Request().Context(), userID, id); err != nil {
		if err == companies.ErrNotFound {
			return errors.NotFound(c, "Company")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(map[string]string{"message": "Company deleted"}))
}

// Stats returns the company stats overview
func (h *CompanyHandler) Stats(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	stats, err := h.companies.Stats(c.Request().Context(), userID)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(stats))
}
