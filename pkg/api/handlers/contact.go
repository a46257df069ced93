package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pipedesk/pipedesk/pkg/api/errors"
	"github.com/pipedesk/pipedesk/pkg/contacts"
	"github.com/pipedesk/pipedesk/pkg/metrics"
	"github.com/pipedesk/pipedesk/pkg/models"
)

// ContactHandler handles contact CRUD endpoints
type ContactHandler struct {
	contacts  *contacts.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewContactHandler creates a new contact handler
func NewContactHandler(contactSvc *contacts.Service, m *metrics.Metrics) *ContactHandler {
	return &ContactHandler{
		contacts:  contactSvc,
		metrics:   m,
		validator: validator.New(),
	}
}

// List returns the user's contacts with filters and pagination
func (h *ContactHandler) List(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var filter models.ContactFilter
	if err := c.Bind(&filter); err != nil {
		return errors.BadRequest(c, "Invalid query parameters")
	}
	page, limit := pageParams(c)

	items, total, err := h.contacts.List(c.Request().Context(), userID, filter, page, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, models.Paginated(items, models.NewPagination(page, limit, total)))
}

// ByCompany returns the contacts linked to one company
func (h *ContactHandler) ByCompany(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	if _, err := primitive.ObjectIDFromHex(c.Param("companyId")); err != nil {
		return errors.BadRequest(c, "Invalid company id")
	}

	filter := models.ContactFilter{CompanyID: c.Param("companyId")}
	page, limit := pageParams(c)

	items, total, err := h.contacts.List(c.Request().Context(), userID, filter, page, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, models.Paginated(items, models.NewPagination(page, limit, total)))
}

// Get returns one contact
func (h *ContactHandler) Get(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Contact")
	}

	contact, err := h.contacts.Get(c.Request().Context(), userID, id)
	if err != nil {
		if err == contacts.ErrNotFound {
			return errors.NotFound(c, "Contact")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(contact))
}

// Create adds a new contact
func (h *ContactHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var req models.CreateContactRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	contact, err := h.contacts.Create(c.Request().Context(), userID, req)
	if err != nil {
		if err == contacts.ErrCompanyNotFound {
			return errors.BadRequest(c, "Referenced company does not exist")
		}
		return errors.DatabaseError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordCreated("contact")
	}
	return c.JSON(http.StatusCreated, models.OK(contact))
}

// Update applies a partial update to a contact
func (h *ContactHandler) Update(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Contact")
	}

	var req models.UpdateContactRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	contact, err := h.contacts.Update(c.Request().Context(), userID, id, req)
	if err != nil {
		switch err {
		case contacts.ErrNotFound:
			return errors.NotFound(c, "Contact")
		case contacts.ErrCompanyNotFound:
			return errors.BadRequest(c, "Referenced company does not exist")
		default:
			return errors.DatabaseError(c, err)
		}
	}
	return c.JSON(http.StatusOK, models.OK(contact))
}

// Delete removes a contact
func (h *ContactHandler) Delete(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Contact")
	}

	if err := h.contacts.Delete(c.Request().Context(), userID, id); err != nil {
		if err == contacts.ErrNotFound {
			return errors.NotFound(c, "Contact")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(map[string]string{"message": "Contact deleted"}))
}

// ImportJSON bulk-creates contacts from a JSON array, skipping invalid
// rows instead of failing the whole request
func (h *ContactHandler) ImportJSON(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var req models.ImportContactsRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	result := models.ImportResult{
		Imported: []models.Contact{},
		Skipped:  []models.ImportRowError{},
	}

	for i, row := range req.Contacts {
		if err := h.validator.Struct(row); err != nil {
			result.Skipped = append(result.Skipped, models.ImportRowError{Row: i + 1, Error: err.Error()})
			continue
		}
		contact, err := h.contacts.Create(c.Request().Context(), userID, row)
		if err != nil {
			result.Skipped = append(result.Skipped, models.ImportRowError{Row: i + 1, Error: err.Error()})
			continue
		}
		result.Imported = append(result.Imported, *contact)
	}

	if h.metrics != nil {
		h.metrics.RecordContactsImported(len(result.Imported))
	}
	return c.JSON(http.StatusOK, models.OK(result))
}
