package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/pipedesk/pipedesk/pkg/api/errors"
	"github.com/pipedesk/pipedesk/pkg/database"
	"github.com/pipedesk/pipedesk/pkg/models"
	"github.com/pipedesk/pipedesk/pkg/users"
)

// AdminHandler handles account management and instance-wide stats.
// Every route is mounted behind the admin role check.
type AdminHandler struct {
	users     *users.Service
	db        *database.Client
	validator *validator.Validate
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(userSvc *users.Service, db *database.Client) *AdminHandler {
	return &AdminHandler{
		users:     userSvc,
		db:        db,
		validator: validator.New(),
	}
}

// ListUsers returns all accounts with pagination
func (h *AdminHandler) ListUsers(c echo.Context) error {
	page, limit := pageParams(c)

	items, total, err := h.users.List(c.Request().Context(), page, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, models.Paginated(items, models.NewPagination(page, limit, total)))
}

// GetUser returns one account
func (h *AdminHandler) GetUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "User")
	}

	user, err := h.users.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == users.ErrNotFound {
			return errors.NotFound(c, "User")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(user))
}

// UpdateUser changes an account's name or role
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "User")
	}

	var req models.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	user, err := h.users.Update(c.Request().Context(), id, req)
	if err != nil {
		if err == users.ErrNotFound {
			return errors.NotFound(c, "User")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(user))
}

// DeleteUser removes an account. The caller cannot delete itself.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "User")
	}

	if callerID, ok := currentUserID(c); ok && callerID == id {
		return errors.BadRequest(c, "You cannot delete your own account")
	}

	if err := h.users.Delete(c.Request().Context(), id); err != nil {
		if err == users.ErrNotFound {
			return errors.NotFound(c, "User")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(map[string]string{"message": "User deleted"}))
}

// Stats returns document counts across the whole instance
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	stats := models.AdminStats{}
	counts := []struct {
		col  string
		dest *int64
	}{
		{database.ColUsers, &stats.Users},
		{database.ColContacts, &stats.Contacts},
		{database.ColCompanies, &stats.Companies},
		{database.ColOpportunities, &stats.Opportunities},
		{database.ColActivities, &stats.Activities},
		{database.ColExpenses, &stats.Expenses},
		{database.ColLeads, &stats.Leads},
	}
	for _, cnt := range counts {
		n, err := h.db.Collection(cnt.col).CountDocuments(ctx, bson.M{})
		if err != nil {
			return errors.DatabaseError(c, err)
		}
		*cnt.dest = n
	}

	return c.JSON(http.StatusOK, models.OK(stats))
}
