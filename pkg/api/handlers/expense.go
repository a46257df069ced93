package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/pipedesk/pipedesk/pkg/api/errors"
	"github.com/pipedesk/pipedesk/pkg/expenses"
	"github.com/pipedesk/pipedesk/pkg/metrics"
	"github.com/pipedesk/pipedesk/pkg/models"
)

// ExpenseHandler handles expense CRUD and spend analytics
type ExpenseHandler struct {
	expenses  *expenses.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewExpenseHandler creates a new expense handler
func NewExpenseHandler(expenseSvc *expenses.Service, m *metrics.Metrics) *ExpenseHandler {
	return &ExpenseHandler{
		expenses:  expenseSvc,
		metrics:   m,
		validator: validator.New(),
	}
}

// List returns the user's expenses with filters and pagination
func (h *ExpenseHandler) List(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var filter models.ExpenseFilter
	if err := c.Bind(&filter); err != nil {
		return errors.BadRequest(c, "Invalid query parameters")
	}
	page, limit := pageParams(c)

	items, total, err := h.expenses.List(c.Request().Context(), userID, filter, page, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, models.Paginated(items, models.NewPagination(page, limit, total)))
}

// ByCategory returns the user's expenses in one category
func (h *ExpenseHandler) ByCategory(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	filter := models.ExpenseFilter{Category: c.Param("category")}
	page, limit := pageParams(c)

	items, total, err := h.expenses.List(c.Request().Context(), userID, filter, page, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, models.Paginated(items, models.NewPagination(page, limit, total)))
}

// Get returns one expense
func (h *ExpenseHandler) Get(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Expense")
	}

	expense, err := h.expenses.Get(c.Request().Context(), userID, id)
	if err != nil {
		if err == expenses.ErrNotFound {
			return errors.NotFound(c, "Expense")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(expense))
}

// Create adds a new expense
func (h *ExpenseHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var req models.CreateExpenseRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	expense, err := h.expenses.Create(c.Request().Context(), userID, req)
	if err != nil {
		if err == expenses.ErrBadReference {
			return errors.BadRequest(c, "Linked resource does not exist")
		}
		return errors.DatabaseError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordCreated("expense")
	}
	return c.JSON(http.StatusCreated, models.OK(expense))
}

// Update applies a partial update to an expense
func (h *ExpenseHandler) Update(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Expense")
	}

	var req models.UpdateExpenseRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	expense, err := h.expenses.Update(c.Request().Context(), userID, id, req)
	if err != nil {
		switch err {
		case expenses.ErrNotFound:
			return errors.NotFound(c, "Expense")
		case expenses.ErrBadReference:
			return errors.BadRequest(c, "Linked resource does not exist")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(expense))
}

// Delete removes an expense
func (h *ExpenseHandler) Delete(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Expense")
	}

	if err := h.expenses.Delete(c.Request().Context(), userID, id); err != nil {
		if err == expenses.ErrNotFound {
			return errors.NotFound(c, "Expense")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(map[string]string{"message": "Expense deleted"}))
}

// Summary returns totals split by billable flag, category and status
func (h *ExpenseHandler) Summary(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	summary, err := h.expenses.Summary(c.Request().Context(), userID)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(summary))
}

// Monthly returns per-month expense totals for the requested window
func (h *ExpenseHandler) Monthly(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	months, _ := strconv.Atoi(c.QueryParam("months"))

	rows, err := h.expenses.Monthly(c.Request().Context(), userID, months)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(rows))
}
