package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/pipedesk/pipedesk/pkg/api/errors"
	"github.com/pipedesk/pipedesk/pkg/models"
	"github.com/pipedesk/pipedesk/pkg/settings"
)

// SettingsHandler handles per-user workspace settings
type SettingsHandler struct {
	settings  *settings.Service
	validator *validator.Validate
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsSvc *settings.Service) *SettingsHandler {
	return &SettingsHandler{
		settings:  settingsSvc,
		validator: validator.New(),
	}
}

// Get returns the user's settings, creating defaults on first read
func (h *SettingsHandler) Get(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	cfg, err := h.settings.Get(c.Request().Context(), userID)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(cfg))
}

// Upsert merges the submitted fields into the user's settings
func (h *SettingsHandler) Upsert(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var req models.UpsertSettingsRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	cfg, err := h.settings.Upsert(c.Request().Context(), userID, req)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(cfg))
}
