package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/pipedesk/pipedesk/pkg/api/errors"
	"github.com/pipedesk/pipedesk/pkg/export"
	importpkg "github.com/pipedesk/pipedesk/pkg/import"
	"github.com/pipedesk/pipedesk/pkg/metrics"
	"github.com/pipedesk/pipedesk/pkg/models"
)

// maxUploadBytes caps import uploads at 10 MB
const maxUploadBytes = 10 << 20

// ExportHandler handles export jobs, downloads and file imports
type ExportHandler struct {
	exports   *export.Service
	importer  *importpkg.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewExportHandler creates a new export handler
func NewExportHandler(exportSvc *export.Service, importSvc *importpkg.Service, m *metrics.Metrics) *ExportHandler {
	return &ExportHandler{
		exports:   exportSvc,
		importer:  importSvc,
		metrics:   m,
		validator: validator.New(),
	}
}

// Create starts an export job. Generation runs in the background; poll
// Get until the status is ready.
func (h *ExportHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	var req models.CreateExportRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	exp, err := h.exports.Create(c.Request().Context(), userID, req)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordExportCreated()
	}
	return c.JSON(http.StatusAccepted, models.OK(exp))
}

// List returns the user's export jobs, newest first
func (h *ExportHandler) List(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	page, limit := pageParams(c)

	items, total, err := h.exports.List(c.Request().Context(), userID, page, limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, models.Paginated(items, models.NewPagination(page, limit, total)))
}

// Get returns one export job with its current status
func (h *ExportHandler) Get(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Export")
	}

	exp, err := h.exports.Get(c.Request().Context(), userID, id)
	if err != nil {
		if err == export.ErrNotFound {
			return errors.NotFound(c, "Export")
		}
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.OK(exp))
}

// Download streams a ready export file
func (h *ExportHandler) Download(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	id, err := pathID(c)
	if err != nil {
		return errors.NotFound(c, "Export")
	}

	path, err := h.exports.FilePath(c.Request().Context(), userID, id)
	if err != nil {
		switch err {
		case export.ErrNotFound:
			return errors.NotFound(c, "Export")
		case export.ErrNotReady:
			return errors.Conflict(c, "Export is not ready yet")
		case export.ErrExpired:
			return c.JSON(http.StatusGone, models.Fail("Export has expired"))
		}
		return errors.DatabaseError(c, err)
	}

	return c.Attachment(path, filepath.Base(path))
}

// ImportFile bulk-imports contacts from an uploaded CSV or Excel file.
// Pass validate_only=true to check the file without inserting anything.
func (h *ExportHandler) ImportFile(c echo.Context) error {
	return h.importUpload(c, c.QueryParam("validate_only") == "true")
}

// ImportValidate dry-runs an uploaded file and reports per-row verdicts
// without writing anything
func (h *ExportHandler) ImportValidate(c echo.Context) error {
	return h.importUpload(c, true)
}

func (h *ExportHandler) importUpload(c echo.Context, validateOnly bool) error {
	userID, ok := currentUserID(c)
	if !ok {
		return errors.Unauthorized(c, "")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return errors.BadRequest(c, "Missing file upload")
	}
	if fileHeader.Size > maxUploadBytes {
		return errors.BadRequest(c, "File exceeds the 10 MB upload limit")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return errors.BadRequest(c, "Could not read uploaded file")
	}
	defer src.Close()

	config := importpkg.DefaultConfig()
	config.ValidateOnly = validateOnly
	if cc := c.FormValue("country_code"); cc != "" {
		config.CountryCode = cc
	}

	var result *importpkg.Result
	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".csv":
		result, err = h.importer.ImportCSV(c.Request().Context(), userID, src, config)
	case ".xlsx":
		result, err = h.importer.ImportXLSX(c.Request().Context(), userID, src, config)
	default:
		return errors.BadRequest(c, "Unsupported file type, expected .csv or .xlsx")
	}
	if err != nil {
		return errors.BadRequest(c, err.Error())
	}

	if h.metrics != nil && !validateOnly {
		h.metrics.RecordContactsImported(result.SuccessCount)
	}
	return c.JSON(http.StatusOK, models.OK(result))
}
