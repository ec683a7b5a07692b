package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/container"
	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/service"
	"github.com/blockdoc/blockdoc/common/models"
	"github.com/blockdoc/blockdoc/common/repository"
	"github.com/blockdoc/blockdoc/common/validation"
)

// DocumentHandler handles document submission and retrieval
type DocumentHandler struct {
	container *container.Container
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(c *container.Container) *DocumentHandler {
	return &DocumentHandler{container: c}
}

// Upload accepts a document and queues its blockchain registration
// POST /api/v1/documents
func (h *DocumentHandler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("document")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("missing_document", "multipart field 'document' is required"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("unreadable_document", err.Error()))
	}
	defer file.Close()

	doc, err := h.container.Ingest.Submit(c.Request().Context(), file, fileHeader.Filename, fileHeader.Size)
	if err != nil {
		return submitError(c, err)
	}

	return c.JSON(http.StatusCreated, doc)
}

// List returns documents, newest first
// GET /api/v1/documents
func (h *DocumentHandler) List(c echo.Context) error {
	limit := 100
	docs, err := h.container.Documents.List(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("list_failed", err.Error()))
	}

	if docs == nil {
		docs = []*models.Document{}
	}
	return c.JSON(http.StatusOK, docs)
}

// Get returns a single document
// GET /api/v1/documents/:id
func (h *DocumentHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_id", "document id must be a UUID"))
	}

	doc, err := h.container.Documents.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("not_found", "document not found"))
		}
		return c.JSON(http.StatusInternalServerError, errorBody("lookup_failed", err.Error()))
	}

	return c.JSON(http.StatusOK, doc)
}

// Download streams the stored file back to the client
// GET /api/v1/documents/:id/download
func (h *DocumentHandler) Download(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_id", "document id must be a UUID"))
	}

	doc, err := h.container.Documents.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("not_found", "document not found"))
		}
		return c.JSON(http.StatusInternalServerError, errorBody("lookup_failed", err.Error()))
	}

	f, err := h.container.Store.Open(doc.Path)
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody("file_missing", "stored file not found"))
	}
	defer f.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+doc.Filename+`"`)
	return c.Stream(http.StatusOK, "application/pdf", f)
}

// submitError maps ingest failures onto HTTP responses
func submitError(c echo.Context, err error) error {
	var dup *service.DuplicateError
	if errors.As(err, &dup) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":    "duplicate_document",
			"message":  "this document has already been submitted",
			"document": dup.Existing,
		})
	}

	switch {
	case errors.Is(err, validation.ErrNotPDF):
		return c.JSON(http.StatusUnprocessableEntity, errorBody("invalid_document", err.Error()))
	case errors.Is(err, validation.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, errorBody("document_too_large", err.Error()))
	default:
		return c.JSON(http.StatusInternalServerError, errorBody("submission_failed", err.Error()))
	}
}

func errorBody(code, message string) map[string]string {
	return map[string]string{
		"error":   code,
		"message": message,
	}
}
