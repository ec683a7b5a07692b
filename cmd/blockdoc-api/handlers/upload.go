package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/container"
	"github.com/blockdoc/blockdoc/common/storage"
)

const maxUploadChunks = 10000

// UploadHandler manages chunked upload sessions for large documents
type UploadHandler struct {
	container *container.Container
}

// NewUploadHandler creates a new chunked upload handler
func NewUploadHandler(c *container.Container) *UploadHandler {
	return &UploadHandler{container: c}
}

type initUploadRequest struct {
	Filename    string `json:"filename"`
	TotalChunks int    `json:"total_chunks"`
}

// Init opens a new upload session.
// POST /api/v1/uploads
func (h *UploadHandler) Init(c echo.Context) error {
	var req initUploadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
	}
	if req.Filename == "" {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_request", "filename is required"))
	}
	if req.TotalChunks < 1 || req.TotalChunks > maxUploadChunks {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_request", "total_chunks must be between 1 and "+strconv.Itoa(maxUploadChunks)))
	}

	session, err := h.container.Store.InitUpload(req.Filename, req.TotalChunks)
	if err != nil {
		h.container.Components.Logger.Error("failed to init upload session", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("upload_init_failed", "could not create upload session"))
	}

	return c.JSON(http.StatusCreated, session)
}

// Chunk stores one chunk of an upload session.
// PUT /api/v1/uploads/:id/chunks/:index
func (h *UploadHandler) Chunk(c echo.Context) error {
	id := c.Param("id")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_request", "chunk index must be a non-negative integer"))
	}

	session, err := h.container.Store.Session(id)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("session_not_found", "upload session does not exist"))
		}
		h.container.Components.Logger.Error("failed to load upload session", "session_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("upload_failed", "could not load upload session"))
	}
	if index >= session.TotalChunks {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_request", "chunk index out of range"))
	}

	body := c.Request().Body
	defer body.Close()

	if err := h.container.Store.WriteChunk(id, index, body); err != nil {
		h.container.Components.Logger.Error("failed to write chunk", "session_id", id, "index", index, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("upload_failed", "could not store chunk"))
	}

	return c.NoContent(http.StatusNoContent)
}

// Complete assembles the chunks and submits the document for anchoring.
// POST /api/v1/uploads/:id/complete
func (h *UploadHandler) Complete(c echo.Context) error {
	id := c.Param("id")

	file, session, err := h.container.Store.CompleteUpload(id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, errorBody("session_not_found", "upload session does not exist"))
		case errors.Is(err, storage.ErrIncompleteUpload):
			return c.JSON(http.StatusConflict, errorBody("incomplete_upload", err.Error()))
		default:
			h.container.Components.Logger.Error("failed to assemble upload", "session_id", id, "error", err)
			return c.JSON(http.StatusInternalServerError, errorBody("upload_failed", "could not assemble upload"))
		}
	}
	defer file.Close()

	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("upload_failed", "could not read assembled upload"))
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("upload_failed", "could not read assembled upload"))
	}

	doc, err := h.container.Ingest.Submit(c.Request().Context(), file, session.Filename, size)
	if err != nil {
		return submitError(c, err)
	}

	return c.JSON(http.StatusCreated, doc)
}

// Discard abandons an upload session and removes its chunks.
// DELETE /api/v1/uploads/:id
func (h *UploadHandler) Discard(c echo.Context) error {
	if err := h.container.Store.DiscardUpload(c.Param("id")); err != nil {
		h.container.Components.Logger.Error("failed to discard upload session", "session_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("upload_failed", "could not discard upload session"))
	}
	return c.NoContent(http.StatusNoContent)
}
