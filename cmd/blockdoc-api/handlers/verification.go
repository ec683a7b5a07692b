package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/container"
	"github.com/blockdoc/blockdoc/common/validation"
)

// VerificationHandler answers "is this file anchored on chain"
type VerificationHandler struct {
	container *container.Container
}

// NewVerificationHandler creates a new verification handler
func NewVerificationHandler(c *container.Container) *VerificationHandler {
	return &VerificationHandler{container: c}
}

// Verify hashes the uploaded file and checks it against the contract.
// The response is always a structured outcome, never an opaque failure.
// POST /api/v1/verify
func (h *VerificationHandler) Verify(c echo.Context) error {
	fileHeader, err := c.FormFile("document")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("missing_document", "multipart field 'document' is required"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("unreadable_document", err.Error()))
	}
	defer file.Close()

	if err := h.container.Validator.Validate(file, fileHeader.Filename, fileHeader.Size); err != nil {
		switch {
		case errors.Is(err, validation.ErrNotPDF):
			return c.JSON(http.StatusUnprocessableEntity, errorBody("invalid_document", err.Error()))
		case errors.Is(err, validation.ErrTooLarge):
			return c.JSON(http.StatusRequestEntityTooLarge, errorBody("document_too_large", err.Error()))
		default:
			return c.JSON(http.StatusBadRequest, errorBody("invalid_document", err.Error()))
		}
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("verification_unavailable", err.Error()))
	}

	contentHash, err := h.container.Hasher.SumHex(file)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("verification_unavailable", err.Error()))
	}

	outcome, err := h.container.Verifier.Verify(c.Request().Context(), contentHash)
	if err != nil {
		// Chain unreachable: tell the caller so, with the hash they can retry with
		h.container.Components.Logger.Error("verification failed", "content_hash", contentHash, "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error":        "verification_unavailable",
			"message":      "the blockchain node could not be reached, try again later",
			"content_hash": contentHash,
		})
	}

	return c.JSON(http.StatusOK, outcome)
}
