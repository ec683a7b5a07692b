// Package validation checks uploaded documents before they enter the
// registration pipeline.
package validation

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// ErrNotPDF is returned when the upload is not a PDF document
	ErrNotPDF = errors.New("document must be a PDF")

	// ErrTooLarge is returned when the upload exceeds the size limit
	ErrTooLarge = errors.New("document exceeds the maximum allowed size")
)

// UploadValidator validates submitted document files
type UploadValidator struct {
	maxSize int64
	conf    *model.Configuration
}

// NewUploadValidator creates a validator with the given size limit in bytes
func NewUploadValidator(maxSize int64) *UploadValidator {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return &UploadValidator{
		maxSize: maxSize,
		conf:    conf,
	}
}

// MaxSize returns the configured upload size limit
func (v *UploadValidator) MaxSize() int64 {
	return v.maxSize
}

// Validate checks filename, size and PDF structure. The reader must support
// seeking; it is left at an arbitrary position afterwards.
func (v *UploadValidator) Validate(rs io.ReadSeeker, filename string, size int64) error {
	if size > v.maxSize {
		return fmt.Errorf("%w: %d bytes > %d bytes", ErrTooLarge, size, v.maxSize)
	}

	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".pdf" {
		return fmt.Errorf("%w: unexpected extension %q", ErrNotPDF, ext)
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}

	if err := api.Validate(rs, v.conf); err != nil {
		return fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	return nil
}
