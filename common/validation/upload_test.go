package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_SizeLimit(t *testing.T) {
	v := NewUploadValidator(100)
	assert.Equal(t, int64(100), v.MaxSize())

	err := v.Validate(strings.NewReader(""), "big.pdf", 101)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestValidate_Extension(t *testing.T) {
	v := NewUploadValidator(1 << 20)

	err := v.Validate(strings.NewReader("plain text"), "notes.txt", 10)
	assert.ErrorIs(t, err, ErrNotPDF)

	err = v.Validate(strings.NewReader("no extension"), "README", 12)
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestValidate_NotAPDFBody(t *testing.T) {
	v := NewUploadValidator(1 << 20)

	// Right extension, wrong bytes
	err := v.Validate(strings.NewReader("this is not a pdf"), "fake.pdf", 17)
	assert.ErrorIs(t, err, ErrNotPDF)
}
