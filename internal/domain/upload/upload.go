// Package upload validates query images before they reach the catalog.
package upload

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/flora/internal/domain"
)

// DefaultMaxSize is the largest accepted upload: 2 MiB.
const DefaultMaxSize int64 = 2 * 1024 * 1024

var (
	allowedTypes      = []string{"image/jpeg", "image/png"}
	allowedExtensions = []string{".jpg", ".jpeg", ".png"}
)

// File is an uploaded query image.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the payload length in bytes.
func (f *File) Size() int64 { return int64(len(f.Data)) }

// Reason classifies a validation failure.
type Reason string

// Validation failure reasons.
const (
	ReasonType Reason = "type"
	ReasonSize Reason = "size"
)

// ValidationError is returned when an upload is rejected.
// Message is the user-facing text shown under the search input.
type ValidationError struct {
	Reason  Reason
	Message string
	err     error
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return e.err }

// Validator checks declared type and size of an upload.
type Validator struct {
	maxSize int64
}

// NewValidator creates a Validator. maxSize <= 0 uses DefaultMaxSize.
func NewValidator(maxSize int64) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Validator{maxSize: maxSize}
}

// MaxSize returns the configured size limit in bytes.
func (v *Validator) MaxSize() int64 { return v.maxSize }

// Validate accepts JPEG and PNG files up to the size limit.
// The declared MIME type wins; the file extension is the fallback when the
// browser sent an empty or generic type. A negative size means unknown and
// skips the size check.
func (v *Validator) Validate(name, contentType string, size int64) error {
	if !typeAllowed(name, contentType) {
		return &ValidationError{
			Reason:  ReasonType,
			Message: "Only JPEG and PNG images are allowed.",
			err:     domain.ErrUnsupportedFileType,
		}
	}
	if size >= 0 && size > v.maxSize {
		return v.TooLarge()
	}
	return nil
}

// TooLarge returns the size rejection for an upload whose size is unknown
// but known to exceed the limit.
func (v *Validator) TooLarge() *ValidationError {
	return &ValidationError{
		Reason:  ReasonSize,
		Message: fmt.Sprintf("Image must be %s or smaller.", humanSize(v.maxSize)),
		err:     domain.ErrFileTooLarge,
	}
}

// ValidateFile is Validate applied to a File.
func (v *Validator) ValidateFile(f *File) error {
	return v.Validate(f.Name, f.ContentType, f.Size())
}

func typeAllowed(name, contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, t := range allowedTypes {
		if ct == t {
			return true
		}
	}
	lower := strings.ToLower(name)
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// humanSize renders whole mebibytes as "2MB"; anything else in bytes.
func humanSize(n int64) string {
	const mib = 1024 * 1024
	if n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
