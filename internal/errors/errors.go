package gerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicatePurchase = errors.New("purchase already recorded")
	ErrCrawler           = errors.New("crawler traffic")
	ErrMalformedList     = errors.New("malformed list encoding")
	ErrConflict          = errors.New("record already exists")
)

// ValidationError reports bad input, such as a missing upload or a missing
// column. It is surfaced to the caller as a single message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidation creates a validation error for field.
func NewValidation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// MissingColumns returns a validation error listing missing columns of a file.
func MissingColumns(file string, cols []string) *ValidationError {
	return &ValidationError{
		Field:   file,
		Message: fmt.Sprintf("missing required column(s): %s", strings.Join(cols, ", ")),
	}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
