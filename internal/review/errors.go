package review

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnauthenticated = errors.New("caller is not authenticated")
	ErrNotFound        = errors.New("review record not found")
	ErrConflict        = errors.New("review record was modified concurrently")
)

// FieldError describes a problem with a single input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError is returned when call arguments are malformed.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Error)
	}
	return "invalid input: " + strings.Join(msgs, "; ")
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// newValidationError converts validator field errors into a ValidationError.
func newValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{Field: fe.Field(), Error: describe(fe)})
	}
	return ve
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "printascii":
		return "only printable ASCII characters are allowed"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
