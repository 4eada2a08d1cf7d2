// =============================================================================
// Separador - Request Validation
// =============================================================================
//
// This module checks caller input before any decoding happens:
//   - At least one month, each between 1 and 12, no repeats
//   - A four digit year
//   - A non-empty upload
//   - An optional output name that is a plain file name
//
// Rules are declared as `validate` struct tags on the request types and
// enforced with go-playground/validator. Field names in messages come from
// the `form` tag so they match what the upload page sends.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError describes one rejected field.
type ValidationError struct {
	// Field is the form name of the field, with an index for list items.
	Field string

	// Value is the rejected value as text.
	Value string

	// Rule is the failed validation tag.
	Rule string

	// Message is a human-readable message.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// Errors is every rejected field of one request.
type Errors []*ValidationError

// Error joins the messages.
func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, "; ")
}

// IsValidationError reports whether err carries request validation failures.
func IsValidationError(err error) bool {
	var errs Errors
	return errors.As(err, &errs)
}

// =============================================================================
// VALIDATOR
// =============================================================================

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v, err := newValidator()
		if err != nil {
			panic(fmt.Sprintf("validation: %v", err))
		}
		validate = v
	})
	return validate
}

// newValidator builds a validator with the custom rules and form field names.
func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("filename", isValidFilename); err != nil {
		return nil, fmt.Errorf("failed to register filename rule: %w", err)
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v, nil
}

// Struct validates v against its `validate` tags. It returns nil or Errors.
func Struct(v interface{}) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate request: %w", err)
	}

	out := make(Errors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &ValidationError{
			Field:   fe.Field(),
			Value:   valueText(fe.Value()),
			Rule:    fe.Tag(),
			Message: formatFieldError(fe),
		})
	}
	return out
}

// isValidFilename accepts a bare file name with no directory part.
func isValidFilename(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" {
		return true
	}
	if strings.ContainsAny(name, `/\:*?"<>|`) || strings.ContainsRune(name, 0) {
		return false
	}
	return name == filepath.Base(name) && name != "." && name != ".."
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s item(s)", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "unique":
		return fmt.Sprintf("%s must not repeat values", field)
	case "filename":
		return fmt.Sprintf("%s must be a plain file name", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

func valueText(v interface{}) string {
	switch t := v.(type) {
	case []byte:
		return fmt.Sprintf("%d bytes", len(t))
	default:
		return fmt.Sprint(v)
	}
}
