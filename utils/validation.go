package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Constraint names reported in field violations
const (
	ConstraintIsEmail   = "isEmail"
	ConstraintIsString  = "isString"
	ConstraintIsArray   = "isArray"
	ConstraintIsObject  = "isObject"
	ConstraintWhitelist = "whitelistValidation"
)

var (
	// validate is the singleton validator instance
	validate *validator.Validate
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so violations match the payload
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// FieldViolation is one (field, violated constraint) pair
type FieldViolation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message    string
	Violations []FieldViolation
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Messages(), "; "))
}

// Add records a violation
func (e *ValidationError) Add(field, constraint, message string) {
	e.Violations = append(e.Violations, FieldViolation{
		Field:      field,
		Constraint: constraint,
		Message:    message,
	})
}

// Merge appends the violations of other, if any
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	e.Violations = append(e.Violations, other.Violations...)
}

// HasViolations reports whether at least one violation was recorded
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}

// Messages returns the human readable message of every violation, in order
func (e *ValidationError) Messages() []string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

// NewValidationError creates an empty ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{Message: "Validation failed"}
}

// ValidateStruct validates a struct using go-playground/validator.
// It returns nil or a *ValidationError listing every failed field.
func ValidateStruct(s interface{}) *ValidationError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verr := NewValidationError()
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		verr.Add("", "invalid", err.Error())
		return verr
	}

	for _, fe := range validationErrors {
		field := fe.Field()
		switch fe.Tag() {
		case "email":
			verr.Add(field, ConstraintIsEmail, fmt.Sprintf("%s must be an email", field))
		default:
			verr.Add(field, fe.Tag(), fmt.Sprintf("%s validation failed on '%s' tag", field, fe.Tag()))
		}
	}
	return verr
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// GetViolations extracts field violations from a ValidationError
func GetViolations(err error) []FieldViolation {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Violations
	}
	return nil
}
