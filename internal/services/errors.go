package services

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"estatelink/marketplace/internal/repository"
)

var (
	ErrNotFound              = repository.ErrNotFound
	ErrAlreadyExists         = repository.ErrAlreadyExists
	ErrForbidden             = errors.New("forbidden")
	ErrValidation            = errors.New("validation failed")
	ErrConsultationCompleted = errors.New("consultation already completed")
	ErrConsultationCancelled = errors.New("consultation cancelled")
	ErrIssueReported         = errors.New("an issue has been reported for this consultation")
	ErrInvalidTransition     = errors.New("invalid state transition")
)

// ValidationError is a user-facing input error. It matches ErrValidation with errors.Is.
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

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags of input and folds failures into one ValidationError.
func validateStruct(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	fields := ProcessValidationErrors(validationErrors)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	first := names[0]
	return &ValidationError{Field: first, Message: describeTag(fields[first])}
}

func describeTag(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	default:
		return "failed " + tag + " validation"
	}
}

// ProcessValidationErrors maps each failing field to the tag it failed.
func ProcessValidationErrors(validationErrors validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(validationErrors))
	for _, ve := range validationErrors {
		out[ve.Field()] = ve.Tag()
	}
	return out
}

// authorize fails with ErrForbidden when allowed is false.
func authorize(allowed bool, action string) error {
	if !allowed {
		return fmt.Errorf("%s: %w", action, ErrForbidden)
	}
	return nil
}
