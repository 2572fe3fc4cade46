package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Append adds err when it is a ValidationError; other errors are wrapped
// into one under field.
func (ve *ValidationErrors) Append(field string, err error) {
	if err == nil {
		return
	}
	if v, ok := err.(ValidationError); ok {
		*ve = append(*ve, v)
		return
	}
	ve.Add(field, err.Error())
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, entityType string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateEntityName validates that an entity name can be used as a file
// stem and a URL path segment.
func ValidateEntityName(name, entityType string) error {
	if err := ValidateRequired("name", name, entityType); err != nil {
		return err
	}
	if len(name) > 100 {
		return ValidationError{Field: "name", Value: name, Message: "must not exceed 100 characters"}
	}
	if strings.ContainsAny(name, " /\\") {
		return ValidationError{Field: "name", Value: name, Message: "cannot contain spaces or path separators"}
	}
	return nil
}

// ValidateDuration checks that value parses as a positive duration.
func ValidateDuration(field, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return ValidationError{Field: field, Value: value, Message: fmt.Sprintf("is not a valid duration: %v", err)}
	}
	if d <= 0 {
		return ValidationError{Field: field, Value: value, Message: "must be positive"}
	}
	return nil
}

// ValidatePattern checks that value compiles as a regular expression.
func ValidatePattern(field, value string) error {
	if _, err := regexp.Compile(value); err != nil {
		return ValidationError{Field: field, Value: value, Message: fmt.Sprintf("is not a valid regular expression: %v", err)}
	}
	return nil
}

// ValidateURL checks that value is an absolute http(s) URL.
func ValidateURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationError{Field: field, Value: value, Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// FormatValidationError creates a consistent validation error message
func FormatValidationError(entityType, entityName string, err error) error {
	if err == nil {
		return nil
	}

	if entityName != "" {
		return fmt.Errorf("validation failed for %s '%s': %w", entityType, entityName, err)
	}
	return fmt.Errorf("validation failed for %s: %w", entityType, err)
}
