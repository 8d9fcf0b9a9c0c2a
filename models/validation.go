package models

import (
	"fmt"
	"strings"
)

// FieldError is a single field-level constraint violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError groups the violations found on one entity.
type ValidationError struct {
	Entity string       `json:"entity"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return fmt.Sprintf("%s validation failed: %s", e.Entity, strings.Join(parts, "; "))
}

// NewValidationError returns nil when there are no violations.
func NewValidationError(entity string, fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Entity: entity, Fields: fields}
}

func required(fields []FieldError, name, value, message string) []FieldError {
	if strings.TrimSpace(value) == "" {
		return append(fields, FieldError{Field: name, Message: message})
	}
	return fields
}
