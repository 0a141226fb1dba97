// Package errors provides custom error types for catalog operations.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var ErrProductNotFound = errors.New("product not found")

var ErrPersist = errors.New("failed to persist catalog")

// FieldError describes one rejected field and the rule it failed.
type FieldError struct {
	Field string
	Rule  string
}

// ValidationError is returned when a product payload violates one or more field rules.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Rule))
	}
	return "invalid product: " + strings.Join(parts, ", ")
}

// FieldNames returns the names of the violated fields in report order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return names
}
