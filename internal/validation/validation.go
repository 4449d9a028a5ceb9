// Package validation collects field violations so forms can report every
// problem at once instead of stopping at the first.
package validation

import (
	"errors"
	"strings"
)

// Violation describes one invalid field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is a list of violations that satisfies the error interface.
type Errors []Violation

// Add appends a violation.
func (e *Errors) Add(field, message string) {
	*e = append(*e, Violation{Field: field, Message: message})
}

// Has reports whether field has at least one violation.
func (e Errors) Has(field string) bool {
	for _, v := range e {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Err returns nil when no violations were collected.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, v := range e {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// As extracts the violations carried by err, if any.
func As(err error) (Errors, bool) {
	var v Errors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
