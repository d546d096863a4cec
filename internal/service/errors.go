package service

import (
	"fmt"
	"sort"
	"strings"

	"example.com/raceday/services/registration/internal/repository"
)

// ErrNotFound is returned when a referenced event or runner does not exist.
var ErrNotFound = repository.ErrNotFound

// ErrTxConflict is returned when a write lost its transaction race more
// times than the engine is willing to retry. Callers may try again.
var ErrTxConflict = repository.ErrTxConflict

// ValidationError carries one or more messages per offending input field.
// It is always recoverable; the caller re-prompts with the messages.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError creates an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add records a message for a field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Empty reports whether no messages have been recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e.Fields[f], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// DuplicateStartNoError reports that a start number is already taken by
// another runner of the same event. It unwraps to a ValidationError so
// callers handling field errors catch it too.
type DuplicateStartNoError struct {
	StartNo int
	fields  *ValidationError
}

// NewDuplicateStartNoError creates a DuplicateStartNoError for startNo.
func NewDuplicateStartNoError(startNo int) *DuplicateStartNoError {
	v := NewValidationError()
	v.Add("start_no", "start number is already taken")
	return &DuplicateStartNoError{StartNo: startNo, fields: v}
}

func (e *DuplicateStartNoError) Error() string {
	return fmt.Sprintf("start number %d is already taken", e.StartNo)
}

func (e *DuplicateStartNoError) Unwrap() error {
	return e.fields
}
