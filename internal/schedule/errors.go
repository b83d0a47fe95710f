package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrProfessionalInactive rejects operations that are meaningless for a
	// deactivated professional, before any computation runs.
	ErrProfessionalInactive = errors.New("professional is not active")

	// ErrOwnershipMismatch rejects a cancellation whose supplied actor id
	// does not match the appointment's own reference.
	ErrOwnershipMismatch = errors.New("actor does not own this appointment")

	// ErrSummariesUnsupported is returned when the repository supports
	// neither summary strategy.
	ErrSummariesUnsupported = errors.New("patient summaries are not supported by this repository")
)

// ValidationError carries field-level detail for malformed input. All
// invalid fields are collected before the error is returned, so one
// response enumerates everything the caller must fix.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = message
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// Err returns the error itself, or nil when no field was flagged.
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e.Fields[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
