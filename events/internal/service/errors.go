package service

import (
	"errors"
	"fmt"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/repository"
)

var (
	// ErrValidation marks request errors detected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrSystemNotFound is returned when a request names an unknown system.
	ErrSystemNotFound = repository.ErrSystemNotFound
)

// ValidationError reports an invalid request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StepResult is the outcome of a best-effort step that runs after a
// successful primary mutation. Err is informational; the caller still
// reports success, with Count at zero.
type StepResult struct {
	Count int
	Err   error
}

// Failed reports whether the step failed.
func (s StepResult) Failed() bool {
	return s.Err != nil
}
