package model

import (
	"errors"
	"fmt"
)

// ErrConfirmationRequired is returned by destructive operations that were
// invoked without the explicit confirmation flag. No state is mutated.
var ErrConfirmationRequired = errors.New("confirmation required")

// ErrNotImplemented is returned by operations that exist on the panel surface
// but have no implementation yet (database backup).
var ErrNotImplemented = errors.New("not yet implemented")

// ValidationError marks a failure caused by user input rather than by a
// collaborator fault. Handlers surface these as warnings (400) instead of
// errors (500).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validationf builds a *ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
