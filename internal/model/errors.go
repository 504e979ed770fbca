package model

import (
	"errors"
	"fmt"
)

// Domain errors. The HTTP layer maps them to status codes.
var (
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrNotPending           = errors.New("attendance is not pending approval")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrInvalid              = errors.New("invalid input")
	ErrConflict             = errors.New("already exists")
)

// Invalid wraps ErrInvalid with a field-level reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
