package services

import (
	"errors"

	"github.com/ledgerline/ledgerline/internal/validation"
)

var (
	// ErrNotFound means the record does not exist within the caller's
	// ownership scope.
	ErrNotFound = errors.New("not found")

	// ErrConflict surfaces a storage uniqueness violation, e.g. an
	// explicit invoice number that already exists for the owner.
	ErrConflict = errors.New("conflict")

	// ErrInvalidStatus means the operation is not allowed in the
	// invoice's current status.
	ErrInvalidStatus = errors.New("operation not allowed in current status")
)

// ValidationError carries field-level violations back to the caller.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string { return "validation failed" }

func validationErr(v validation.Violations) error {
	return &ValidationError{Violations: v}
}
