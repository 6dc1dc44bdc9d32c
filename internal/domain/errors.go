// Package domain defines the error taxonomy shared by all workflows.
package domain

import "errors"

// Sentinel errors. Domain operations wrap these with fmt.Errorf("...: %w")
// so callers can classify with errors.Is while keeping a descriptive reason.
var (
	// ErrNotFound: a referenced object/activation/prescription/user is absent.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: the role or ownership check failed. Always raised before
	// any mutation, so a forbidden operation has no partial effect.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict: the operation is valid in general but illegal in the
	// current state, e.g. final completion before SSK completion.
	ErrConflict = errors.New("conflict")

	// ErrValidation: malformed input shape or a missing required field.
	ErrValidation = errors.New("validation")
)
