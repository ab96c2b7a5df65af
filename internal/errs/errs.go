// Package errs defines the failure taxonomy shared by the core and the
// HTTP layer. The core wraps these sentinels; handlers map them to
// status codes with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a referenced post or user that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks a field or content constraint violation.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized marks an actor lacking rights over the target.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict marks a uniqueness or relationship violation, such as
	// a taken username or a self-follow attempt.
	ErrConflict = errors.New("conflict")
)

func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

func Unauthorizedf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnauthorized)
}

func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}
