package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Messaging error taxonomy
var (
	// ErrInvalidArgument malformed or missing ids
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrValidation well-formed request rejected by content rules (empty body, bad type)
	ErrValidation = errors.New("validation failed")
	// ErrForbidden caller is an authorized reader but may not perform the mutation
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound absent, or not visible to the caller
	ErrNotFound = errors.New("resource not found")
	// ErrConflict concurrent-creation race; resolved internally, never returned by Resolve
	ErrConflict = errors.New("conflict")
	// ErrStorageUnavailable transient storage failure, retriable
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
)

// Invalid wraps ErrInvalidArgument with detail
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Validation wraps ErrValidation with detail
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StorageErr translates a storage-layer error into the taxonomy.
// nil stays nil, record-not-found becomes ErrNotFound, context errors pass through
// untouched, everything else is ErrStorageUnavailable.
func StorageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isTaxonomy(err):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
}

func isTaxonomy(err error) bool {
	for _, e := range []error{ErrInvalidArgument, ErrValidation, ErrForbidden, ErrNotFound, ErrConflict, ErrStorageUnavailable} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
