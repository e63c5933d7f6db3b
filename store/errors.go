package store

import "errors"

// Error Handling Guidelines:
// - Stores: wrap driver errors with fmt.Errorf("context: %w", err)
// - Services: translate store sentinels into apperrors
// - Handlers: render apperrors through middleware.ErrorHandler

// Predefined errors for the store layer.
var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict indicates a uniqueness violation, e.g. a second profile for
	// the same user or a duplicate username.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("store unavailable")
)
