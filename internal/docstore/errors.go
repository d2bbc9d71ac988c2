package docstore

import (
	"errors"
	"fmt"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidKey is returned when a collection or key is empty or contains
	// path separators.
	ErrInvalidKey = errors.New("invalid record key")

	// ErrInvalidData is returned when a stored document cannot be decoded.
	ErrInvalidData = errors.New("invalid record data")

	// ErrAccessDenied is returned when the backing service refuses access.
	ErrAccessDenied = errors.New("access denied")
)

// =============================================================================
// Structured Error Type
// =============================================================================

// StoreError wraps store operation errors with the record they concern.
type StoreError struct {
	// Op is the operation that failed (e.g., "QueryByField", "WriteRecord").
	Op string

	Collection string
	Key        string

	Err error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("docstore %s %s/%s: %v", e.Op, e.Collection, e.Key, e.Err)
	}
	return fmt.Sprintf("docstore %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidKey reports whether err is or wraps ErrInvalidKey.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}
