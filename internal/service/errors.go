package service

import (
	"errors"
	"fmt"

	"vaultgraph/internal/storage"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrNotIndexed is returned while the vault has no rows in the index yet.
	// It matches ErrNotFound.
	ErrNotIndexed = fmt.Errorf("vault is not indexed: %w", ErrNotFound)
	// ErrExternalService is returned when an external service call fails.
	ErrExternalService = errors.New("external service error")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// WrapError wraps err with msg. Missing index rows are also marked
// ErrNotFound so handlers need not know about storage.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if storage.IsNotFound(err) && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w (%w)", msg, err, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
