package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks input rejected before any external call:
	// empty text, non-positive limit, malformed filter. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned for lookups by id that miss.
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch marks an embedding whose length differs from
	// the store's configured dimension. Fatal for the row, never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ExternalServiceError wraps a failure of the embedding provider or the
// generation model after retries were exhausted.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s service: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// StorageError wraps a document store failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
