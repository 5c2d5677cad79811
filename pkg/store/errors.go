package store

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when a writer or backend is configured
	// with unusable values (missing path or DSN, unknown backend kind).
	ErrInvalidConfig = errors.New("store: invalid configuration")

	// ErrBackendUnavailable is returned when the storage backend cannot be
	// opened or reached at construction time.
	ErrBackendUnavailable = errors.New("store: backend unavailable")

	// ErrClosed is returned by operations on a closed writer.
	ErrClosed = errors.New("store: writer closed")
)

// SchemaError reports a record layout that cannot be mapped onto the store.
// It is not retryable.
type SchemaError struct {
	Table  string
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("store: schema for %q: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("store: schema for %q column %q: %s", e.Table, e.Column, e.Reason)
}

// PersistenceError reports a failed append, commit or checkpoint.
// Unwritten holds the rows that did not reach a committed transaction, in
// their original order, so the caller can requeue them.
type PersistenceError[T any] struct {
	Op        string
	Err       error
	Unwritten []T
}

func (e *PersistenceError[T]) Error() string {
	return fmt.Sprintf("store: %s failed (%d rows unwritten): %v", e.Op, len(e.Unwritten), e.Err)
}

func (e *PersistenceError[T]) Unwrap() error {
	return e.Err
}

// IsSchemaError reports whether err is or wraps a *SchemaError
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
