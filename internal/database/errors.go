package database

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidParameter is returned on a contract violation such as an
	// out-of-range confidence or an empty search query. Callers must not retry.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrDatabaseClosed is returned when an operation is attempted after Close
	ErrDatabaseClosed = errors.New("database is closed")
)

// MigrationError indicates a schema migration failed to apply. The store is
// left at the last fully-applied migration; startup must abort rather than
// continue on a partially-upgraded schema.
type MigrationError struct {
	Name string
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %q failed: %v", e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
