package notes

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no annotation exists at the requested line.
	ErrNotFound = errors.New("annotation not found")
	// ErrConflict is returned when a rename target already carries annotations.
	ErrConflict = errors.New("target already annotated")
	// ErrPersistence matches every PersistError.
	ErrPersistence = errors.New("persistence failure")
)

// PersistError reports a mutation whose in-memory effect was applied but
// whose write to disk failed. The change may not survive a restart.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: changes kept in memory but not saved: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// IsPersistError reports whether err carries a PersistError.
func IsPersistError(err error) bool {
	return errors.Is(err, ErrPersistence)
}
