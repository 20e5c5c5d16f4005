package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName is returned when creating a save whose name is taken.
	ErrDuplicateName = errors.New("save already exists")

	// ErrUnknownSave is returned when saving or loading a name that the
	// registry does not know.
	ErrUnknownSave = errors.New("unknown save")

	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("storage failure")

	// ErrNoSnapshot is returned by a Storage that has never been written.
	ErrNoSnapshot = errors.New("no snapshot stored")
)

// StorageError reports a failure to read, write, encode or decode the
// durable registry snapshot.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
