package store

import (
	"context"
	"fmt"
	"io"
)

// Store defines the interface for on-disk file storage operations.
type Store interface {
	// Write streams reader into the file named storedName, failing with
	// TooLargeError once more than maxBytes arrive. On any error the
	// partially written file is removed before returning.
	Write(ctx context.Context, storedName string, reader io.Reader, maxBytes int64) (path string, size int64, err error)

	// Path returns the location used for storedName.
	Path(storedName string) string

	// Exists checks if a regular file is present at path.
	Exists(path string) (bool, error)

	// Remove deletes the file at path. A missing file is not an error.
	Remove(path string) error
}

// TooLargeError is returned when a stream exceeds the allowed size.
type TooLargeError struct {
	Limit int64
}

func (e TooLargeError) Error() string {
	return fmt.Sprintf("file exceeds limit of %d bytes", e.Limit)
}

// IOError is returned when reading the source or writing the destination fails.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
