package manager

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// ErrInternal hides every storage or database failure from callers.
var ErrInternal = errors.New("internal error")

// TooLargeError is returned when an upload exceeds the configured limit.
type TooLargeError struct {
	Limit int64
}

func (e TooLargeError) Error() string {
	return fmt.Sprintf("file too large (limit %s)", humanize.IBytes(uint64(e.Limit)))
}

// NotFoundError is returned when no file is stored under an id.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return "file not found"
}
