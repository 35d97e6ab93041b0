package metadata

import "errors"

var (
	// ErrDuplicateID is returned when a record with the same id already exists.
	ErrDuplicateID = errors.New("duplicate file id")

	// ErrUnsupportedDriver is returned for a driver other than sqlite or postgres.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("database error")
)
