package disk

import (
	"errors"
	"io/fs"
	"os"
)

// Exists checks if a regular file is present at path.
func (s *Store) Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
