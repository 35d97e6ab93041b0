package disk

import (
	"errors"
	"io/fs"
	"os"

	"filesvc/pkg/log"
)

// Remove deletes the file at path. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error().Err(err).Str("path", path).Msg("Failed to remove file")
		return err
	}
	return nil
}

// removePartial deletes an aborted destination. Failures are only logged.
func removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove partial file")
	}
}
