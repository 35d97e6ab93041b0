package disk

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"filesvc/pkg/log"
	"filesvc/pkg/store"
)

const (
	dirPerm  = 0750
	filePerm = 0640
)

// Store implements the store.Store interface on a flat upload directory.
type Store struct {
	uploadDir string
	chunkSize int
}

// Option tweaks a Store at construction time.
type Option func(*Store)

// WithChunkSize overrides the read/write chunk size used by Write.
func WithChunkSize(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// New creates the upload directory if needed and returns a Store rooted there.
func New(uploadDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(uploadDir, dirPerm); err != nil {
		log.Error().Err(err).Str("upload_dir", uploadDir).Msg("Failed to create upload directory")
		return nil, err
	}

	s := &Store{
		uploadDir: uploadDir,
		chunkSize: ChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the upload directory.
func (s *Store) Dir() string {
	return s.uploadDir
}

// Path returns the location used for storedName.
func (s *Store) Path(storedName string) string {
	return filepath.Join(s.uploadDir, filepath.Base(storedName))
}

// Write streams reader into the upload directory under storedName.
func (s *Store) Write(ctx context.Context, storedName string, reader io.Reader, maxBytes int64) (string, int64, error) {
	path := s.Path(storedName)
	size, err := WriteBoundedChunk(ctx, reader, path, maxBytes, s.chunkSize)
	if err != nil {
		return path, 0, err
	}

	log.Debug().Str("path", path).Int64("size", size).Msg("File written")
	return path, size, nil
}

var _ store.Store = (*Store)(nil)
