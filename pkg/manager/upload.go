package manager

import (
	"context"
	"errors"
	"io"
	"io/fs"

	"filesvc/pkg/log"
	"filesvc/pkg/metadata"
	"filesvc/pkg/metrics"
	"filesvc/pkg/models"
	"filesvc/pkg/store"
)

// state tracks one upload attempt: started, writing, then committed or rolled back.
type state string

const (
	stateStarted    state = "started"
	stateWriting    state = "writing"
	stateCommitted  state = "committed"
	stateRolledBack state = "rolled_back"
)

// Upload streams reader to disk under a new id and records its metadata.
//
// On success the record is returned and both the file and its row exist.
// On failure neither exists: the error is TooLargeError or ErrInternal.
func (m *Manager) Upload(ctx context.Context, name string, reader io.Reader) (models.FileRecord, error) {
	id := m.newID()
	ext := store.Extension(name)
	storedName := store.StoredName(id, ext)
	dest := m.files.Path(storedName)
	if name == "" {
		name = "upload" + ext
	}

	log.Debug().Str("file_id", id).Str("name", name).Str("state", string(stateStarted)).Msg("Upload started")

	log.Debug().Str("file_id", id).Str("state", string(stateWriting)).Msg("Writing upload")
	path, size, err := m.files.Write(ctx, storedName, reader, m.maxBytes)
	if err != nil {
		// A file already at dest belongs to an earlier upload and stays.
		if !destinationTaken(err) {
			m.discard(id, dest)
		}

		var tooLarge store.TooLargeError
		if errors.As(err, &tooLarge) {
			m.metrics.Upload(metrics.OutcomeTooLarge, 0)
			log.Info().Str("file_id", id).Int64("limit", tooLarge.Limit).Str("state", string(stateRolledBack)).Msg("Upload rejected: too large")
			return models.FileRecord{}, TooLargeError{Limit: tooLarge.Limit}
		}

		m.metrics.Upload(metrics.OutcomeFailed, 0)
		log.Error().Err(err).Str("file_id", id).Str("state", string(stateRolledBack)).Msg("Failed to write upload")
		return models.FileRecord{}, ErrInternal
	}

	record := models.FileRecord{
		ID:         id,
		Name:       name,
		Path:       path,
		Size:       size,
		UploadedAt: m.now().Unix(),
	}

	err = m.withSession(ctx, func(session metadata.Session) error {
		return session.Insert(ctx, record)
	})
	if err != nil {
		m.discard(id, path)
		m.metrics.Upload(metrics.OutcomeFailed, 0)
		if errors.Is(err, metadata.ErrDuplicateID) {
			log.Error().Err(err).Str("file_id", id).Msg("Generated id collided with an existing record")
		}
		log.Error().Err(err).Str("file_id", id).Str("state", string(stateRolledBack)).Msg("Failed to commit upload metadata")
		return models.FileRecord{}, ErrInternal
	}

	m.metrics.Upload(metrics.OutcomeCommitted, size)
	log.Info().
		Str("file_id", id).
		Str("name", name).
		Int64("size", size).
		Str("state", string(stateCommitted)).
		Msg("File uploaded successfully")
	return record, nil
}

// discard removes the destination of an aborted upload. Failures are logged only.
func (m *Manager) discard(id, path string) {
	if err := m.files.Remove(path); err != nil {
		log.Warn().Err(err).Str("file_id", id).Str("path", path).Msg("Failed to remove file of aborted upload")
	}
}

// destinationTaken reports whether err came from refusing to create a file
// that already exists.
func destinationTaken(err error) bool {
	var ioErr *store.IOError
	return errors.As(err, &ioErr) && ioErr.Op == "create" && errors.Is(ioErr.Err, fs.ErrExist)
}
