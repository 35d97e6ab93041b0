package manager

import (
	"context"

	"filesvc/pkg/log"
	"filesvc/pkg/metadata"
	"filesvc/pkg/models"
)

// Get returns the record stored under id, or NotFoundError.
func (m *Manager) Get(ctx context.Context, id string) (models.FileRecord, error) {
	var (
		record models.FileRecord
		found  bool
	)
	err := m.withSession(ctx, func(session metadata.Session) error {
		var err error
		record, found, err = session.Get(ctx, id)
		return err
	})
	if err != nil {
		log.Error().Err(err).Str("file_id", id).Msg("Failed to look up file")
		return models.FileRecord{}, ErrInternal
	}
	if !found {
		log.Debug().Str("file_id", id).Msg("File record not found")
		return models.FileRecord{}, NotFoundError{ID: id}
	}
	return record, nil
}

// List returns every record, most recently uploaded first.
func (m *Manager) List(ctx context.Context) ([]models.FileRecord, error) {
	var records []models.FileRecord
	err := m.withSession(ctx, func(session metadata.Session) error {
		var err error
		records, err = session.List(ctx)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list files")
		return nil, ErrInternal
	}
	return records, nil
}

// Open returns the record for id after checking its bytes are on disk.
// A record whose file is missing is reported as NotFoundError.
func (m *Manager) Open(ctx context.Context, id string) (models.FileRecord, error) {
	record, err := m.Get(ctx, id)
	if err != nil {
		return models.FileRecord{}, err
	}

	exists, err := m.files.Exists(record.Path)
	if err != nil {
		log.Error().Err(err).Str("file_id", id).Str("path", record.Path).Msg("Failed to stat stored file")
		return models.FileRecord{}, ErrInternal
	}
	if !exists {
		log.Warn().Str("file_id", id).Str("path", record.Path).Msg("Stored file is missing")
		return models.FileRecord{}, NotFoundError{ID: id}
	}
	return record, nil
}
