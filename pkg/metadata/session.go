package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"filesvc/pkg/models"
)

// Session is a scoped handle on the metadata store. Records are never
// updated or deleted through it.
type Session interface {
	// Insert stores a new record. ErrDuplicateID if the id is taken.
	Insert(ctx context.Context, record models.FileRecord) error

	// Get looks a record up by id. A miss reports found == false and no error.
	Get(ctx context.Context, id string) (record models.FileRecord, found bool, err error)

	// List returns every record, most recently uploaded first.
	List(ctx context.Context) ([]models.FileRecord, error)

	// Close returns the underlying connection to the pool.
	Close() error
}

type session struct {
	conn    *sql.Conn
	dialect dialect
}

func (s *session) Insert(ctx context.Context, record models.FileRecord) error {
	_, err := s.conn.ExecContext(ctx,
		s.dialect.rebind(`INSERT INTO files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?)`),
		record.ID, record.Name, record.Path, record.Size, record.UploadedAt,
	)
	if err != nil {
		if s.dialect.isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, record.ID)
		}
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

func (s *session) Get(ctx context.Context, id string) (models.FileRecord, bool, error) {
	var record models.FileRecord
	err := s.conn.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT `+fileColumns+` FROM files WHERE id = ?`),
		id,
	).Scan(&record.ID, &record.Name, &record.Path, &record.Size, &record.UploadedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return models.FileRecord{}, false, nil
	}
	if err != nil {
		return models.FileRecord{}, false, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return record, true, nil
}

func (s *session) List(ctx context.Context) ([]models.FileRecord, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files ORDER BY uploaded_at DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]models.FileRecord, 0)
	for rows.Next() {
		var record models.FileRecord
		if err := rows.Scan(&record.ID, &record.Name, &record.Path, &record.Size, &record.UploadedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return records, nil
}

func (s *session) Close() error {
	return s.conn.Close()
}
