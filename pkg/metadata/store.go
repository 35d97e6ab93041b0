package metadata

import (
	"context"
	"database/sql"
	"fmt"

	"filesvc/pkg/log"
)

// Options selects the database backing the Store.
type Options struct {
	Driver string // DriverSQLite or DriverPostgres
	DSN    string // file path for SQLite, connection URL for PostgreSQL
}

// Store manages file metadata in a relational database.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the database, checks it is reachable and applies Schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, opts.Driver)
	}

	database, err := sql.Open(d.sqlDriver, d.dataSource(opts.DSN))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrDatabaseError, err)
	}

	store := &Store{db: database, dialect: d}
	if err := store.Ping(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}

	if d.name == DriverSQLite {
		if _, err := database.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("%w: failed to enable WAL mode: %w", ErrDatabaseError, err)
		}
	}

	if err := store.Initialize(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}

	log.Info().Str("driver", d.name).Msg("Metadata store ready")
	return store, nil
}

// Initialize creates the database schema.
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %w", ErrDatabaseError, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping failed: %w", ErrDatabaseError, err)
	}
	return nil
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Acquire reserves one connection for the caller. The returned Session must
// be closed on every path.
func (s *Store) Acquire(ctx context.Context) (Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire connection: %w", ErrDatabaseError, err)
	}
	return &session{conn: conn, dialect: s.dialect}, nil
}
