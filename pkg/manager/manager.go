package manager

import (
	"context"
	"time"

	"filesvc/pkg/log"
	"filesvc/pkg/metadata"
	"filesvc/pkg/metrics"
	"filesvc/pkg/store"
)

// DefaultMaxUploadBytes is used when Options.MaxUploadBytes is not positive (20 MiB).
const DefaultMaxUploadBytes = 20 * 1024 * 1024

// RecordStore hands out scoped metadata sessions.
type RecordStore interface {
	Acquire(ctx context.Context) (metadata.Session, error)
}

// Options configures a Manager.
type Options struct {
	MaxUploadBytes int64
	Metrics        *metrics.Metrics

	// Now and NewID default to time.Now and store.NewID.
	Now   func() time.Time
	NewID func() string
}

// Manager coordinates file bytes on disk with their metadata records.
type Manager struct {
	files    store.Store
	records  RecordStore
	maxBytes int64
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

// New creates a Manager over the given file store and record store.
func New(files store.Store, records RecordStore, opts Options) *Manager {
	m := &Manager{
		files:    files,
		records:  records,
		maxBytes: opts.MaxUploadBytes,
		metrics:  opts.Metrics,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if m.maxBytes <= 0 {
		m.maxBytes = DefaultMaxUploadBytes
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = store.NewID
	}
	return m
}

// MaxUploadBytes returns the configured upload limit.
func (m *Manager) MaxUploadBytes() int64 {
	return m.maxBytes
}

// withSession runs fn on a freshly acquired session and always releases it.
func (m *Manager) withSession(ctx context.Context, fn func(metadata.Session) error) error {
	session, err := m.records.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to release metadata session")
		}
	}()

	return fn(session)
}
