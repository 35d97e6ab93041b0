package manager

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/suite"

	"filesvc/pkg/metadata"
	"filesvc/pkg/metrics"
	"filesvc/pkg/models"
	"filesvc/pkg/store"
	"filesvc/pkg/store/disk"
)

const testLimit = 1024

// failingRecords wraps a RecordStore and injects failures.
type failingRecords struct {
	inner      RecordStore
	acquireErr error
	insertErr  error
	getErr     error
	acquired   int
	released   int
}

func (f *failingRecords) Acquire(ctx context.Context) (metadata.Session, error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	session, err := f.inner.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	f.acquired++
	return &failingSession{Session: session, parent: f}, nil
}

type failingSession struct {
	metadata.Session
	parent *failingRecords
}

func (f *failingSession) Insert(ctx context.Context, record models.FileRecord) error {
	if f.parent.insertErr != nil {
		return f.parent.insertErr
	}
	return f.Session.Insert(ctx, record)
}

func (f *failingSession) Get(ctx context.Context, id string) (models.FileRecord, bool, error) {
	if f.parent.getErr != nil {
		return models.FileRecord{}, false, f.parent.getErr
	}
	return f.Session.Get(ctx, id)
}

func (f *failingSession) Close() error {
	f.parent.released++
	return f.Session.Close()
}

// leakyFiles writes the file but then reports a failure that did not come
// from the bounded writer, leaving the file behind.
type leakyFiles struct {
	*disk.Store
}

func (l leakyFiles) Write(ctx context.Context, storedName string, reader io.Reader, maxBytes int64) (string, int64, error) {
	path := l.Path(storedName)
	data, _ := io.ReadAll(reader)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return path, 0, err
	}
	return path, 0, errors.New("post-write verification failed")
}

// ManagerTestSuite tests the upload orchestrator against a real disk store
// and a real SQLite metadata store.
type ManagerTestSuite struct {
	suite.Suite
	tempDir   string
	uploadDir string
	files     *disk.Store
	meta      *metadata.Store
	records   *failingRecords
	metrics   *metrics.Metrics
	manager   *Manager
	ctx       context.Context
	clock     int64
	nextID    string
}

// SetupTest runs before each test
func (s *ManagerTestSuite) SetupTest() {
	var err error
	s.ctx = context.Background()
	s.tempDir, err = os.MkdirTemp("", "manager-test-*")
	s.Require().NoError(err)

	s.uploadDir = filepath.Join(s.tempDir, "uploads")
	s.files, err = disk.New(s.uploadDir, disk.WithChunkSize(100))
	s.Require().NoError(err)

	s.meta, err = metadata.Open(s.ctx, metadata.Options{
		Driver: metadata.DriverSQLite,
		DSN:    filepath.Join(s.tempDir, "meta.db"),
	})
	s.Require().NoError(err)

	s.records = &failingRecords{inner: s.meta}
	s.metrics = metrics.New()
	s.clock = 1700000000
	s.nextID = ""
	s.manager = s.newManager(s.files)
}

func (s *ManagerTestSuite) newManager(files store.Store) *Manager {
	return New(files, s.records, Options{
		MaxUploadBytes: testLimit,
		Metrics:        s.metrics,
		Now: func() time.Time {
			s.clock++
			return time.Unix(s.clock, 0)
		},
		NewID: func() string {
			if s.nextID != "" {
				return s.nextID
			}
			return store.NewID()
		},
	})
}

// TearDownTest runs after each test
func (s *ManagerTestSuite) TearDownTest() {
	if s.meta != nil {
		s.meta.Close()
	}
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

func (s *ManagerTestSuite) filesWithPrefix(prefix string) []string {
	entries, err := os.ReadDir(s.uploadDir)
	s.Require().NoError(err)

	var names []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	return names
}

func (s *ManagerTestSuite) assertNoRecord(id string) {
	_, err := s.manager.Get(s.ctx, id)
	s.ErrorAs(err, new(NotFoundError))
}

// outcome reads filesvc_uploads_total for one outcome label.
func (s *ManagerTestSuite) outcome(outcome string) float64 {
	families, err := s.metrics.Registry().Gather()
	s.Require().NoError(err)

	for _, family := range families {
		if family.GetName() != "filesvc_uploads_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

// TestDefaults tests constructor defaults
func (s *ManagerTestSuite) TestDefaults() {
	m := New(s.files, s.meta, Options{})
	s.Equal(int64(DefaultMaxUploadBytes), m.MaxUploadBytes())
	s.NotNil(m.now)
	s.NotNil(m.newID)
}

// TestEndToEnd tests upload, list and open of a small text file
func (s *ManagerTestSuite) TestEndToEnd() {
	record, err := s.manager.Upload(s.ctx, "hello.txt", strings.NewReader("hello world"))
	s.Require().NoError(err)
	s.NotEmpty(record.ID)
	s.Equal("hello.txt", record.Name)
	s.Equal(int64(11), record.Size)
	s.Equal(s.clock, record.UploadedAt)
	s.Equal(filepath.Join(s.uploadDir, record.ID+".txt"), record.Path)

	records, err := s.manager.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(record, records[0])

	opened, err := s.manager.Open(s.ctx, record.ID)
	s.Require().NoError(err)
	content, err := os.ReadFile(opened.Path)
	s.Require().NoError(err)
	s.Equal("hello world", string(content))

	_, err = s.manager.Open(s.ctx, store.NewID())
	s.ErrorAs(err, new(NotFoundError))
}

// TestRoundTripBinary tests that arbitrary payloads survive unchanged
func (s *ManagerTestSuite) TestRoundTripBinary() {
	for _, size := range []int{0, 1, 99, 100, 101, 500, testLimit} {
		payload := make([]byte, size)
		_, err := rand.Read(payload)
		s.Require().NoError(err)

		record, err := s.manager.Upload(s.ctx, "blob.dat", bytes.NewReader(payload))
		s.Require().NoError(err, "size %d", size)
		s.Equal(int64(size), record.Size)

		opened, err := s.manager.Open(s.ctx, record.ID)
		s.Require().NoError(err)
		content, err := os.ReadFile(opened.Path)
		s.Require().NoError(err)
		s.Equal(payload, content, "size %d", size)
	}
}

// TestEmptyNameIsDefaulted tests the fallback name
func (s *ManagerTestSuite) TestEmptyNameIsDefaulted() {
	record, err := s.manager.Upload(s.ctx, "", strings.NewReader("x"))
	s.Require().NoError(err)
	s.Equal("upload.bin", record.Name)
	s.True(strings.HasSuffix(record.Path, record.ID+".bin"))
}

// TestExactLimit tests that exactly the limit is accepted
func (s *ManagerTestSuite) TestExactLimit() {
	record, err := s.manager.Upload(s.ctx, "max.bin", bytes.NewReader(make([]byte, testLimit)))
	s.Require().NoError(err)
	s.Equal(int64(testLimit), record.Size)
}

// TestOverLimit tests that limit+1 is rejected with no file and no record
func (s *ManagerTestSuite) TestOverLimit() {
	s.nextID = "11111111-1111-4111-8111-111111111111"

	_, err := s.manager.Upload(s.ctx, "big.bin", bytes.NewReader(make([]byte, testLimit+1)))
	var tooLarge TooLargeError
	s.Require().True(errors.As(err, &tooLarge))
	s.Equal(int64(testLimit), tooLarge.Limit)
	s.Equal("file too large (limit 1.0 KiB)", err.Error())

	s.Empty(s.filesWithPrefix(s.nextID))
	s.assertNoRecord(s.nextID)
	s.Equal(1.0, s.outcome(metrics.OutcomeTooLarge))
}

// TestSourceFailureLeavesNoOrphan tests a broken upload stream
func (s *ManagerTestSuite) TestSourceFailureLeavesNoOrphan() {
	s.nextID = "22222222-2222-4222-8222-222222222222"
	src := io.MultiReader(bytes.NewReader(make([]byte, 300)), iotest.ErrReader(errors.New("stream reset")))

	_, err := s.manager.Upload(s.ctx, "broken.bin", src)
	s.ErrorIs(err, ErrInternal)
	s.NotContains(err.Error(), "stream reset")

	s.Empty(s.filesWithPrefix(s.nextID))
	s.assertNoRecord(s.nextID)
	s.Equal(1.0, s.outcome(metrics.OutcomeFailed))
}

// TestFailureOutsideWriterIsCleanedUp tests removal of files left by other steps
func (s *ManagerTestSuite) TestFailureOutsideWriterIsCleanedUp() {
	s.nextID = "33333333-3333-4333-8333-333333333333"
	m := s.newManager(leakyFiles{Store: s.files})

	_, err := m.Upload(s.ctx, "leak.txt", strings.NewReader("data"))
	s.ErrorIs(err, ErrInternal)
	s.Empty(s.filesWithPrefix(s.nextID))
	s.assertNoRecord(s.nextID)
}

// TestInsertFailureRemovesFile tests rollback when the metadata commit fails
func (s *ManagerTestSuite) TestInsertFailureRemovesFile() {
	s.nextID = "44444444-4444-4444-8444-444444444444"
	s.records.insertErr = errors.New("connection reset")

	_, err := s.manager.Upload(s.ctx, "lost.txt", strings.NewReader("data"))
	s.ErrorIs(err, ErrInternal)
	s.Empty(s.filesWithPrefix(s.nextID))
	s.Equal(s.records.acquired, s.records.released)

	s.records.insertErr = nil
	s.assertNoRecord(s.nextID)
}

// TestAcquireFailureRemovesFile tests rollback when no session is available
func (s *ManagerTestSuite) TestAcquireFailureRemovesFile() {
	s.nextID = "55555555-5555-4555-8555-555555555555"
	s.records.acquireErr = metadata.ErrDatabaseError

	_, err := s.manager.Upload(s.ctx, "lost.txt", strings.NewReader("data"))
	s.ErrorIs(err, ErrInternal)
	s.NotErrorIs(err, metadata.ErrDatabaseError)
	s.Empty(s.filesWithPrefix(s.nextID))
}

// TestDuplicateIDRemovesNewFileOnly tests an id collision
func (s *ManagerTestSuite) TestDuplicateIDRemovesNewFileOnly() {
	s.nextID = "66666666-6666-4666-8666-666666666666"
	first, err := s.manager.Upload(s.ctx, "first.txt", strings.NewReader("first"))
	s.Require().NoError(err)

	_, err = s.manager.Upload(s.ctx, "second.md", strings.NewReader("second"))
	s.ErrorIs(err, ErrInternal)

	s.Equal([]string{s.nextID + ".txt"}, s.filesWithPrefix(s.nextID))
	got, err := s.manager.Get(s.ctx, s.nextID)
	s.Require().NoError(err)
	s.Equal(first, got)
}

// TestDuplicateIDKeepsExistingFile tests a collision on the same stored name
func (s *ManagerTestSuite) TestDuplicateIDKeepsExistingFile() {
	s.nextID = "68686868-6868-4868-8868-686868686868"
	first, err := s.manager.Upload(s.ctx, "first.txt", strings.NewReader("first"))
	s.Require().NoError(err)

	_, err = s.manager.Upload(s.ctx, "second.txt", strings.NewReader("second"))
	s.ErrorIs(err, ErrInternal)

	s.Equal([]string{s.nextID + ".txt"}, s.filesWithPrefix(s.nextID))
	content, err := os.ReadFile(first.Path)
	s.Require().NoError(err)
	s.Equal("first", string(content))

	record, err := s.manager.Open(s.ctx, s.nextID)
	s.Require().NoError(err)
	s.Equal(first, record)
	s.Equal(1.0, s.outcome(metrics.OutcomeFailed))
}

// TestCancelledUpload tests that an abandoned upload leaves nothing behind
func (s *ManagerTestSuite) TestCancelledUpload() {
	s.nextID = "77777777-7777-4777-8777-777777777777"
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.manager.Upload(ctx, "gone.txt", strings.NewReader("data"))
	s.ErrorIs(err, ErrInternal)
	s.Empty(s.filesWithPrefix(s.nextID))
}

// TestSessionsReleased tests that every call returns its session
func (s *ManagerTestSuite) TestSessionsReleased() {
	record, err := s.manager.Upload(s.ctx, "a.txt", strings.NewReader("a"))
	s.Require().NoError(err)
	_, err = s.manager.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	_, err = s.manager.List(s.ctx)
	s.Require().NoError(err)
	_, err = s.manager.Open(s.ctx, "missing")
	s.Error(err)

	s.Equal(4, s.records.acquired)
	s.Equal(s.records.acquired, s.records.released)
}

// TestListOrder tests most recent first
func (s *ManagerTestSuite) TestListOrder() {
	var ids []string
	for _, name := range []string{"t1.txt", "t2.txt", "t3.txt"} {
		record, err := s.manager.Upload(s.ctx, name, strings.NewReader(name))
		s.Require().NoError(err)
		ids = append(ids, record.ID)
	}

	records, err := s.manager.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal(ids[2], records[0].ID)
	s.Equal(ids[1], records[1].ID)
	s.Equal(ids[0], records[2].ID)
}

// TestGetNotFound tests lookup of an unknown id
func (s *ManagerTestSuite) TestGetNotFound() {
	_, err := s.manager.Get(s.ctx, "00000000-0000-0000-0000-000000000000")
	var notFound NotFoundError
	s.Require().True(errors.As(err, &notFound))
	s.Equal("00000000-0000-0000-0000-000000000000", notFound.ID)
	s.Equal("file not found", err.Error())
}

// TestGetDatabaseFailure tests that lookup failures are opaque
func (s *ManagerTestSuite) TestGetDatabaseFailure() {
	s.records.getErr = metadata.ErrDatabaseError

	_, err := s.manager.Get(s.ctx, "any")
	s.ErrorIs(err, ErrInternal)
	_, err = s.manager.Open(s.ctx, "any")
	s.ErrorIs(err, ErrInternal)
}

// TestListDatabaseFailure tests that list failures are opaque
func (s *ManagerTestSuite) TestListDatabaseFailure() {
	s.records.acquireErr = metadata.ErrDatabaseError

	_, err := s.manager.List(s.ctx)
	s.ErrorIs(err, ErrInternal)
}

// TestOpenMissingFile tests a record whose bytes were removed
func (s *ManagerTestSuite) TestOpenMissingFile() {
	record, err := s.manager.Upload(s.ctx, "vanish.txt", strings.NewReader("soon gone"))
	s.Require().NoError(err)
	s.Require().NoError(os.Remove(record.Path))

	_, err = s.manager.Get(s.ctx, record.ID)
	s.NoError(err)

	_, err = s.manager.Open(s.ctx, record.ID)
	s.ErrorAs(err, new(NotFoundError))
}

// TestMetricsCommitted tests counting of committed uploads
func (s *ManagerTestSuite) TestMetricsCommitted() {
	_, err := s.manager.Upload(s.ctx, "m.txt", strings.NewReader("12345"))
	s.Require().NoError(err)
	s.Equal(1.0, s.outcome(metrics.OutcomeCommitted))
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}
