package store

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// StoreTestSuite tests the store package naming helpers and errors
type StoreTestSuite struct {
	suite.Suite
}

// TestNewID tests that ids are unique version 4 UUIDs
func (s *StoreTestSuite) TestNewID() {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewID()
		parsed, err := uuid.Parse(id)
		s.Require().NoError(err)
		s.Equal(uuid.Version(4), parsed.Version())
		s.Len(id, 36)

		_, dup := seen[id]
		s.False(dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

// TestExtension tests extension derivation from client names
func (s *StoreTestSuite) TestExtension() {
	testCases := []struct {
		name string
		want string
	}{
		{"a.tar.gz", ".gz"},
		{"noext", ".bin"},
		{"", ".bin"},
		{"photo.PNG", ".PNG"},
		{"hello.txt", ".txt"},
		{".bashrc", ".bin"},
		{"..hidden.conf", ".conf"},
		{"trailing.", ".bin"},
		{"dir.d/file", ".bin"},
		{`C:\Users\me\report.pdf`, ".pdf"},
		{"../../etc/passwd.x", ".x"},
		{"weird.ex t", ".ex t"},
		{"archive.t@r", ".t@r"},
		{"long." + strings.Repeat("a", 20), "." + strings.Repeat("a", 20)},
		{"huge." + strings.Repeat("a", 250), ".bin"},
		{"bell.t\x07xt", ".bin"},
		{"newline.tx\nt", ".bin"},
		{"broken.\xff", ".bin"},
		{"archive.7z", ".7z"},
	}

	for _, tc := range testCases {
		s.Equal(tc.want, Extension(tc.name), "name %q", tc.name)
	}
}

// TestStoredName tests the id to disk name mapping
func (s *StoreTestSuite) TestStoredName() {
	s.Equal("abc.png", StoredName("abc", ".png"))
	s.Equal("abc.bin", StoredName("abc", Extension("")))
}

// TestTooLargeError tests the TooLargeError type
func (s *StoreTestSuite) TestTooLargeError() {
	err := TooLargeError{Limit: 10}
	s.Equal("file exceeds limit of 10 bytes", err.Error())

	var target TooLargeError
	s.True(errors.As(error(err), &target))
	s.Equal(int64(10), target.Limit)
}

// TestIOError tests the IOError type
func (s *StoreTestSuite) TestIOError() {
	err := &IOError{Op: "write", Path: "/tmp/x", Err: fs.ErrPermission}
	s.Equal("write /tmp/x: permission denied", err.Error())
	s.ErrorIs(err, fs.ErrPermission)

	var target *IOError
	s.True(errors.As(error(err), &target))
	s.Equal("write", target.Op)
}

// TestSuite runs the store test suite
func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
