package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"

	"filesvc/pkg/manager"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// DownloadTestSuite tests the download endpoint
type DownloadTestSuite struct {
	suite.Suite
	env    *testEnv
	server *Server
}

// SetupTest runs before each test
func (s *DownloadTestSuite) SetupTest() {
	s.env = newTestEnv(&s.Suite)
	s.server = s.env.server("")
}

// TearDownTest runs after each test
func (s *DownloadTestSuite) TearDownTest() {
	s.env.close()
}

func (s *DownloadTestSuite) download(id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/files/"+id, nil)
	rec := httptest.NewRecorder()
	c := s.server.echo.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)

	err := s.server.downloadFile(c)
	s.NoError(err)
	return rec
}

// TestDownloadFileSuccess tests successful file download
func (s *DownloadTestSuite) TestDownloadFileSuccess() {
	uploaded := uploadOK(&s.Suite, s.server, "hello.txt", []byte("hello world"))

	rec := s.download(uploaded.ID)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("hello world", rec.Body.String())
	s.Equal("text/plain; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
	s.Equal(`attachment; filename="hello.txt"`, rec.Header().Get(echo.HeaderContentDisposition))
}

// TestDownloadFileDetectsContent tests detection from bytes rather than name
func (s *DownloadTestSuite) TestDownloadFileDetectsContent() {
	uploaded := uploadOK(&s.Suite, s.server, "picture.dat", pngHeader)

	rec := s.download(uploaded.ID)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("image/png", rec.Header().Get(echo.HeaderContentType))
	s.Equal(pngHeader, rec.Body.Bytes())
}

// TestDownloadFileBinaryRoundTrip tests that every byte value survives
func (s *DownloadTestSuite) TestDownloadFileBinaryRoundTrip() {
	payload := make([]byte, testLimit)
	for i := range payload {
		payload[i] = byte(255 - i)
	}
	uploaded := uploadOK(&s.Suite, s.server, "bytes.bin", payload)

	rec := s.download(uploaded.ID)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(payload, rec.Body.Bytes())
}

// TestDownloadFileNotFound tests download when the id is unknown
func (s *DownloadTestSuite) TestDownloadFileNotFound() {
	rec := s.download("ffffffff-ffff-4fff-bfff-ffffffffffff")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("file not found", decodeError(&s.Suite, rec))
	s.Empty(rec.Header().Get(echo.HeaderContentDisposition))
}

// TestDownloadFileMissingOnDisk tests a record whose bytes are gone
func (s *DownloadTestSuite) TestDownloadFileMissingOnDisk() {
	uploaded := uploadOK(&s.Suite, s.server, "gone.txt", []byte("bye"))
	s.Require().NoError(os.Remove(filepath.Join(s.env.uploadDir, uploaded.ID+".txt")))

	rec := s.download(uploaded.ID)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("file not found", decodeError(&s.Suite, rec))
}

// TestDownloadFileDatabaseFailure tests that lookup failures are opaque
func (s *DownloadTestSuite) TestDownloadFileDatabaseFailure() {
	s.server = New(manager.New(s.env.files, brokenRecords{}, manager.Options{}), Options{})

	rec := s.download("any")
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal("internal error", decodeError(&s.Suite, rec))
}

// TestDownloadFileRoute tests the download through the router
func (s *DownloadTestSuite) TestDownloadFileRoute() {
	uploaded := uploadOK(&s.Suite, s.server, "report.pdf", []byte("%PDF-1.4\n"))

	req := httptest.NewRequest(http.MethodGet, "/files/"+uploaded.ID, nil)
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("application/pdf", rec.Header().Get(echo.HeaderContentType))
	s.Equal(`attachment; filename="report.pdf"`, rec.Header().Get(echo.HeaderContentDisposition))
}

func TestDownloadSuite(t *testing.T) {
	suite.Run(t, new(DownloadTestSuite))
}
