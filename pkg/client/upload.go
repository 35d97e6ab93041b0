package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"filesvc/pkg/models"
)

const uploadField = "file"

// Upload sends content as the "file" part of a multipart form. The body is
// streamed through a pipe; content is rewound before every attempt.
func (c *Client) Upload(ctx context.Context, name string, content io.ReadSeeker) (models.FileResponse, error) {
	body := newMultipartBody(name, content)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url("upload"), retryablehttp.ReaderFunc(body.open))
	if err != nil {
		return models.FileResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", body.contentType())

	resp, err := c.do(req)
	body.wait()
	if err != nil {
		return models.FileResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var uploaded models.FileResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return models.FileResponse{}, fmt.Errorf("parse response: %w", err)
	}
	return uploaded, nil
}

// multipartBody produces a fresh multipart stream per attempt. All attempts
// share one boundary so the Content-Type header stays valid.
type multipartBody struct {
	name     string
	content  io.ReadSeeker
	boundary string
	done     chan struct{}
}

func newMultipartBody(name string, content io.ReadSeeker) *multipartBody {
	return &multipartBody{
		name:     name,
		content:  content,
		boundary: multipart.NewWriter(io.Discard).Boundary(),
	}
}

func (b *multipartBody) contentType() string {
	return "multipart/form-data; boundary=" + b.boundary
}

// wait blocks until the writer of the latest attempt has exited.
func (b *multipartBody) wait() {
	if b.done != nil {
		<-b.done
	}
}

func (b *multipartBody) open() (io.Reader, error) {
	b.wait()

	if _, err := b.content.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	if err := form.SetBoundary(b.boundary); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	b.done = done
	go func() {
		defer close(done)
		part, err := form.CreateFormFile(uploadField, b.name)
		if err == nil {
			_, err = io.Copy(part, b.content)
		}
		if err == nil {
			err = form.Close()
		}
		writer.CloseWithError(err)
	}()

	return reader, nil
}
