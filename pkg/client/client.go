// Package client is an HTTP client for the file service API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"filesvc/pkg/models"
)

const (
	defaultTimeout      = 2 * time.Minute
	defaultRetryMax     = 3
	defaultRetryWaitMin = 100 * time.Millisecond
	defaultRetryWaitMax = 2 * time.Second
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// Options tunes the underlying retrying HTTP client.
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client talks to one file service instance.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// New creates a Client for baseURL. Zero option values take defaults.
func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	} else if opts.RetryMax == 0 {
		opts.RetryMax = defaultRetryMax
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = defaultRetryWaitMin
	}
	if opts.RetryWaitMax <= 0 {
		opts.RetryWaitMax = defaultRetryWaitMax
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newRetryableClient(opts),
	}
}

func newRetryableClient(opts Options) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = opts.Timeout
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = opts.RetryWaitMin
	client.RetryWaitMax = opts.RetryWaitMax
	client.Logger = nil
	client.CheckRetry = retryPolicy
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

// retryPolicy retries connection failures and 503s only. Any other
// response is returned to the caller as-is.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil {
		return resp.StatusCode == http.StatusServiceUnavailable, nil
	}
	if err != nil {
		return true, nil //nolint:nilerr // the transport error is kept by retryablehttp
	}
	return false, nil
}

func (c *Client) url(path ...string) string {
	escaped := make([]string, 0, len(path))
	for _, p := range path {
		escaped = append(escaped, url.PathEscape(p))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

// do sends req and returns the response if it is 2xx. Otherwise the body is
// decoded into a *StatusError and the response is closed.
func (c *Client) do(req *retryablehttp.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()

	statusErr := &StatusError{StatusCode: resp.StatusCode}
	var body models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		statusErr.Message = body.Error
	}
	return nil, statusErr
}

func (c *Client) getJSON(ctx context.Context, target interface{}, path ...string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url(path...), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// Health returns nil when the service and its database are up.
func (c *Client) Health(ctx context.Context) error {
	var health models.HealthResponse
	if err := c.getJSON(ctx, &health, "health"); err != nil {
		return err
	}
	if health.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", health.Status)
	}
	return nil
}

// List returns every stored file, most recent first.
func (c *Client) List(ctx context.Context) ([]models.FileResponse, error) {
	var files []models.FileResponse
	if err := c.getJSON(ctx, &files, "files"); err != nil {
		return nil, err
	}
	return files, nil
}

// Info returns the metadata of one file.
func (c *Client) Info(ctx context.Context, id string) (models.FileResponse, error) {
	var info models.FileResponse
	if err := c.getJSON(ctx, &info, "files", id, "info"); err != nil {
		return models.FileResponse{}, err
	}
	return info, nil
}

// Download copies the bytes of one file to w and returns how many were copied.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url("files", id), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("read download: %w", err)
	}
	return n, nil
}
