package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNoResultURI is returned when Download is called with an empty URI.
var ErrNoResultURI = errors.New("gemini: result URI is required")

// DownloadError is returned when the result fetch answers with a non-2xx status.
type DownloadError struct {
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *DownloadError) Error() string {
	return fmt.Sprintf("gemini: download failed with status %d (%s)", e.StatusCode, e.Status)
}

// Blob is a downloaded result.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Downloader fetches generated results.
type Downloader interface {
	Download(ctx context.Context, uri, apiKey string) (*Blob, error)
}

// HTTPDownloader fetches result URIs over plain HTTP, authenticating with
// the API key as the "key" query parameter.
type HTTPDownloader struct {
	httpClient *http.Client
}

// DownloaderOption is a function that configures an HTTPDownloader.
type DownloaderOption func(*HTTPDownloader)

// WithDownloadHTTPClient sets a custom HTTP client.
func WithDownloadHTTPClient(c *http.Client) DownloaderOption {
	return func(d *HTTPDownloader) {
		d.httpClient = c
	}
}

// NewDownloader creates a new HTTPDownloader.
func NewDownloader(opts ...DownloaderOption) *HTTPDownloader {
	d := &HTTPDownloader{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches uri and returns its body.
func (d *HTTPDownloader) Download(ctx context.Context, uri, apiKey string) (*Blob, error) {
	if uri == "" {
		return nil, ErrNoResultURI
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("gemini: parse result URI: %w", err)
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: create download request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &DownloadError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read download body: %w", err)
	}

	return &Blob{Data: data, MIMEType: contentType(resp.Header.Get("Content-Type"), data)}, nil
}

// contentType prefers a specific Content-Type header and falls back to
// sniffing the payload.
func contentType(header string, data []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	return mimetype.Detect(data).String()
}
