package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDownloader_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/files/video", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "download", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer server.Close()

	d := NewDownloader(WithDownloadHTTPClient(server.Client()))
	blob, err := d.Download(context.Background(), server.URL+"/files/video?alt=download", "secret")

	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), blob.Data)
	assert.Equal(t, "video/mp4", blob.MIMEType)
}

func TestHTTPDownloader_SniffsContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(png)
	}))
	defer server.Close()

	blob, err := NewDownloader().Download(context.Background(), server.URL, "k")
	require.NoError(t, err)
	assert.Equal(t, "image/png", blob.MIMEType)
}

func TestHTTPDownloader_Non2xx(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"forbidden", http.StatusForbidden},
		{"not found", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewDownloader().Download(context.Background(), server.URL, "k")

			var dlErr *DownloadError
			require.True(t, errors.As(err, &dlErr))
			assert.Equal(t, tt.status, dlErr.StatusCode)
			assert.Contains(t, dlErr.Error(), http.StatusText(tt.status))
		})
	}
}

func TestHTTPDownloader_EmptyURI(t *testing.T) {
	_, err := NewDownloader().Download(context.Background(), "", "k")
	assert.ErrorIs(t, err, ErrNoResultURI)
}

func TestHTTPDownloader_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDownloader().Download(ctx, server.URL, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
