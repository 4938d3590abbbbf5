package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("storage: S3 is not configured")
	// ErrOutsideTempDir is returned for paths that are not inside the temp directory.
	ErrOutsideTempDir = errors.New("storage: path is outside the temp directory")
)

// unsafeNameChars matches characters not allowed in temp file name hints.
var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LocalStorage implements the Storage interface using local disk.
// It stores temporary files in a configurable directory and does not
// support S3 operations unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// If tempDir is empty, a "logo-animator" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "logo-animator")
	}

	abs, err := filepath.Abs(tempDir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve temp directory: %w", err)
	}

	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("storage: create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: abs}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// SaveTemp saves data to a temporary file and returns the file path.
// The sanitized name is used as a base for the filename with a unique suffix;
// a trailing extension in name is kept.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	ext := filepath.Ext(name)
	base := unsafeNameChars.ReplaceAllString(strings.TrimSuffix(name, ext), "_")
	if base == "" {
		base = "blob"
	}
	ext = unsafeNameChars.ReplaceAllString(ext, "")

	f, err := os.CreateTemp(s.tempDir, base+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("storage: create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("storage: write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("storage: close temp file: %w", err)
	}

	return fileName, nil
}

// LoadTemp opens a temporary file and returns a reader.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if !s.contains(path) {
		return nil, ErrOutsideTempDir
	}

	f, err := os.Open(path) // #nosec G304 - path is confined to tempDir
	if err != nil {
		return nil, fmt.Errorf("storage: open temp file: %w", err)
	}

	return f, nil
}

// CleanupTemp removes the specified temporary files.
// Empty paths and already-missing files are ignored. Cleanup continues
// after a failure and the first error encountered is returned.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}
		if p == "" {
			continue
		}
		if !s.contains(p) {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %s", ErrOutsideTempDir, p)
			}
			continue
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("storage: remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// UploadToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// contains reports whether path is a file inside the temp directory.
func (s *LocalStorage) contains(path string) bool {
	rel, err := filepath.Rel(s.tempDir, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}
