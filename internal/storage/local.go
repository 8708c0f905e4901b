package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrBaseURLRequired is returned when LocalStorage is created without a public URL.
var ErrBaseURLRequired = errors.New("storage: public base URL is required")

// LocalStorage writes objects below a root directory that is served over
// HTTP at baseURL.
type LocalStorage struct {
	root    string
	baseURL string
}

// NewLocalStorage creates a LocalStorage. The root directory is created if
// it doesn't exist.
func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	if root == "" {
		root = filepath.Join(os.TempDir(), "genspace-media")
	}

	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("storage: create media directory: %w", err)
	}

	return &LocalStorage{root: root, baseURL: baseURL}, nil
}

// Root returns the media directory.
func (s *LocalStorage) Root() string {
	return s.root
}

// Store writes data to root/key and returns its public URL. The file
// appears atomically: readers never see a partial object.
func (s *LocalStorage) Store(ctx context.Context, key, _ string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("storage: context cancelled: %w", ctx.Err())
	default:
	}

	if err := validateKey(key); err != nil {
		return "", err
	}

	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", fmt.Errorf("storage: create directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(dest), ".upload_*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp file: %w", err)
	}

	tmpName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("storage: write file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("storage: close file: %w", err)
	}

	if err := os.Chmod(tmpName, 0640); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("storage: chmod file: %w", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("storage: rename file: %w", err)
	}

	return joinURL(s.baseURL, key), nil
}
