// Package storage provides the durable blob-storage relay for generated
// assets. It defines the Storage interface (port) and implementations for
// S3, local disk and a disabled relay.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// Static errors for storage operations.
var (
	// ErrNotConfigured is returned when no durable relay is configured.
	// Callers treat it as a missing feature, not a failure.
	ErrNotConfigured = errors.New("storage: durable relay is not configured")
	// ErrInvalidKey is returned for empty, absolute or traversing object keys.
	ErrInvalidKey = errors.New("storage: invalid object key")
)

// Storage stores an object under key and returns a URL that resolves to it
// without further credentials.
type Storage interface {
	Store(ctx context.Context, key, contentType string, data io.Reader) (url string, err error)
}

// Disabled is the relay used when nothing is configured.
type Disabled struct{}

// Store always returns ErrNotConfigured.
func (Disabled) Store(context.Context, string, string, io.Reader) (string, error) {
	return "", ErrNotConfigured
}

// validateKey rejects keys that would escape the storage root.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// joinURL appends the escaped key segments to base.
func joinURL(base, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + path.Join(segs...)
}

var (
	_ Storage = Disabled{}
	_ Storage = (*LocalStorage)(nil)
	_ Storage = (*S3Storage)(nil)
)
