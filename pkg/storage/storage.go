// Package storage keeps rendered export files on local disk or in S3.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when a stored object does not exist.
var ErrNotFound = errors.New("stored file not found")

// Storage is the file store the export worker writes to and the download
// endpoint reads from. Keys are slash separated and relative.
type Storage interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// CleanKey normalises a key and rejects ones escaping the store root.
func CleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", errors.New("empty storage key")
	}
	if strings.Contains(key, "..") {
		return "", errors.New("storage key must not contain ..")
	}
	return cleaned, nil
}
