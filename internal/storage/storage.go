// Package storage provides temporary staging and optional archival of segment
// files. It defines the Storage interface (port) with implementations for
// local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for temporary staging and segment archival.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Archive uploads an accepted segment file to long-term storage under the
	// given key and returns its URL. Returns ErrArchiveNotConfigured when no
	// archive backend is configured.
	Archive(ctx context.Context, key string, data io.Reader) (url string, err error)
}
