// Package blob stores file content outside the database.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no object exists at a path.
var ErrNotFound = errors.New("blob not found")

// Store keeps bytes under opaque paths.
type Store interface {
	// Put stores r under name and returns the path to use for Get and Delete.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}
