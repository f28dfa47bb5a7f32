package storage

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("object not found")

// Storage is the evidence object store. Keys are slash separated paths.
type Storage interface {
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete returns nil if the object doesn't exist.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Move relocates srcKey to dstKey. Moving a missing source whose
	// destination already exists is treated as done, so retries are safe.
	Move(ctx context.Context, srcKey, dstKey string) error
}
