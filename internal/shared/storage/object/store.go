package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for writing and reading report objects.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
