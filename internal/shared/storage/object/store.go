package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("object not found")

// Info describes a stored object. ETag changes whenever the content does.
type Info struct {
	Key     string
	Size    int64
	ETag    string
	ModTime time.Time
}

// ObjectStore saves and retrieves catalog documents and other blobs by key.
type ObjectStore interface {
	Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Stat(ctx context.Context, storageKey string) (Info, error)
}
