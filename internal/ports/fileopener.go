package ports

import (
	"context"
	"io"
)

// Meta describes an opened or stored import file.
type Meta struct {
	Source      string
	ContentType string
	Size        int64
	Bucket      string
	Key         string
}

type FileOpener interface {
	Open(ctx context.Context, filePath string) (io.ReadCloser, Meta, error)
}

// FileStore keeps uploaded import files.
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Meta, error)
}
