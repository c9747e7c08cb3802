package storage

import (
	"context"
	"io"
)

// Store is the object-store capability the upload flow depends on:
// write a blob under a key, get back a public reference.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}
