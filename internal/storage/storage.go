// Package storage uploads resource media and returns the public URL of each
// stored object.
package storage

import (
	"context"
	"net/http"
	"strings"
)

// Uploader stores bytes under path and returns a URL the clients can fetch.
type Uploader interface {
	Upload(ctx context.Context, data []byte, path string) (string, error)
}

// Remover deletes a stored object. Implemented by uploaders that can clean
// up objects left behind by a failed creation.
type Remover interface {
	Remove(ctx context.Context, path string) error
}

func contentType(data []byte) string {
	return http.DetectContentType(data)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
