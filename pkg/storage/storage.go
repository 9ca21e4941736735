package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrNotFound is returned by an ObjectStore when the key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ObjectStore reads whole objects by key. Get returns the object bytes and
// the content type reported by the backend, which may be empty.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// EscapeKey path-escapes each segment of key and keeps the separators.
func EscapeKey(key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
