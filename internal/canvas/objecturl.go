package canvas

import (
	"sync"

	"github.com/google/uuid"
)

type blob struct {
	data        []byte
	contentType string
}

// ObjectURLs hands out temporary handles for fetched asset bytes. Handles
// must be revoked once the bytes are decoded.
type ObjectURLs struct {
	mu    sync.Mutex
	blobs map[string]blob
}

// NewObjectURLs returns an empty registry.
func NewObjectURLs() *ObjectURLs {
	return &ObjectURLs{blobs: map[string]blob{}}
}

// Create registers data and returns its handle.
func (o *ObjectURLs) Create(data []byte, contentType string) string {
	url := "blob:designvault/" + uuid.NewString()
	o.mu.Lock()
	o.blobs[url] = blob{data: data, contentType: contentType}
	o.mu.Unlock()
	return url
}

// Open returns the bytes behind url.
func (o *ObjectURLs) Open(url string) ([]byte, string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.blobs[url]
	return b.data, b.contentType, ok
}

// Revoke drops url. Unknown handles are ignored.
func (o *ObjectURLs) Revoke(url string) {
	o.mu.Lock()
	delete(o.blobs, url)
	o.mu.Unlock()
}

// RevokeAll drops every live handle and reports how many there were.
func (o *ObjectURLs) RevokeAll() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.blobs)
	o.blobs = map[string]blob{}
	return n
}

// Live counts unrevoked handles.
func (o *ObjectURLs) Live() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.blobs)
}
