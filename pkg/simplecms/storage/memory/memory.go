package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Scheme prefixes references produced by this backend.
const Scheme = "memory://"

// ErrObjectNotFound is returned for keys that were never uploaded.
var ErrObjectNotFound = errors.New("object not found")

// Backend is an in-memory object store. Resolved URLs point at BaseURL, where
// the backend itself can be mounted as an http.Handler.
type Backend struct {
	mu        sync.RWMutex
	objects   map[string][]byte
	mimeTypes map[string]string
	baseURL   string
}

// New creates a new in-memory storage backend serving objects under baseURL.
func New(baseURL string) *Backend {
	return &Backend{
		objects:   make(map[string][]byte),
		mimeTypes: make(map[string]string),
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}
}

// Upload stores the content and returns its memory:// reference.
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader, mimeType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	objectKey = strings.TrimPrefix(objectKey, "/")

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[objectKey] = data
	b.mimeTypes[objectKey] = mimeType
	return Scheme + objectKey, nil
}

// Resolve returns the URL an uploaded object is served from.
func (b *Backend) Resolve(ctx context.Context, ref string) (string, error) {
	key, ok := strings.CutPrefix(ref, Scheme)
	if !ok {
		return "", fmt.Errorf("unsupported storage reference: %s", ref)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, exists := b.objects[key]; !exists {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return b.baseURL + "/" + key, nil
}

// Download returns the content of an object.
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ServeHTTP serves objects by key. Mount it with http.StripPrefix.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")

	b.mu.RLock()
	data, exists := b.objects[key]
	mimeType := b.mimeTypes[key]
	b.mu.RUnlock()

	if !exists {
		http.NotFound(w, r)
		return
	}
	if mimeType != "" {
		w.Header().Set("Content-Type", mimeType)
	}
	w.Write(data)
}
