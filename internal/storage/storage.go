// Package storage is the file store for uploaded photos, signatures and
// receipt images. The core records only the returned reference.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Object is a stored upload.
type Object struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// FileStore accepts binary content and returns a stable reference.
type FileStore interface {
	Put(ctx context.Context, prefix, filename, contentType string, body io.Reader) (Object, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds "<prefix>/<uuid><ext>" keeping only the extension of the
// client supplied filename.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 {
		ext = ""
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return uuid.NewString() + ext
	}
	return prefix + "/" + uuid.NewString() + ext
}

// Memory keeps objects in process memory. Used when no bucket is configured
// and in tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	BaseURL string
}

func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}, BaseURL: "memory://uploads"}
}

func (m *Memory) Put(ctx context.Context, prefix, filename, _ string, body io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return Object{}, fmt.Errorf("read upload: %w", err)
	}
	key := ObjectKey(prefix, filename)
	m.mu.Lock()
	m.objects[key] = b
	m.mu.Unlock()
	return Object{Key: key, URL: m.BaseURL + "/" + key}, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Has reports whether key is stored.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Len is the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
