package assets

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/Snider/Slicer/pkg/datanode"
	"github.com/google/uuid"
)

// Handle is a locally addressable reference to a published resource. A
// browser store hands out blob: object URLs; MemoryStore mimics them.
type Handle string

// String returns the handle as a URL string.
func (h Handle) String() string { return string(h) }

// IsLocal reports whether h refers to a locally synthesized resource rather
// than a remote location.
func IsLocal(h Handle) bool {
	return strings.HasPrefix(string(h), "blob:")
}

// Store turns bytes into a locally addressable resource.
type Store interface {
	Publish(name, contentType string, data []byte) (Handle, error)
}

// MemoryStore publishes resources into an in-memory DataNode under
// blob:<uuid>/<name> handles.
type MemoryStore struct {
	files *datanode.DataNode

	mu    sync.Mutex
	types map[Handle]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: datanode.New(),
		types: make(map[Handle]string),
	}
}

// Publish stores data and returns its handle.
func (s *MemoryStore) Publish(name, contentType string, data []byte) (Handle, error) {
	name = path.Base(name)
	if name == "." || name == "/" {
		return "", errors.New("publish: resource name is required")
	}
	key := uuid.NewString() + "/" + name
	s.files.AddData(key, data)

	h := Handle("blob:" + key)
	s.mu.Lock()
	s.types[h] = contentType
	s.mu.Unlock()
	return h, nil
}

// Resolve returns the content and content type behind h.
func (s *MemoryStore) Resolve(h Handle) ([]byte, string, error) {
	if !IsLocal(h) {
		return nil, "", fmt.Errorf("resolve %s: not a local handle", h)
	}
	data, err := s.files.ReadFile(strings.TrimPrefix(string(h), "blob:"))
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", h, err)
	}
	s.mu.Lock()
	contentType := s.types[h]
	s.mu.Unlock()
	return data, contentType, nil
}

// Revoke releases the resource behind h.
func (s *MemoryStore) Revoke(h Handle) error {
	if err := s.files.Remove(strings.TrimPrefix(string(h), "blob:")); err != nil {
		return fmt.Errorf("revoke %s: %w", h, err)
	}
	s.mu.Lock()
	delete(s.types, h)
	s.mu.Unlock()
	return nil
}

// Len reports how many resources are currently published.
func (s *MemoryStore) Len() int {
	return s.files.Len()
}
