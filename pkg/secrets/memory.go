package secrets

import (
	"context"
	"fmt"
	"sync"
)

// MemorySource serves documents from memory.
type MemorySource struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemorySource creates a source holding docs.
func NewMemorySource(docs map[string][]byte) *MemorySource {
	s := &MemorySource{docs: make(map[string][]byte, len(docs))}
	for name, data := range docs {
		s.docs[name] = append([]byte(nil), data...)
	}
	return s
}

// Put stores a document.
func (s *MemorySource) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = append([]byte(nil), data...)
}

// FetchPEM implements Source.
func (s *MemorySource) FetchPEM(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

var _ Source = (*MemorySource)(nil)
