// Package memory stores documents in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/steam-sentiment/internal/storage"
)

// DocumentStore keeps documents in a map.
type DocumentStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewDocumentStore creates an empty in-memory store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{data: make(map[string][]byte)}
}

// Get returns a copy of the document under key.
func (s *DocumentStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("memory %s: %w", key, storage.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Put replaces the document under key.
func (s *DocumentStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *DocumentStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
