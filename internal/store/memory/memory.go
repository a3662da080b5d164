package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/undeadops/slugger/internal/store"
)

// Store implements store.Store in memory for development and tests.
type Store struct {
	mutex sync.RWMutex
	items map[string][]byte
}

func New() *Store {
	return &Store{
		items: make(map[string][]byte),
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return nil, store.ErrNotFound
	}

	return append([]byte(nil), value...), nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.items[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.items, key)
	return nil
}

// Keys returns the stored keys sorted lexically.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys, nil
}
