package memory

import (
	"context"
	"sync"

	"github.com/xrmultiplayer/sessionflow/internal/kvstore"
)

// Store is an in-memory implementation of the key-value store interface,
// suitable for tests and single-instance development
type Store struct {
	mu     sync.RWMutex
	values map[string]string

	// FailReads and FailWrites force the corresponding operations to
	// return the given error, for exercising failure paths in tests
	FailReads  error
	FailWrites error
}

// Ensure Store implements the interface
var _ kvstore.Store = (*Store)(nil)

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		values: make(map[string]string),
	}
}

func (s *Store) Read(ctx context.Context, path string) (string, bool, error) {
	if s.FailReads != nil {
		return "", false, s.FailReads
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[path]
	return v, ok, nil
}

func (s *Store) Write(ctx context.Context, path string, value string) error {
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[path] = value
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, path)
	return nil
}
