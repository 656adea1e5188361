package credential

import (
	"context"
	"sync"
)

// Key is the fixed name under which the bearer credential is persisted
const Key = "access_token"

// Store is the durable home of the current bearer credential.
// The credential is opaque: no format validation happens here.
type Store interface {
	// Get returns the stored credential and whether one is present
	Get(ctx context.Context) (string, bool, error)

	// Set replaces the stored credential
	Set(ctx context.Context, credential string) error

	// Clear removes the stored credential
	Clear(ctx context.Context) error
}

// MemoryStore keeps the credential in process memory only
type MemoryStore struct {
	mu    sync.RWMutex
	value string
	set   bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.set, nil
}

func (s *MemoryStore) Set(_ context.Context, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value, s.set = credential, true
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value, s.set = "", false
	return nil
}
