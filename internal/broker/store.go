package broker

import (
	"context"
	"sync"

	"assocproxy/pkg/tenants"
)

// Store keeps the last token per tenant key. Implementations replace entries whole.
type Store interface {
	Get(ctx context.Context, key tenants.TenantKey) (CachedToken, bool, error)
	Put(ctx context.Context, key tenants.TenantKey, tok CachedToken) error
}

type memoryStore struct {
	mu     sync.RWMutex
	tokens map[tenants.TenantKey]CachedToken
}

// NewMemoryStore returns a process-local token store.
func NewMemoryStore() Store {
	return &memoryStore{tokens: map[tenants.TenantKey]CachedToken{}}
}

func (m *memoryStore) Get(_ context.Context, key tenants.TenantKey) (CachedToken, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[key]
	return t, ok, nil
}

func (m *memoryStore) Put(_ context.Context, key tenants.TenantKey, tok CachedToken) error {
	m.mu.Lock()
	m.tokens[key] = tok
	m.mu.Unlock()
	return nil
}
