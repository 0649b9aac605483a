// Package credcache caches short-lived upstream credentials, such as GitHub
// App installation tokens, keyed by name with a TTL.
package credcache

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("credential not found")
	ErrExpired  = errors.New("credential expired")
)

// Credential is a stored secret with its expiry.
type Credential struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the credential is past its expiry.
func (c *Credential) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Store is the credential cache interface. The context parameters allow a
// future backing store with real I/O.
type Store interface {
	// Set stores a credential with the given key and TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get retrieves a credential by key. Returns ErrNotFound or ErrExpired.
	Get(ctx context.Context, key string) (*Credential, error)
	// Delete removes a credential by key.
	Delete(ctx context.Context, key string) error
	// Cleanup removes all expired credentials, returning how many it dropped.
	Cleanup(ctx context.Context) (int, error)
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewMemoryStore creates an empty in-memory credential cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[key] = Credential{Key: key, Value: value, ExpiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[key]
	if !ok {
		return nil, ErrNotFound
	}
	if c.IsExpired() {
		return nil, ErrExpired
	}
	return &c, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, key)
	return nil
}

func (m *MemoryStore) Cleanup(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for k, c := range m.creds {
		if c.IsExpired() {
			delete(m.creds, k)
			count++
		}
	}
	return count, nil
}
