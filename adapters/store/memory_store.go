package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/siwf/ports"
)

// MemoryKeyCache is an in-process implementation of the KeyCache interface
type MemoryKeyCache struct {
	doc       []byte
	expiresAt time.Time
	mu        sync.RWMutex
	now       func() time.Time
}

// NewMemoryKeyCache creates a new in-memory key cache
func NewMemoryKeyCache() ports.KeyCache {
	return &MemoryKeyCache{now: time.Now}
}

// Get returns the cached document while it has not expired
func (s *MemoryKeyCache) Get(ctx context.Context) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc == nil || !s.now().Before(s.expiresAt) {
		return nil, false, nil
	}

	out := make([]byte, len(s.doc))
	copy(out, s.doc)
	return out, true, nil
}

// Set replaces the cached document
func (s *MemoryKeyCache) Set(ctx context.Context, doc []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = append([]byte(nil), doc...)
	s.expiresAt = s.now().Add(ttl)
	return nil
}
