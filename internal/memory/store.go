// Package memory composes bounded conversational context for assistant
// strategies and caches the derived artifacts (windows, rolling summaries,
// vector indexes) with a TTL. The message store remains the source of truth;
// every artifact can be rebuilt from full history.
package memory

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Store is a key-value cache with expiration. Artifacts are stored as JSON
// bytes so in-process and Redis backends are interchangeable.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// MemoryStore is the in-process Store backed by go-cache.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates an in-process store. Expired entries are swept every
// ttl/4 in the background.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, ttl/4)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, found := s.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	data, ok := value.([]byte)
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.cache.Delete(key)
	}
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	items := s.cache.Items()
	keys := make([]string, 0, len(items))
	for key := range items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
