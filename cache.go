package gerbango

import (
	"context"
	"hash/fnv"
	"path"
	"sync"
	"time"
)

// InMemoryStore is a sharded in-process CacheStore. It is the default store
// for tests and single-process deployments; production deployments normally
// use RedisStore so invalidation reaches every process.
type InMemoryStore struct {
	shards    []*storeShard
	numShards int
}

type storeShard struct {
	mu    sync.RWMutex
	store map[string]*storedValue
}

type storedValue struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	numShards := 16
	shards := make([]*storeShard, numShards)
	for i := range shards {
		shards[i] = &storeShard{
			store: make(map[string]*storedValue),
		}
	}
	return &InMemoryStore{
		shards:    shards,
		numShards: numShards,
	}
}

func (s *InMemoryStore) getShard(key string) *storeShard {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return s.shards[hash.Sum32()%uint32(s.numShards)]
}

// Get returns the value stored under key, or ErrCacheMiss.
func (s *InMemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	shard := s.getShard(key)
	shard.mu.RLock()
	sv, exists := shard.store[key]
	shard.mu.RUnlock()

	if !exists {
		return nil, ErrCacheMiss
	}

	if time.Now().After(sv.expiresAt) {
		shard.mu.Lock()
		delete(shard.store, key)
		shard.mu.Unlock()
		return nil, ErrCacheMiss
	}

	return sv.value, nil
}

// Set stores value under key with the given TTL.
func (s *InMemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	shard := s.getShard(key)
	shard.mu.Lock()
	shard.store[key] = &storedValue{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	shard.mu.Unlock()
	return nil
}

// DeletePattern removes every key matching the glob pattern and returns the
// number deleted.
func (s *InMemoryStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	deleted := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key := range shard.store {
			// Keys never contain '/', so path.Match's '*' spans every
			// segment separator we use.
			if ok, _ := path.Match(pattern, key); ok {
				delete(shard.store, key)
				deleted++
			}
		}
		shard.mu.Unlock()
	}
	return deleted, nil
}

// Len reports the number of live entries across all shards, for metrics and
// tests.
func (s *InMemoryStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.store)
		shard.mu.RUnlock()
	}
	return total
}

// Clear removes all entries.
func (s *InMemoryStore) Clear() {
	for _, shard := range s.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*storedValue)
		shard.mu.Unlock()
	}
}
