package cache

import (
	"context"
	"errors"
	"sync"
)

// ErrUnavailable is returned by a MemoryCache switched offline with SetAvailable(false).
var ErrUnavailable = errors.New("cache: backend unavailable")

// MemoryCache implements Backend in process memory.
type MemoryCache struct {
	mutex     sync.RWMutex
	data      map[string][]byte
	available bool
}

// NewMemoryCache creates an in-memory backend.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]byte), available: true}
}

// SetAvailable simulates storage outages.
func (mc *MemoryCache) SetAvailable(ok bool) {
	mc.mutex.Lock()
	mc.available = ok
	mc.mutex.Unlock()
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	if !mc.available {
		return nil, ErrUnavailable
	}
	v, ok := mc.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (mc *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if !mc.available {
		return ErrUnavailable
	}
	v := make([]byte, len(value))
	copy(v, value)
	mc.data[key] = v
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if !mc.available {
		return ErrUnavailable
	}
	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

// Exists reports whether key is stored. Used by tests to observe lazy deletes.
func (mc *MemoryCache) Exists(key string) bool {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	_, ok := mc.data[key]
	return ok
}

// Close is a no-op.
func (mc *MemoryCache) Close() error { return nil }
