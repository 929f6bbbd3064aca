// Package kvstore persists small pieces of user state as JSON envelopes with an
// optional time-to-live. Expiry is lazy: a stale entry is dropped the first time
// it is read, there is no background sweep.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"MarketSync/pkg/cache"
	"MarketSync/pkg/logger"
)

const msPerDay = int64(24 * time.Hour / time.Millisecond)

// TTL is an optional lifetime in whole days. The zero value means no expiry.
type TTL struct {
	days int
	set  bool
}

// NoExpiry keeps values indefinitely.
var NoExpiry = TTL{}

// Days returns a TTL of n days. Days(0) is defined and expires on the next read.
func Days(n int) TTL { return TTL{days: n, set: true} }

func (t TTL) Defined() bool { return t.set }

type envelope struct {
	Value  json.RawMessage `json:"value"`
	Expiry *int64          `json:"expiry,omitempty"` // unix ms
}

type Store struct {
	backend cache.Backend
	log     *logger.Logger
	now     func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now, mainly so tests can jump past a TTL.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(backend cache.Backend, log *logger.Logger, opts ...Option) *Store {
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{backend: backend, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the stored value for key, or def when the key is absent, expired,
// unreadable or corrupt. An expired entry is deleted as a side effect.
func Get[T any](ctx context.Context, s *Store, key string, def T, ttl TTL) T {
	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("kvstore read failed", logger.String("key", key), logger.Error(err))
		}
		return def
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Value) == 0 {
		s.log.Warn("kvstore payload corrupt", logger.String("key", key), logger.Error(err))
		return def
	}

	if ttl.Defined() && env.Expiry != nil && s.now().UnixMilli() > *env.Expiry {
		if err := s.backend.Delete(ctx, key); err != nil {
			s.log.Warn("kvstore delete expired failed", logger.String("key", key), logger.Error(err))
		}
		s.log.Debug("kvstore entry expired", logger.String("key", key))
		return def
	}

	var v T
	if err := json.Unmarshal(env.Value, &v); err != nil {
		s.log.Warn("kvstore value corrupt", logger.String("key", key), logger.Error(err))
		return def
	}
	return v
}

// Set stores value under key. With a defined TTL the expiry is recomputed from now
// on every write; without one the envelope carries no expiry.
func Set[T any](ctx context.Context, s *Store, key string, value T, ttl TTL) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore marshal %s: %w", key, err)
	}
	env := envelope{Value: b}
	if ttl.Defined() {
		exp := s.now().UnixMilli() + int64(ttl.days)*msPerDay
		env.Expiry = &exp
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("kvstore marshal envelope %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("kvstore write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("kvstore delete %s: %w", key, err)
	}
	return nil
}

// Entry binds one key to its default and TTL.
type Entry[T any] struct {
	store *Store
	key   string
	def   T
	ttl   TTL
	mu    sync.Mutex
}

func NewEntry[T any](s *Store, key string, def T, ttl TTL) *Entry[T] {
	return &Entry[T]{store: s, key: key, def: def, ttl: ttl}
}

func (e *Entry[T]) Get(ctx context.Context) T {
	return Get(ctx, e.store, e.key, e.def, e.ttl)
}

func (e *Entry[T]) Set(ctx context.Context, v T) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Set(ctx, e.store, e.key, v, e.ttl)
}

// Update applies fn to the current value and persists the result as one step
// with respect to other Update/Set calls on the same Entry.
func (e *Entry[T]) Update(ctx context.Context, fn func(T) T) (T, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := fn(Get(ctx, e.store, e.key, e.def, e.ttl))
	return next, Set(ctx, e.store, e.key, next, e.ttl)
}

func (e *Entry[T]) Delete(ctx context.Context) error {
	return e.store.Delete(ctx, e.key)
}
