package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"zotero-sync/core/metrics"

	"golang.org/x/sync/singleflight"
)

// Entry kinds.
const (
	KindItems = "items"
	KindTags  = "tags"
)

// Key identifies one cache entry.
type Key struct {
	Kind     string
	Library  string
	Identity string
}

// String returns the flat form used for singleflight grouping.
func (k Key) String() string {
	return k.Kind + "|" + k.Library + "|" + k.Identity
}

// Identity derives a stable, non-reversible key identity from an API key.
func Identity(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}

// Entry is a cached value and the library version it reflects.
type Entry struct {
	Data        any
	LastUpdated int
	Built       time.Time
}

// Loader builds an entry on a miss.
type Loader func(ctx context.Context) (Entry, error)

// Store is the contract the engine relies on.
type Store interface {
	Get(ctx context.Context, key Key) (Entry, bool)
	Set(ctx context.Context, key Key, entry Entry)
	Invalidate(ctx context.Context, key Key)
	GetOrLoad(ctx context.Context, key Key, load Loader) (Entry, error)
	Refresh(ctx context.Context, key Key, load Loader) (Entry, error)
	InvalidateKind(ctx context.Context, kind, library string)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	sf      singleflight.Group
	ttl     time.Duration
	metrics *metrics.Collector
}

// NewMemoryStore creates a store. A zero ttl keeps entries until invalidated.
func NewMemoryStore(ttl time.Duration, m *metrics.Collector) *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key]Entry),
		ttl:     ttl,
		metrics: m,
	}
}

func (s *MemoryStore) expired(e Entry) bool {
	if s.ttl == 0 {
		return false
	}
	return time.Since(e.Built) > s.ttl
}

// Get returns a live entry.
func (s *MemoryStore) Get(_ context.Context, key Key) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok && s.expired(e) {
		ok = false
	}
	s.metrics.ObserveCache(ok)
	return e, ok
}

// Set stores an entry, stamping Built when unset.
func (s *MemoryStore) Set(_ context.Context, key Key, entry Entry) {
	if entry.Built.IsZero() {
		entry.Built = time.Now()
	}
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
}

// Invalidate drops an entry so the next GetOrLoad rebuilds it.
func (s *MemoryStore) Invalidate(_ context.Context, key Key) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// InvalidateKind drops every entry of a kind for a library.
func (s *MemoryStore) InvalidateKind(_ context.Context, kind, library string) {
	s.mu.Lock()
	for k := range s.entries {
		if k.Kind == kind && k.Library == library {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

// GetOrLoad returns a live entry or builds one. Concurrent misses on the same key share one load.
func (s *MemoryStore) GetOrLoad(ctx context.Context, key Key, load Loader) (Entry, error) {
	if e, ok := s.Get(ctx, key); ok {
		return e, nil
	}

	result, err, _ := s.sf.Do(key.String(), func() (interface{}, error) {
		// Double-check after winning the flight
		s.mu.RLock()
		e, ok := s.entries[key]
		s.mu.RUnlock()
		if ok && !s.expired(e) {
			return e, nil
		}

		fresh, err := load(ctx)
		if err != nil {
			return nil, err
		}
		s.Set(ctx, key, fresh)
		return fresh, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return result.(Entry), nil
}

// Refresh rebuilds an entry unconditionally. Concurrent refreshes of the same key share one load.
// On error the previous entry is left untouched.
func (s *MemoryStore) Refresh(ctx context.Context, key Key, load Loader) (Entry, error) {
	result, err, _ := s.sf.Do("refresh|"+key.String(), func() (interface{}, error) {
		fresh, err := load(ctx)
		if err != nil {
			return nil, err
		}
		s.Set(ctx, key, fresh)
		return fresh, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return result.(Entry), nil
}
