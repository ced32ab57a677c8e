package library

import "sync"

// CitekeyRegistry is the set of citekeys referenced locally. It backs the
// has_citekey annotation and is safe for concurrent use.
type CitekeyRegistry struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewCitekeyRegistry creates a registry seeded with keys.
func NewCitekeyRegistry(keys ...string) *CitekeyRegistry {
	r := &CitekeyRegistry{keys: make(map[string]struct{}, len(keys))}
	r.Add(keys...)
	return r
}

// Add inserts citekeys. Empty strings are ignored.
func (r *CitekeyRegistry) Add(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		if k != "" {
			r.keys[k] = struct{}{}
		}
	}
}

// Replace swaps the whole set and returns its new size.
func (r *CitekeyRegistry) Replace(keys []string) int {
	next := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			next[k] = struct{}{}
		}
	}
	r.mu.Lock()
	r.keys = next
	r.mu.Unlock()
	return len(next)
}

// Has reports whether a citekey is registered.
func (r *CitekeyRegistry) Has(key string) bool {
	r.mu.RLock()
	_, ok := r.keys[key]
	r.mu.RUnlock()
	return ok
}

// Len returns the number of registered citekeys.
func (r *CitekeyRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
