// Package cache provides the dependent key-value cache used by the sync engine.
//
// Entries are keyed by (kind, library path, request identity) and carry the data
// plus the library watermark they were built at. The store coalesces concurrent
// loads of the same key through singleflight, so a burst of readers triggers at
// most one remote round trip per key.
//
// # Operations
//
//   - Get / Set / Invalidate: plain versioned key-value access.
//   - GetOrLoad: return a fresh entry or build it once, shared by concurrent callers.
//   - Refresh: always rebuild, coalescing concurrent refreshes of the same key.
//   - InvalidateKind: drop every entry of a kind for one library (all identities).
//
// # Usage
//
//	store := cache.NewMemoryStore(5*time.Minute, collector)
//	key := cache.Key{Kind: cache.KindTags, Library: "users/111", Identity: fingerprint}
//	entry, err := store.GetOrLoad(ctx, key, loadTags)
package cache
