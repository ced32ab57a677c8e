package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"zotero-sync/core/cache"
	"zotero-sync/core/events"
	"zotero-sync/core/metrics"
	"zotero-sync/core/reconcile"
	"zotero-sync/core/zotero"

	"go.uber.org/zap"
)

// Remote is the part of the Zotero client the syncer reads from.
type Remote interface {
	FetchAll(ctx context.Context, pr zotero.PageRequest) (zotero.Page, error)
	FetchDeleted(ctx context.Context, apiKey string, lib zotero.Library, since int) (zotero.DeletionSet, int, error)
}

// SnapshotStore persists snapshots beyond the lifetime of the cache.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, lib zotero.Library, identity string) (reconcile.Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, lib zotero.Library, identity string, snap reconcile.Snapshot) error
	DeleteSnapshot(ctx context.Context, lib zotero.Library, identity string) error
}

// SyncRequest asks for the changes of a library since a version.
type SyncRequest struct {
	APIKey  string
	Library zotero.Library
	// Since is the watermark of the caller's snapshot; 0 requests a full fetch.
	Since int
}

// Result is the snapshot after a sync.
type Result struct {
	Data        []zotero.Entity   `json:"data"`
	LastUpdated int               `json:"lastUpdated"`
	Summary     reconcile.Summary `json:"summary"`
}

// SyncError reports a failed sync. Nothing was applied to the snapshot.
type SyncError struct {
	Library  string
	Endpoint string
	Since    int
	// Gathered holds the entities fetched before the failure.
	Gathered []json.RawMessage
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync of %s failed at %s (since %d, %d entities gathered): %v",
		e.Library, e.Endpoint, e.Since, len(e.Gathered), e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Syncer runs incremental syncs against the remote and folds them into the cached snapshot.
type Syncer struct {
	remote    Remote
	cache     cache.Store
	events    events.Publisher
	logger    *zap.Logger
	snapshots SnapshotStore
	lookup    reconcile.CitekeyLookup
	metrics   *metrics.Collector

	// one merge at a time per cache key
	locks sync.Map
}

// NewSyncer creates a syncer. The logger doubles as the error sink.
func NewSyncer(remote Remote, store cache.Store, publisher events.Publisher, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{remote: remote, cache: store, events: publisher, logger: logger}
}

// WithSnapshots attaches a persistent snapshot store.
func (s *Syncer) WithSnapshots(store SnapshotStore) *Syncer {
	s.snapshots = store
	return s
}

// WithLookup sets the citekey lookup used for the has_citekey annotation.
func (s *Syncer) WithLookup(lookup reconcile.CitekeyLookup) *Syncer {
	s.lookup = lookup
	return s
}

// WithMetrics attaches a metrics collector.
func (s *Syncer) WithMetrics(m *metrics.Collector) *Syncer {
	s.metrics = m
	return s
}

// ItemsKey is the cache key of a library snapshot.
func ItemsKey(lib zotero.Library, apiKey string) cache.Key {
	return cache.Key{Kind: cache.KindItems, Library: lib.Path, Identity: cache.Identity(apiKey)}
}

// TagsKey is the cache key of a library tag index.
func TagsKey(lib zotero.Library, apiKey string) cache.Key {
	return cache.Key{Kind: cache.KindTags, Library: lib.Path, Identity: cache.Identity(apiKey)}
}

// Sync fetches what changed since req.Since, merges it into the previous snapshot and
// stores the result. When no snapshot covers req.Since it runs a full sync instead.
// Any read failure aborts the sync with a *SyncError and leaves
// the snapshot untouched.
func (s *Syncer) Sync(ctx context.Context, req SyncRequest) (Result, error) {
	lib := req.Library
	if lib.Path == "" {
		return Result{}, &zotero.ValidationError{Field: "library", Err: fmt.Errorf("library path is required")}
	}
	if req.Since < 0 {
		return Result{}, &zotero.ValidationError{Field: "since", Value: fmt.Sprint(req.Since), Err: fmt.Errorf("must not be negative")}
	}

	key := ItemsKey(lib, req.APIKey)
	if req.Since > 0 {
		snap, ok := s.load(ctx, lib, key)
		if !ok || req.Since > snap.LastUpdated {
			s.logger.Warn("Snapshot does not cover watermark, running full sync",
				zap.String("library", lib.Path),
				zap.Int("since", req.Since),
				zap.Bool("cached", ok),
				zap.Int("last_updated", snap.LastUpdated))
			req.Since = 0
		}
	}

	endpoint := lib.Path + "/items"
	page, err := s.remote.FetchAll(ctx, zotero.PageRequest{Endpoint: endpoint, APIKey: req.APIKey, Since: req.Since})
	if err != nil {
		return Result{}, s.fail(req, endpoint, page.Data, err)
	}
	modified, err := zotero.DecodeEntities(page.Data)
	if err != nil {
		return Result{}, s.fail(req, endpoint, page.Data, err)
	}

	var deleted []string
	if req.Since > 0 {
		set, _, err := s.remote.FetchDeleted(ctx, req.APIKey, lib, req.Since)
		if err != nil {
			return Result{}, s.fail(req, lib.Path+"/deleted", page.Data, err)
		}
		deleted = set.Items
	}

	s.invalidateTags(ctx, TagsKey(lib, req.APIKey), len(modified), page.LastModifiedVersion)

	mu, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	// a full fetch is the whole library and replaces the snapshot
	var previous reconcile.Snapshot
	if req.Since > 0 {
		previous = s.previous(ctx, lib, key)
	}
	data, summary := reconcile.MergeWithSummary(modified, deleted, previous.Data, s.lookup)
	next := reconcile.Snapshot{Data: data, LastUpdated: reconcile.Advance(previous.LastUpdated, page.LastModifiedVersion)}
	s.cache.Set(ctx, key, cache.Entry{Data: next, LastUpdated: next.LastUpdated})
	mu.(*sync.Mutex).Unlock()

	if s.snapshots != nil {
		if err := s.snapshots.SaveSnapshot(ctx, lib, key.Identity, next); err != nil {
			s.logger.Warn("Failed to archive snapshot", zap.String("library", lib.Path), zap.Error(err))
		}
	}

	s.metrics.ObserveSync(true)
	s.events.Publish(events.Event{
		Type:    events.TypeUpdate,
		Library: lib.Path,
		Since:   req.Since,
		Version: next.LastUpdated,
		Success: true,
		Data:    summary,
	})
	s.logger.Info("Library synced",
		zap.String("library", lib.Path),
		zap.Int("since", req.Since),
		zap.Int("last_updated", next.LastUpdated),
		zap.Int("added", summary.Added),
		zap.Int("updated", summary.Updated),
		zap.Int("removed", summary.Removed))

	return Result{Data: next.Data, LastUpdated: next.LastUpdated, Summary: summary}, nil
}

// ErrNotSynced is returned when a library has no snapshot yet.
var ErrNotSynced = errors.New("library has not been synced")

// Apply folds entities written back by the remote into the current snapshot.
// The watermark is left as is: other changes may lie between it and the write.
func (s *Syncer) Apply(ctx context.Context, lib zotero.Library, apiKey string, written []zotero.Entity) (reconcile.Snapshot, error) {
	key := ItemsKey(lib, apiKey)
	mu, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	previous, ok := s.load(ctx, lib, key)
	if !ok {
		return reconcile.Snapshot{}, &zotero.ValidationError{Field: "library", Value: lib.Path, Err: ErrNotSynced}
	}
	next := reconcile.Snapshot{
		Data:        reconcile.Merge(written, nil, previous.Data, s.lookup),
		LastUpdated: previous.LastUpdated,
	}
	s.cache.Set(ctx, key, cache.Entry{Data: next, LastUpdated: next.LastUpdated})

	if s.snapshots != nil {
		if err := s.snapshots.SaveSnapshot(ctx, lib, key.Identity, next); err != nil {
			s.logger.Warn("Failed to archive snapshot", zap.String("library", lib.Path), zap.Error(err))
		}
	}
	return next, nil
}

// Snapshot returns the current snapshot of a library, restoring it from the
// snapshot store when the cache is cold.
func (s *Syncer) Snapshot(ctx context.Context, lib zotero.Library, apiKey string) (reconcile.Snapshot, bool) {
	return s.load(ctx, lib, ItemsKey(lib, apiKey))
}

func (s *Syncer) previous(ctx context.Context, lib zotero.Library, key cache.Key) reconcile.Snapshot {
	snap, _ := s.load(ctx, lib, key)
	return snap
}

func (s *Syncer) load(ctx context.Context, lib zotero.Library, key cache.Key) (reconcile.Snapshot, bool) {
	if e, ok := s.cache.Get(ctx, key); ok {
		if snap, ok := e.Data.(reconcile.Snapshot); ok {
			return snap, true
		}
	}
	if s.snapshots == nil {
		return reconcile.Snapshot{}, false
	}
	snap, found, err := s.snapshots.LoadSnapshot(ctx, lib, key.Identity)
	if err != nil {
		s.logger.Warn("Failed to restore snapshot", zap.String("library", lib.Path), zap.Error(err))
		return reconcile.Snapshot{}, false
	}
	if !found {
		return reconcile.Snapshot{}, false
	}
	s.cache.Set(ctx, key, cache.Entry{Data: snap, LastUpdated: snap.LastUpdated})
	return snap, true
}

// invalidateTags drops the cached tag index when the library changed under it.
func (s *Syncer) invalidateTags(ctx context.Context, key cache.Key, modified, version int) {
	entry, ok := s.cache.Get(ctx, key)
	if !ok {
		return
	}
	if modified == 0 && entry.LastUpdated >= version {
		return
	}
	s.cache.Invalidate(ctx, key)
	s.logger.Debug("Tag index invalidated", zap.String("library", key.Library), zap.Int("version", version))
}

func (s *Syncer) fail(req SyncRequest, endpoint string, gathered []json.RawMessage, err error) error {
	syncErr := &SyncError{
		Library:  req.Library.Path,
		Endpoint: endpoint,
		Since:    req.Since,
		Gathered: gathered,
		Err:      err,
	}

	s.metrics.ObserveSync(false)
	s.logger.Error("Library sync failed",
		zap.String("library", req.Library.Path),
		zap.String("endpoint", endpoint),
		zap.Int("since", req.Since),
		zap.Int("gathered", len(gathered)),
		zap.Error(err))
	s.events.Publish(events.Event{
		Type:    events.TypeUpdate,
		Library: req.Library.Path,
		Since:   req.Since,
		Success: false,
		Error:   syncErr.Error(),
		Data:    map[string]any{"endpoint": endpoint, "gathered": len(gathered)},
	})
	return syncErr
}
