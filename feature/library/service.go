package library

import (
	"context"
	"errors"

	"zotero-sync/core/cache"
	"zotero-sync/core/database"
	"zotero-sync/core/reconcile"
	"zotero-sync/core/zotero"

	"go.uber.org/zap"
)

// ErrHistoryDisabled is returned when no history repository is configured.
var ErrHistoryDisabled = errors.New("sync history is disabled")

// Service exposes library synchronization to handlers and commands.
type Service struct {
	syncer    *Syncer
	cache     cache.Store
	registry  *CitekeyRegistry
	history   *database.HistoryRepository
	snapshots SnapshotStore
	apiKey    string
	logger    *zap.Logger
}

// NewService creates a library service. apiKey is used when a request carries none.
func NewService(syncer *Syncer, store cache.Store, registry *CitekeyRegistry, apiKey string, logger *zap.Logger) *Service {
	return &Service{
		syncer:   syncer,
		cache:    store,
		registry: registry,
		apiKey:   apiKey,
		logger:   logger,
	}
}

// WithHistory attaches the history repository.
func (s *Service) WithHistory(repo *database.HistoryRepository) *Service {
	s.history = repo
	return s
}

// WithSnapshots attaches the snapshot store used by Forget.
func (s *Service) WithSnapshots(store SnapshotStore) *Service {
	s.snapshots = store
	return s
}

// Key returns apiKey, or the configured default when empty.
func (s *Service) Key(apiKey string) string {
	if apiKey == "" {
		return s.apiKey
	}
	return apiKey
}

// Sync runs an incremental sync. A negative since resumes from the current watermark.
func (s *Service) Sync(ctx context.Context, lib zotero.Library, apiKey string, since int) (Result, error) {
	apiKey = s.Key(apiKey)
	if since < 0 {
		snap, _ := s.syncer.Snapshot(ctx, lib, apiKey)
		since = snap.LastUpdated
	}
	return s.syncer.Sync(ctx, SyncRequest{APIKey: apiKey, Library: lib, Since: since})
}

// Items returns the current snapshot of a library.
func (s *Service) Items(ctx context.Context, lib zotero.Library, apiKey string) (reconcile.Snapshot, bool) {
	return s.syncer.Snapshot(ctx, lib, s.Key(apiKey))
}

// Forget discards everything held for a library: cached snapshot, tag index and archived snapshot.
func (s *Service) Forget(ctx context.Context, lib zotero.Library, apiKey string) error {
	apiKey = s.Key(apiKey)
	s.cache.Invalidate(ctx, ItemsKey(lib, apiKey))
	s.cache.Invalidate(ctx, TagsKey(lib, apiKey))
	if s.snapshots != nil {
		if err := s.snapshots.DeleteSnapshot(ctx, lib, cache.Identity(apiKey)); err != nil {
			return err
		}
	}
	s.logger.Info("Library forgotten", zap.String("library", lib.Path))
	return nil
}

// SetCitekeys replaces the registered citekeys and returns how many are held.
func (s *Service) SetCitekeys(keys []string) int {
	return s.registry.Replace(keys)
}

// History lists recent events of a library.
func (s *Service) History(ctx context.Context, lib zotero.Library, limit int) ([]database.SyncRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Recent(ctx, lib.Path, limit)
}
