package tags

import (
	"context"
	"fmt"

	"zotero-sync/core/cache"
	"zotero-sync/core/zotero"
	"zotero-sync/feature/library"

	"go.uber.org/zap"
)

// Fetcher reads every page of a list endpoint.
type Fetcher interface {
	FetchAll(ctx context.Context, pr zotero.PageRequest) (zotero.Page, error)
}

// Listing is a categorized index and the library version it was built at.
type Listing struct {
	Index       Index `json:"index"`
	LastUpdated int   `json:"lastUpdated"`
	Count       int   `json:"count"`
}

// Service builds and caches tag indexes and exposes the mutator.
type Service struct {
	fetcher Fetcher
	cache   cache.Store
	mutator *Mutator
	apiKey  string
	logger  *zap.Logger
}

// NewService creates a tag service. apiKey is used when a request carries none.
func NewService(fetcher Fetcher, store cache.Store, mutator *Mutator, apiKey string, logger *zap.Logger) *Service {
	return &Service{fetcher: fetcher, cache: store, mutator: mutator, apiKey: apiKey, logger: logger}
}

func (s *Service) key(apiKey string) string {
	if apiKey == "" {
		return s.apiKey
	}
	return apiKey
}

// Index returns the categorized tags of a library, from cache unless refresh is set.
func (s *Service) Index(ctx context.Context, lib zotero.Library, apiKey string, refresh bool) (Listing, error) {
	apiKey = s.key(apiKey)
	key := library.TagsKey(lib, apiKey)
	load := func(ctx context.Context) (cache.Entry, error) {
		return s.build(ctx, lib, apiKey)
	}

	var entry cache.Entry
	var err error
	if refresh {
		entry, err = s.cache.Refresh(ctx, key, load)
	} else {
		entry, err = s.cache.GetOrLoad(ctx, key, load)
	}
	if err != nil {
		return Listing{}, err
	}

	listing, ok := entry.Data.(Listing)
	if !ok {
		return Listing{}, fmt.Errorf("unexpected tag cache entry %T", entry.Data)
	}
	return listing, nil
}

func (s *Service) build(ctx context.Context, lib zotero.Library, apiKey string) (cache.Entry, error) {
	page, err := s.fetcher.FetchAll(ctx, zotero.PageRequest{Endpoint: lib.Path + "/tags", APIKey: apiKey})
	if err != nil {
		return cache.Entry{}, err
	}
	records, err := zotero.DecodeTags(page.Data)
	if err != nil {
		return cache.Entry{}, err
	}

	m := BuildMap(records)
	listing := Listing{Index: Categorize(m), LastUpdated: page.LastModifiedVersion, Count: len(m)}
	s.logger.Debug("Tag index built",
		zap.String("library", lib.Path),
		zap.Int("records", len(records)),
		zap.Int("tags", len(m)),
		zap.Int("version", page.LastModifiedVersion))
	return cache.Entry{Data: listing, LastUpdated: page.LastModifiedVersion}, nil
}

// Delete removes tags from a library.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) (int, error) {
	req.APIKey = s.key(req.APIKey)
	return s.mutator.Delete(ctx, req)
}

// Rename merges tags into one.
func (s *Service) Rename(ctx context.Context, req RenameRequest) (RenameResult, error) {
	req.APIKey = s.key(req.APIKey)
	return s.mutator.Rename(ctx, req)
}
