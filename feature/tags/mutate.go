package tags

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"zotero-sync/core/cache"
	"zotero-sync/core/events"
	"zotero-sync/core/metrics"
	"zotero-sync/core/reconcile"
	"zotero-sync/core/zotero"
	"zotero-sync/feature/library"

	"go.uber.org/zap"
)

// Remote is the part of the Zotero client the mutator writes through.
type Remote interface {
	WriteItems(ctx context.Context, apiKey string, lib zotero.Library, reqs []zotero.WriteRequest, opts zotero.WriteOptions) ([]zotero.ChunkResult, error)
	DeleteTags(ctx context.Context, apiKey string, lib zotero.Library, tags []string, version int) (int, error)
}

// Snapshots gives access to the synced library snapshots.
type Snapshots interface {
	Snapshot(ctx context.Context, lib zotero.Library, apiKey string) (reconcile.Snapshot, bool)
	Apply(ctx context.Context, lib zotero.Library, apiKey string, written []zotero.Entity) (reconcile.Snapshot, error)
}

// Item types whose tags are never rewritten.
var skippedItemTypes = []string{"attachment", "note", "annotation"}

// DeleteRequest removes tags from a library.
type DeleteRequest struct {
	APIKey  string
	Library zotero.Library
	Tags    []string
	// Version is the library version the caller last saw. Zero falls back to the
	// version of the cached tag index.
	Version int
}

// RenameRequest merges the From tags into Into on every regular item.
type RenameRequest struct {
	APIKey  string
	Library zotero.Library
	From    []string
	Into    string
}

// RenameResult is the settled outcome of a rename.
type RenameResult struct {
	Items     int                     `json:"items"`
	Results   []zotero.ChunkResult    `json:"results"`
	Summary   zotero.BatchSummary     `json:"summary"`
	Conflicts []*zotero.ConflictError `json:"-"`
}

// Mutator deletes and renames tags.
type Mutator struct {
	remote    Remote
	snapshots Snapshots
	cache     cache.Store
	events    events.Publisher
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewMutator creates a mutator.
func NewMutator(remote Remote, snapshots Snapshots, store cache.Store, publisher events.Publisher, logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{remote: remote, snapshots: snapshots, cache: store, events: publisher, logger: logger}
}

// WithMetrics attaches a metrics collector.
func (m *Mutator) WithMetrics(c *metrics.Collector) *Mutator {
	m.metrics = c
	return m
}

// Delete removes up to zotero.TagDeleteLimit tags in one call guarded by req.Version.
// Extra tags are dropped with a warning. It returns the new library version.
func (m *Mutator) Delete(ctx context.Context, req DeleteRequest) (int, error) {
	lib := req.Library
	if len(req.Tags) == 0 {
		return 0, &zotero.ValidationError{Field: "tags", Err: errors.New("at least one tag is required")}
	}
	if req.Version < 0 {
		return 0, &zotero.ValidationError{Field: "version", Value: strconv.Itoa(req.Version), Err: errors.New("must not be negative")}
	}
	if req.Version == 0 {
		entry, ok := m.cache.Get(ctx, library.TagsKey(lib, req.APIKey))
		if !ok || entry.LastUpdated <= 0 {
			return 0, &zotero.ValidationError{Field: "version", Err: errors.New("library version is required when no tag index is cached")}
		}
		req.Version = entry.LastUpdated
	}

	tags := req.Tags
	if len(tags) > zotero.TagDeleteLimit {
		m.logger.Warn("Too many tags for one deletion, extra tags ignored",
			zap.String("library", lib.Path),
			zap.Int("requested", len(tags)),
			zap.Int("limit", zotero.TagDeleteLimit))
		tags = tags[:zotero.TagDeleteLimit]
	}

	version, err := m.remote.DeleteTags(ctx, req.APIKey, lib, tags, req.Version)
	if err != nil {
		m.logger.Error("Tag deletion failed", zap.String("library", lib.Path), zap.Strings("tags", tags), zap.Error(err))
		m.events.Publish(events.Event{
			Type:    events.TypeTagsDeleted,
			Library: lib.Path,
			Version: req.Version,
			Success: false,
			Error:   err.Error(),
			Data:    tags,
		})
		return 0, err
	}

	m.cache.InvalidateKind(ctx, cache.KindTags, lib.Path)
	m.metrics.ObserveTagDeletes(len(tags))
	m.events.Publish(events.Event{
		Type:    events.TypeTagsDeleted,
		Library: lib.Path,
		Version: version,
		Success: true,
		Data:    tags,
	})
	m.logger.Info("Tags deleted", zap.String("library", lib.Path), zap.Int("count", len(tags)), zap.Int("version", version))
	return version, nil
}

// Rename rewrites the tags of every regular item holding one of req.From so that it
// carries req.Into instead. Only items whose tags actually change are written.
// Write failures are reported per chunk and per item in the result.
func (m *Mutator) Rename(ctx context.Context, req RenameRequest) (RenameResult, error) {
	lib := req.Library
	if req.Into == "" {
		return RenameResult{}, &zotero.ValidationError{Field: "into", Err: errors.New("target tag is required")}
	}
	if len(req.From) == 0 {
		return RenameResult{}, &zotero.ValidationError{Field: "from", Err: errors.New("at least one source tag is required")}
	}

	snap, ok := m.snapshots.Snapshot(ctx, lib, req.APIKey)
	if !ok {
		return RenameResult{}, &zotero.ValidationError{Field: "library", Value: lib.Path, Err: fmt.Errorf("library has not been synced")}
	}

	reqs := RenameRequests(snap.Data, req.From, req.Into)
	if len(reqs) == 0 {
		return RenameResult{Results: []zotero.ChunkResult{}}, nil
	}

	results, err := m.remote.WriteItems(ctx, req.APIKey, lib, reqs, zotero.WriteOptions{})
	if err != nil {
		return RenameResult{}, err
	}

	var written []zotero.Entity
	for _, r := range results {
		if r.Outcome == nil {
			continue
		}
		idxs := make([]int, 0, len(r.Outcome.Successful))
		for idx := range r.Outcome.Successful {
			if i, err := strconv.Atoi(idx); err == nil {
				idxs = append(idxs, i)
			}
		}
		slices.Sort(idxs)
		for _, i := range idxs {
			written = append(written, r.Outcome.Successful[strconv.Itoa(i)])
		}
	}
	if len(written) > 0 {
		if _, err := m.snapshots.Apply(ctx, lib, req.APIKey, written); err != nil {
			m.logger.Warn("Failed to apply renamed items to snapshot", zap.String("library", lib.Path), zap.Error(err))
		}
	}
	m.cache.InvalidateKind(ctx, cache.KindTags, lib.Path)

	summary := zotero.Summarize(results)
	partial := zotero.PartialFailure(results)
	event := events.Event{
		Type:    events.TypeTagsModified,
		Library: lib.Path,
		Version: snap.LastUpdated,
		Success: partial == nil,
		Data:    map[string]any{"from": req.From, "into": req.Into, "summary": summary},
	}
	if partial != nil {
		event.Error = partial.Error()
	}
	m.events.Publish(event)

	m.logger.Info("Tags renamed",
		zap.String("library", lib.Path),
		zap.Strings("from", req.From),
		zap.String("into", req.Into),
		zap.Int("items", len(reqs)),
		zap.Int("success", summary.Success),
		zap.Int("failed", summary.Failed),
		zap.Int("rejected_chunks", summary.Rejected))

	return RenameResult{
		Items:     len(reqs),
		Results:   results,
		Summary:   summary,
		Conflicts: zotero.Conflicts(results),
	}, nil
}

// RenameRequests builds the minimal write batch turning every from tag into into.
func RenameRequests(entities []zotero.Entity, from []string, into string) []zotero.WriteRequest {
	var reqs []zotero.WriteRequest
	for _, e := range entities {
		if slices.Contains(skippedItemTypes, e.ItemType()) {
			continue
		}
		current := e.Tags()
		if !slices.ContainsFunc(current, func(t zotero.TagRecord) bool { return slices.Contains(from, t.Tag) }) {
			continue
		}

		next := slices.DeleteFunc(slices.Clone(current), func(t zotero.TagRecord) bool {
			return slices.Contains(from, t.Tag)
		})
		if !slices.Contains(next, zotero.TagRecord{Tag: into, Type: zotero.TagExplicit}) {
			next = append(next, zotero.TagRecord{Tag: into, Type: zotero.TagExplicit})
		}
		if sameTags(next, current) {
			continue
		}

		payload := make([]map[string]any, 0, len(next))
		for _, t := range next {
			payload = append(payload, map[string]any{"tag": t.Tag, "type": int(t.Type)})
		}
		reqs = append(reqs, zotero.WriteRequest{
			"key":     e.Key,
			"version": e.Version,
			"tags":    payload,
		})
	}
	return reqs
}

// sameTags compares two tag lists ignoring order.
func sameTags(a, b []zotero.TagRecord) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[zotero.TagRecord]int, len(a))
	for _, t := range a {
		counts[t]++
	}
	for _, t := range b {
		if counts[t] == 0 {
			return false
		}
		counts[t]--
	}
	return true
}
