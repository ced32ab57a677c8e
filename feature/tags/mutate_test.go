package tags

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"zotero-sync/core/cache"
	"zotero-sync/core/events"
	"zotero-sync/core/reconcile"
	"zotero-sync/core/zotero"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) WriteItems(ctx context.Context, apiKey string, lib zotero.Library, reqs []zotero.WriteRequest, opts zotero.WriteOptions) ([]zotero.ChunkResult, error) {
	args := m.Called(ctx, apiKey, lib, reqs, opts)
	results, _ := args.Get(0).([]zotero.ChunkResult)
	return results, args.Error(1)
}

func (m *mockRemote) DeleteTags(ctx context.Context, apiKey string, lib zotero.Library, tags []string, version int) (int, error) {
	args := m.Called(ctx, apiKey, lib, tags, version)
	return args.Int(0), args.Error(1)
}

func (m *mockRemote) FetchAll(ctx context.Context, pr zotero.PageRequest) (zotero.Page, error) {
	args := m.Called(ctx, pr)
	return args.Get(0).(zotero.Page), args.Error(1)
}

type mockSnapshots struct {
	mock.Mock
}

func (m *mockSnapshots) Snapshot(ctx context.Context, lib zotero.Library, apiKey string) (reconcile.Snapshot, bool) {
	args := m.Called(ctx, lib, apiKey)
	return args.Get(0).(reconcile.Snapshot), args.Bool(1)
}

func (m *mockSnapshots) Apply(ctx context.Context, lib zotero.Library, apiKey string, written []zotero.Entity) (reconcile.Snapshot, error) {
	args := m.Called(ctx, lib, apiKey, written)
	return args.Get(0).(reconcile.Snapshot), args.Error(1)
}

type fixture struct {
	remote    *mockRemote
	snapshots *mockSnapshots
	store     *cache.MemoryStore
	events    []events.Event
	mutator   *Mutator
	lib       zotero.Library
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lib, err := zotero.ParseLibrary("groups/5")
	require.NoError(t, err)

	f := &fixture{
		remote:    new(mockRemote),
		snapshots: new(mockSnapshots),
		store:     cache.NewMemoryStore(0, nil),
		lib:       lib,
	}
	bus := events.NewBus(zap.NewNop())
	bus.Subscribe(func(e events.Event) { f.events = append(f.events, e) })
	f.mutator = NewMutator(f.remote, f.snapshots, f.store, bus, zap.NewNop())
	return f
}

func (f *fixture) seedTags(apiKey string) cache.Key {
	key := cache.Key{Kind: cache.KindTags, Library: f.lib.Path, Identity: cache.Identity(apiKey)}
	f.store.Set(context.Background(), key, cache.Entry{Data: Listing{}, LastUpdated: 20})
	return key
}

func entity(key string, version int, itemType string, tags ...zotero.TagRecord) zotero.Entity {
	list := make([]any, 0, len(tags))
	for _, t := range tags {
		list = append(list, map[string]any{"tag": t.Tag, "type": float64(t.Type)})
	}
	return zotero.Entity{Key: key, Version: version, Data: map[string]any{
		"key":      key,
		"version":  float64(version),
		"itemType": itemType,
		"tags":     list,
	}}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	key := f.seedTags("k")
	f.remote.On("DeleteTags", mock.Anything, "k", f.lib, []string{"a", "b"}, 20).Return(21, nil)

	version, err := f.mutator.Delete(context.Background(), DeleteRequest{APIKey: "k", Library: f.lib, Tags: []string{"a", "b"}, Version: 20})
	require.NoError(t, err)
	assert.Equal(t, 21, version)

	_, ok := f.store.Get(context.Background(), key)
	assert.False(t, ok)

	require.Len(t, f.events, 1)
	assert.Equal(t, events.TypeTagsDeleted, f.events[0].Type)
	assert.True(t, f.events[0].Success)
	assert.Equal(t, 21, f.events[0].Version)
	assert.Equal(t, "groups/5", f.events[0].Library)
}

// TestDelete_Truncates tests that only the first 50 tags reach the server.
func TestDelete_Truncates(t *testing.T) {
	f := newFixture(t)
	tags := make([]string, 60)
	for i := range tags {
		tags[i] = fmt.Sprintf("t%02d", i)
	}
	f.remote.On("DeleteTags", mock.Anything, "k", f.lib, tags[:50], 3).Return(4, nil)

	_, err := f.mutator.Delete(context.Background(), DeleteRequest{APIKey: "k", Library: f.lib, Tags: tags, Version: 3})
	require.NoError(t, err)
	f.remote.AssertExpectations(t)
}

func TestDelete_Conflict(t *testing.T) {
	f := newFixture(t)
	key := f.seedTags("k")
	conflict := &zotero.ConflictError{Version: 20, Message: "Library has been modified since specified version"}
	f.remote.On("DeleteTags", mock.Anything, "k", f.lib, []string{"a"}, 20).Return(0, conflict)

	_, err := f.mutator.Delete(context.Background(), DeleteRequest{APIKey: "k", Library: f.lib, Tags: []string{"a"}, Version: 20})
	var cErr *zotero.ConflictError
	require.True(t, errors.As(err, &cErr))

	_, ok := f.store.Get(context.Background(), key)
	assert.True(t, ok)
	require.Len(t, f.events, 1)
	assert.False(t, f.events[0].Success)
	assert.NotEmpty(t, f.events[0].Error)
}

func TestDelete_Empty(t *testing.T) {
	f := newFixture(t)
	_, err := f.mutator.Delete(context.Background(), DeleteRequest{APIKey: "k", Library: f.lib})

	var vErr *zotero.ValidationError
	assert.True(t, errors.As(err, &vErr))
	f.remote.AssertNotCalled(t, "DeleteTags", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestDelete_Version tests how a missing library version is resolved.
func TestDelete_Version(t *testing.T) {
	t.Run("FromCachedIndex", func(t *testing.T) {
		f := newFixture(t)
		f.seedTags("k")
		f.remote.On("DeleteTags", mock.Anything, "k", f.lib, []string{"a"}, 20).Return(21, nil)

		version, err := f.mutator.Delete(context.Background(), DeleteRequest{APIKey: "k", Library: f.lib, Tags: []string{"a"}})
		require.NoError(t, err)
		assert.Equal(t, 21, version)
		f.remote.AssertExpectations(t)
	})

	tests := []struct {
		name    string
		version int
	}{
		{"NoCachedIndex", 0},
		{"Negative", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.mutator.Delete(context.Background(), DeleteRequest{APIKey: "k", Library: f.lib, Tags: []string{"a"}, Version: tt.version})

			var vErr *zotero.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, "version", vErr.Field)
			f.remote.AssertNotCalled(t, "DeleteTags", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, f.events)
		})
	}
}

func TestRenameRequests(t *testing.T) {
	entities := []zotero.Entity{
		entity("A", 3, "book", zotero.TagRecord{Tag: "Housing"}, zotero.TagRecord{Tag: "urban"}),
		entity("B", 4, "journalArticle", zotero.TagRecord{Tag: "housing", Type: zotero.TagAutomatic}),
		entity("C", 5, "book", zotero.TagRecord{Tag: "housing"}),
		entity("D", 6, "note", zotero.TagRecord{Tag: "Housing"}),
		entity("E", 7, "attachment", zotero.TagRecord{Tag: "Housing"}),
		entity("F", 8, "book", zotero.TagRecord{Tag: "other"}),
		entity("G", 9, "book", zotero.TagRecord{Tag: "housing"}, zotero.TagRecord{Tag: "Housing"}),
		entity("H", 10, "book", zotero.TagRecord{Tag: "housing"}, zotero.TagRecord{Tag: "x"}),
	}

	reqs := RenameRequests(entities, []string{"Housing", "housing"}, "housing")
	require.Len(t, reqs, 3)

	assert.Equal(t, "A", reqs[0]["key"])
	assert.Equal(t, 3, reqs[0]["version"])
	assert.Equal(t, []map[string]any{
		{"tag": "urban", "type": 0},
		{"tag": "housing", "type": 0},
	}, reqs[0]["tags"])

	assert.Equal(t, "B", reqs[1]["key"])
	assert.Equal(t, []map[string]any{{"tag": "housing", "type": 0}}, reqs[1]["tags"])

	assert.Equal(t, "G", reqs[2]["key"])
	assert.Equal(t, []map[string]any{{"tag": "housing", "type": 0}}, reqs[2]["tags"])
}


func TestRename(t *testing.T) {
	f := newFixture(t)
	key := f.seedTags("k")
	snap := reconcile.Snapshot{
		Data: []zotero.Entity{
			entity("A", 3, "book", zotero.TagRecord{Tag: "old"}),
			entity("B", 4, "book", zotero.TagRecord{Tag: "keep"}),
		},
		LastUpdated: 4,
	}
	f.snapshots.On("Snapshot", mock.Anything, f.lib, "k").Return(snap, true)

	written := entity("A", 5, "book", zotero.TagRecord{Tag: "new"})
	outcome := &zotero.WriteOutcome{
		Successful: map[string]zotero.Entity{"0": written},
		Success:    map[string]string{"0": "A"},
	}
	f.remote.On("WriteItems", mock.Anything, "k", f.lib, mock.MatchedBy(func(reqs []zotero.WriteRequest) bool {
		return len(reqs) == 1 && reqs[0]["key"] == "A"
	}), zotero.WriteOptions{}).Return([]zotero.ChunkResult{{Index: 0, Status: zotero.ChunkFulfilled, Outcome: outcome}}, nil)
	f.snapshots.On("Apply", mock.Anything, f.lib, "k", []zotero.Entity{written}).Return(snap, nil)

	result, err := f.mutator.Rename(context.Background(), RenameRequest{APIKey: "k", Library: f.lib, From: []string{"old"}, Into: "new"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Items)
	assert.Equal(t, zotero.BatchSummary{Chunks: 1, Success: 1}, result.Summary)
	assert.Empty(t, result.Conflicts)

	f.snapshots.AssertExpectations(t)
	_, ok := f.store.Get(context.Background(), key)
	assert.False(t, ok)

	require.Len(t, f.events, 1)
	assert.Equal(t, events.TypeTagsModified, f.events[0].Type)
	assert.True(t, f.events[0].Success)
}

func TestRename_PartialFailure(t *testing.T) {
	f := newFixture(t)
	snap := reconcile.Snapshot{Data: []zotero.Entity{entity("A", 3, "book", zotero.TagRecord{Tag: "old"})}, LastUpdated: 3}
	f.snapshots.On("Snapshot", mock.Anything, f.lib, "k").Return(snap, true)
	f.remote.On("WriteItems", mock.Anything, "k", f.lib, mock.Anything, zotero.WriteOptions{}).Return([]zotero.ChunkResult{{
		Index:  0,
		Status: zotero.ChunkRejected,
		Err:    &zotero.NetworkError{StatusCode: http.StatusServiceUnavailable},
	}}, nil)

	result, err := f.mutator.Rename(context.Background(), RenameRequest{APIKey: "k", Library: f.lib, From: []string{"old"}, Into: "new"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Rejected)

	f.snapshots.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	require.Len(t, f.events, 1)
	assert.False(t, f.events[0].Success)
}

func TestRename_NothingToWrite(t *testing.T) {
	f := newFixture(t)
	snap := reconcile.Snapshot{Data: []zotero.Entity{entity("A", 3, "book", zotero.TagRecord{Tag: "keep"})}}
	f.snapshots.On("Snapshot", mock.Anything, f.lib, "k").Return(snap, true)

	result, err := f.mutator.Rename(context.Background(), RenameRequest{APIKey: "k", Library: f.lib, From: []string{"old"}, Into: "new"})
	require.NoError(t, err)
	assert.Zero(t, result.Items)
	f.remote.AssertNotCalled(t, "WriteItems", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.events)
}

func TestRename_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  RenameRequest
	}{
		{"MissingInto", RenameRequest{From: []string{"a"}}},
		{"MissingFrom", RenameRequest{Into: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.req.Library = f.lib
			_, err := f.mutator.Rename(context.Background(), tt.req)
			var vErr *zotero.ValidationError
			assert.True(t, errors.As(err, &vErr))
		})
	}

	t.Run("NotSynced", func(t *testing.T) {
		f := newFixture(t)
		f.snapshots.On("Snapshot", mock.Anything, f.lib, "k").Return(reconcile.Snapshot{}, false)
		_, err := f.mutator.Rename(context.Background(), RenameRequest{APIKey: "k", Library: f.lib, From: []string{"a"}, Into: "b"})
		var vErr *zotero.ValidationError
		assert.True(t, errors.As(err, &vErr))
	})
}
