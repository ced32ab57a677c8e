package library

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"zotero-sync/core/cache"
	"zotero-sync/core/reconcile"
	"zotero-sync/core/zotero"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestApp(t *testing.T) (*fiber.App, *fixture, *Service) {
	f := newFixture(t)
	svc := NewService(f.syncer, f.store, NewCitekeyRegistry(), "default-key", zap.NewNop())
	svc.WithSnapshots(newMemorySnapshots())

	app := fiber.New()
	feature := NewFeature(svc, zap.NewNop())
	require.True(t, feature.IsEnabled())
	require.NoError(t, feature.Load(app))
	return app, f, svc
}

func TestHandleSync(t *testing.T) {
	app, f, _ := setupTestApp(t)
	f.remote.On("FetchAll", mock.Anything, zotero.PageRequest{Endpoint: "users/111/items", APIKey: "caller", Since: 0}).
		Return(page(4, raw("A", 4)), nil)

	req := httptest.NewRequest("POST", "/libraries/users/111/sync", nil)
	req.Header.Set(HeaderAPIKey, "caller")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 4, body.LastUpdated)
	assert.Len(t, body.Data, 1)
}

func TestHandleSync_ResumesFromWatermark(t *testing.T) {
	app, f, _ := setupTestApp(t)
	f.store.Set(context.Background(), ItemsKey(f.lib, "default-key"), cache.Entry{Data: snapshotOf(t, 8), LastUpdated: 8})
	f.remote.On("FetchAll", mock.Anything, zotero.PageRequest{Endpoint: "users/111/items", APIKey: "default-key", Since: 8}).
		Return(page(8), nil)
	f.remote.On("FetchDeleted", mock.Anything, "default-key", f.lib, 8).Return(zotero.DeletionSet{}, 8, nil)

	resp, err := app.Test(httptest.NewRequest("POST", "/libraries/users/111/sync", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	f.remote.AssertExpectations(t)
}

func TestHandleSync_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		setup  func(f *fixture)
		status int
	}{
		{"BadLibraryType", "/libraries/teams/1/sync", "", nil, 400},
		{"BadLibraryID", "/libraries/users/abc/sync", "", nil, 400},
		{"NegativeSince", "/libraries/users/111/sync", `{"since":-3}`, nil, 400},
		{
			name: "Upstream",
			path: "/libraries/users/111/sync",
			body: `{"since":0}`,
			setup: func(f *fixture) {
				f.remote.On("FetchAll", mock.Anything, mock.Anything).Return(zotero.Page{}, &zotero.NetworkError{StatusCode: 500})
			},
			status: 502,
		},
		{
			name: "Forbidden",
			path: "/libraries/users/111/sync",
			body: `{"since":0}`,
			setup: func(f *fixture) {
				f.remote.On("FetchAll", mock.Anything, mock.Anything).Return(zotero.Page{}, &zotero.NetworkError{StatusCode: 403})
			},
			status: 403,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, f, _ := setupTestApp(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			req := httptest.NewRequest("POST", tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHandleItems(t *testing.T) {
	app, f, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/libraries/users/111/items", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	f.store.Set(context.Background(), ItemsKey(f.lib, "default-key"), cache.Entry{Data: snapshotOf(t, 3), LastUpdated: 3})
	resp, err = app.Test(httptest.NewRequest("GET", "/libraries/users/111/items", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(3), body["lastUpdated"])
}

func TestHandleForget(t *testing.T) {
	app, f, _ := setupTestApp(t)
	ctx := context.Background()
	f.store.Set(ctx, ItemsKey(f.lib, "default-key"), cache.Entry{Data: snapshotOf(t, 3)})
	f.store.Set(ctx, TagsKey(f.lib, "default-key"), cache.Entry{Data: "index"})

	resp, err := app.Test(httptest.NewRequest("DELETE", "/libraries/users/111", nil))
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)

	_, ok := f.store.Get(ctx, ItemsKey(f.lib, "default-key"))
	assert.False(t, ok)
	_, ok = f.store.Get(ctx, TagsKey(f.lib, "default-key"))
	assert.False(t, ok)
}

func TestHandleHistory_Disabled(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/libraries/users/111/history", nil))
	require.NoError(t, err)
	assert.Equal(t, 501, resp.StatusCode)
}

func TestHandleCitekeys(t *testing.T) {
	app, _, svc := setupTestApp(t)

	req := httptest.NewRequest("PUT", "/citekeys", strings.NewReader(`{"citekeys":["smith2020","doe2019",""]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body["count"])
	assert.True(t, svc.registry.Has("smith2020"))
}

func snapshotOf(t *testing.T, version int) reconcile.Snapshot {
	t.Helper()
	return reconcile.Snapshot{Data: decoded(t, raw("A", version)), LastUpdated: version}
}
