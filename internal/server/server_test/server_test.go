package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gctaylor/techsubs/internal/metrics"
	"github.com/gctaylor/techsubs/internal/overview"
	"github.com/gctaylor/techsubs/internal/server/testutils"
)

func newUpstream(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestScanBasicHandler(t *testing.T) {
	upstream := newUpstream(t, http.StatusOK, `{"data": {"subscribers": 1000, "accounts_active": 50}}`)
	env := testutils.NewTestServer(upstream.URL, t.TempDir())
	router := env.Server.Router()

	req := httptest.NewRequest(http.MethodPost, "/workers/scanner/python/basic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Equal(t, 1, env.Store.PointCount(metrics.Subscribers.Name))
	require.Equal(t, 1, env.Store.PointCount(metrics.AccountsActive.Name))
}

func TestScanBasicHandlerUnknownEntity(t *testing.T) {
	upstream := newUpstream(t, http.StatusOK, `{}`)
	env := testutils.NewTestServer(upstream.URL, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/workers/scanner/not-tracked/basic", nil)
	w := httptest.NewRecorder()
	env.Server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestScanBasicHandlerUpstreamFailure(t *testing.T) {
	upstream := newUpstream(t, http.StatusServiceUnavailable, "")
	env := testutils.NewTestServer(upstream.URL, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/workers/scanner/python/basic", nil)
	w := httptest.NewRecorder()
	env.Server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadGateway, w.Result().StatusCode)
}

func TestScanPostsHandler(t *testing.T) {
	upstream := newUpstream(t, http.StatusOK, `{"data": {"children": []}}`)
	env := testutils.NewTestServer(upstream.URL, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/workers/scanner/golang/posts", nil)
	w := httptest.NewRecorder()
	env.Server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Equal(t, 1, env.Store.PointCount(metrics.NewPosts.Name))
}

func TestEntitiesHandler(t *testing.T) {
	env := testutils.NewTestServer("http://unused", t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/workers/scanner/entities", nil)
	w := httptest.NewRecorder()
	env.Server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)

	var payload struct {
		Entities []string `json:"entities"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&payload))
	require.Equal(t, env.Catalog.Slugs(), payload.Entities)
}

func TestCategoriesHandler(t *testing.T) {
	env := testutils.NewTestServer("http://unused", t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	w := httptest.NewRecorder()
	env.Server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Contains(t, w.Body.String(), "databases")
}

func TestOverviewHandler(t *testing.T) {
	env := testutils.NewTestServer("http://unused", t.TempDir())

	// Seed one entity's points directly into the store.
	ctx := context.Background()
	now := time.Now().UTC()
	labels := metrics.EntityLabels("dev", "postgres")
	require.NoError(t, env.Store.WritePoint(ctx, metrics.Subscribers, 2000, labels, now.Add(-3*time.Hour)))
	require.NoError(t, env.Store.WritePoint(ctx, metrics.Subscribers, 2100, labels, now.Add(-1*time.Hour)))

	req := httptest.NewRequest(http.MethodGet, "/api/category/databases/overview", nil)
	w := httptest.NewRecorder()
	env.Server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)

	var doc overview.Document
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	require.Equal(t, doc.TotalRecordCount, len(doc.Records))

	var found bool
	for _, rec := range doc.Records {
		if rec.Subreddit == "postgres" {
			found = true
			require.Equal(t, int64(2100), rec.Subscribers.CurrentTotal)
			require.Equal(t, int64(100), rec.Subscribers.Growth24h)
		}
	}
	require.True(t, found)
}

func TestOverviewHandlerUnknownCategory(t *testing.T) {
	env := testutils.NewTestServer("http://unused", t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/category/no-such/overview", nil)
	w := httptest.NewRecorder()
	env.Server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestPublishOverviewHandler(t *testing.T) {
	snapshotDir := t.TempDir()
	env := testutils.NewTestServer("http://unused", snapshotDir)

	req := httptest.NewRequest(http.MethodPost, "/workers/overview/databases", nil)
	w := httptest.NewRecorder()
	env.Server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)

	blob, err := os.ReadFile(filepath.Join(snapshotDir, "dev", "api", "category", "databases", "overview"))
	require.NoError(t, err)

	var doc overview.Document
	require.NoError(t, json.Unmarshal(blob, &doc))
	require.Equal(t, doc.TotalRecordCount, len(doc.Records))
}
