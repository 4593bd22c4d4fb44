package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const remoteDoc = `{
	"version": "2.5",
	"lastUpdated": "2026-08-15",
	"php": {
		"downloads": {
			"8.4.1": {
				"label": "PHP 8.4",
				"defaultPort": 9000,
				"windows": {"url": "https://example.test/php-8.4.1.zip", "filename": "php-8.4.1.zip"}
			},
			"8.3.8": {
				"windows": {"url": "https://example.test/php-8.3.8.zip", "filename": "php-8.3.8.zip"}
			}
		}
	},
	"composer": {
		"downloads": {
			"2.9.0": {
				"windows": {"url": "manual", "filename": ""}
			}
		}
	}
}`

func newCatalogServer(t *testing.T, doc string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	}))
	t.Cleanup(server.Close)
	t.Setenv(EnvCatalogURL, server.URL)
	return server
}

func TestCheckForUpdatesReportsDiffWithoutMutating(t *testing.T) {
	newCatalogServer(t, remoteDoc)

	store := NewStore()
	syncer := NewSyncer(store, filepath.Join(t.TempDir(), "cache.json"))

	diff, err := syncer.CheckForUpdates(context.Background())
	require.NoError(t, err)

	assert.True(t, diff.HasUpdate)
	assert.Equal(t, "2.5", diff.RemoteVersion)
	require.Len(t, diff.New, 1)
	assert.Equal(t, "8.4.1", diff.New[0].Version)
	require.Len(t, diff.Changed, 1)
	assert.Equal(t, "8.3.8", diff.Changed[0].Version)

	// Check alone must not touch the store.
	assert.Empty(t, store.Applied())
	_, ok := store.Entry(ServicePHP, "8.4.1")
	assert.False(t, ok)
}

func TestApplyUpdatesMergesAndPersists(t *testing.T) {
	newCatalogServer(t, remoteDoc)

	cachePath := filepath.Join(t.TempDir(), "cache.json")
	store := NewStore()
	syncer := NewSyncer(store, cachePath)

	_, err := syncer.CheckForUpdates(context.Background())
	require.NoError(t, err)
	require.NoError(t, syncer.ApplyUpdates())

	assert.Equal(t, "2.5", store.Applied())
	_, ok := store.Entry(ServicePHP, "8.4.1")
	assert.True(t, ok)
	_, ok = store.Entry(ServiceComposer, "2.9.0")
	assert.False(t, ok, "manual sentinel entry must be skipped")

	// Simulated restart with no network: a fresh store plus LoadCached must
	// retain the applied entries.
	restarted := NewStore()
	restartedSyncer := NewSyncer(restarted, cachePath)
	require.NoError(t, restartedSyncer.LoadCached())

	assert.Equal(t, "2.5", restarted.Applied())
	desc, err := restarted.Descriptor(ServicePHP, "8.4.1", "windows")
	require.NoError(t, err)
	assert.Equal(t, "php-8.4.1.zip", desc.Filename)
}

func TestApplyWithoutCheckFails(t *testing.T) {
	syncer := NewSyncer(NewStore(), filepath.Join(t.TempDir(), "cache.json"))
	assert.Error(t, syncer.ApplyUpdates())
}

func TestCheckForUpdatesNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()
	t.Setenv(EnvCatalogURL, server.URL)

	syncer := NewSyncer(NewStore(), filepath.Join(t.TempDir(), "cache.json"))
	_, err := syncer.CheckForUpdates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestCheckForUpdatesStaleEntries(t *testing.T) {
	// First apply a snapshot carrying an extra version, then diff against a
	// snapshot without it: the orphaned remote entry is reported stale.
	newCatalogServer(t, remoteDoc)

	store := NewStore()
	syncer := NewSyncer(store, filepath.Join(t.TempDir(), "cache.json"))
	_, err := syncer.CheckForUpdates(context.Background())
	require.NoError(t, err)
	require.NoError(t, syncer.ApplyUpdates())

	newCatalogServer(t, `{"version": "2.6", "lastUpdated": "2026-08-20"}`)
	diff, err := syncer.CheckForUpdates(context.Background())
	require.NoError(t, err)

	require.Len(t, diff.Stale, 1)
	assert.Equal(t, ServicePHP, diff.Stale[0].Service)
	assert.Equal(t, "8.4.1", diff.Stale[0].Version)
}
