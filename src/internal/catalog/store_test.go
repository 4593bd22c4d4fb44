package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreSeedsBuiltinTable(t *testing.T) {
	store := NewStore()

	assert.Contains(t, store.Services(), ServicePHP)
	assert.Contains(t, store.Services(), ServiceMySQL)
	assert.Empty(t, store.Applied(), "fresh store should be at the built-in baseline")

	desc, err := store.Descriptor(ServiceNginx, "1.26.1", "windows")
	require.NoError(t, err)
	assert.Equal(t, "nginx-1.26.1.zip", desc.Filename)
	assert.Equal(t, "nginx-1.26.1", desc.TaskKey())
}

func TestDescriptorUnknownPlatform(t *testing.T) {
	store := NewStore()

	_, err := store.Descriptor(ServicePHP, "8.3.8", "plan9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan9")
}

func TestPortAssignmentOffsetsPerVersion(t *testing.T) {
	store := NewStore()

	older, err := store.PortAssignment(ServiceMySQL, "5.7.44")
	require.NoError(t, err)
	newer, err := store.PortAssignment(ServiceMySQL, "8.0.37")
	require.NoError(t, err)

	assert.Equal(t, 3306, older.BasePort)
	assert.NotEqual(t, older.Nominal(), newer.Nominal(),
		"two versions of the same service must not share a nominal port")
}

func TestMergeCreatesAndUpdates(t *testing.T) {
	store := NewStore()

	snapshot := &RemoteCatalog{
		Version: "2.1",
		Services: map[string]RemoteService{
			ServicePHP: {
				Downloads: map[string]VersionEntry{
					"8.4.1": {
						Label:       "PHP 8.4",
						DefaultPort: 9000,
						Downloads: map[string]Download{
							"windows": {URL: "https://example.test/php-8.4.1.zip", Filename: "php-8.4.1.zip"},
						},
					},
					"8.3.8": {
						Downloads: map[string]Download{
							"windows": {URL: "https://example.test/php-8.3.8.zip", Filename: "php-8.3.8.zip"},
						},
					},
				},
			},
		},
	}

	store.Merge(snapshot)

	assert.Equal(t, "2.1", store.Applied())

	created, err := store.Descriptor(ServicePHP, "8.4.1", "windows")
	require.NoError(t, err)
	assert.Equal(t, "PHP 8.4", created.Label)
	assert.False(t, store.IsBuiltin(ServicePHP, "8.4.1"))

	updated, err := store.Descriptor(ServicePHP, "8.3.8", "windows")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/php-8.3.8.zip", updated.URL)
	assert.Equal(t, "PHP 8.3", updated.Label, "label must survive when remote omits it")
	assert.True(t, store.IsBuiltin(ServicePHP, "8.3.8"))
}

func TestMergeSkipsSentinelURLs(t *testing.T) {
	store := NewStore()

	store.Merge(&RemoteCatalog{
		Version: "2.2",
		Services: map[string]RemoteService{
			ServiceComposer: {
				Downloads: map[string]VersionEntry{
					"2.8.0": {
						Downloads: map[string]Download{
							"windows": {URL: URLManual},
							"linux":   {URL: URLEmbedded},
						},
					},
				},
			},
		},
	})

	_, ok := store.Entry(ServiceComposer, "2.8.0")
	assert.False(t, ok, "entry with only sentinel URLs must not be created")
	assert.Equal(t, "2.2", store.Applied())
}

func TestCachePersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog-cache.json")

	snapshot := &RemoteCatalog{
		Version:     "3.0",
		LastUpdated: "2026-08-01",
		Services: map[string]RemoteService{
			ServiceRedis: {
				Downloads: map[string]VersionEntry{
					"7.4.0": {
						Label:       "Redis 7.4",
						DefaultPort: 6379,
						Downloads: map[string]Download{
							"linux": {URL: "https://example.test/redis-7.4.0.tar.gz", Filename: "redis-7.4.0.tar.gz"},
						},
					},
				},
			},
		},
	}

	require.NoError(t, SaveCache(path, snapshot))

	loaded, ok, err := LoadCache(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3.0", loaded.Version)

	// A restart means a fresh store; re-merging the cached snapshot must
	// restore the applied entries without network access.
	store := NewStore()
	store.Merge(loaded)

	assert.Equal(t, "3.0", store.Applied())
	desc, err := store.Descriptor(ServiceRedis, "7.4.0", "linux")
	require.NoError(t, err)
	assert.Equal(t, "redis-7.4.0.tar.gz", desc.Filename)
}

func TestLoadCacheMissingFile(t *testing.T) {
	_, ok, err := LoadCache(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.False(t, ok)
}
