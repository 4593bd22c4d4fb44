package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/devstack-cli/devstack/src/internal/logging"
)

// DefaultCatalogURL is the fixed remote location of the download catalog.
const DefaultCatalogURL = "https://releases.devstack.dev/catalog.json"

// EnvCatalogURL overrides the catalog endpoint, primarily for tests.
const EnvCatalogURL = "DEVSTACK_CATALOG_URL"

const fetchTimeout = 30 * time.Second

// ChangedEntry is one line of an update diff.
type ChangedEntry struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Detail  string `json:"detail,omitempty"`
}

// UpdateDiff describes what applying the fetched snapshot would change. It is
// computed without mutating the store.
type UpdateDiff struct {
	RemoteVersion  string         `json:"remoteVersion"`
	CurrentVersion string         `json:"currentVersion,omitempty"`
	HasUpdate      bool           `json:"hasUpdate"`
	New            []ChangedEntry `json:"new,omitempty"`
	Changed        []ChangedEntry `json:"changed,omitempty"`
	// Stale lists previously merged remote entries that the new snapshot no
	// longer carries and the built-in table never produced.
	Stale []ChangedEntry `json:"stale,omitempty"`
}

// Syncer performs remote catalog synchronization against a Store and owns the
// persisted cache file.
type Syncer struct {
	mu        sync.Mutex
	store     *Store
	cachePath string
	client    *http.Client
	fetched   *RemoteCatalog
	log       zerolog.Logger
}

// NewSyncer returns a syncer persisting applied snapshots at cachePath.
func NewSyncer(store *Store, cachePath string) *Syncer {
	return &Syncer{
		store:     store,
		cachePath: cachePath,
		client:    &http.Client{Timeout: fetchTimeout},
		log:       logging.Component("catalog"),
	}
}

// LoadCached re-merges the last persisted snapshot into the store. Called at
// startup before any other catalog consumer runs, so applied updates survive
// offline restarts.
func (s *Syncer) LoadCached() error {
	snapshot, ok, err := LoadCache(s.cachePath)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.store.Merge(snapshot)
	s.log.Debug().
		Str("version", snapshot.Version).
		Msg("re-applied cached catalog snapshot")
	return nil
}

// CheckForUpdates fetches the remote catalog and reports a structured diff
// against the current store without mutating it. The fetched snapshot is kept
// for a subsequent ApplyUpdates call.
func (s *Syncer) CheckForUpdates(ctx context.Context) (*UpdateDiff, error) {
	remote, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.fetched = remote
	s.mu.Unlock()

	diff := &UpdateDiff{
		RemoteVersion:  remote.Version,
		CurrentVersion: s.store.Applied(),
		HasUpdate:      IsVersionNewer(remote.Version, s.store.Applied()),
	}

	remoteKeys := make(map[string]map[string]bool)
	for service, svc := range remote.Services {
		remoteKeys[service] = make(map[string]bool)
		for version, remoteEntry := range svc.Downloads {
			remoteKeys[service][version] = true
			if allSentinel(remoteEntry.Downloads) {
				continue
			}

			current, exists := s.store.Entry(service, version)
			if !exists {
				diff.New = append(diff.New, ChangedEntry{Service: service, Version: version, Detail: remoteEntry.Label})
				continue
			}
			if detail := entryChange(current, &remoteEntry); detail != "" {
				diff.Changed = append(diff.Changed, ChangedEntry{Service: service, Version: version, Detail: detail})
			}
		}
	}

	for _, service := range s.store.Services() {
		for _, version := range s.store.Versions(service) {
			if s.store.IsBuiltin(service, version) {
				continue
			}
			if !remoteKeys[service][version] {
				diff.Stale = append(diff.Stale, ChangedEntry{Service: service, Version: version})
			}
		}
	}

	return diff, nil
}

// ApplyUpdates merges the previously fetched snapshot into the store,
// persists it, and moves the applied-version marker. CheckForUpdates must
// have succeeded first.
func (s *Syncer) ApplyUpdates() error {
	s.mu.Lock()
	snapshot := s.fetched
	s.mu.Unlock()

	if snapshot == nil {
		return fmt.Errorf("no fetched catalog snapshot to apply: run a check first")
	}

	s.store.Merge(snapshot)
	if err := SaveCache(s.cachePath, snapshot); err != nil {
		return err
	}
	s.log.Info().
		Str("version", snapshot.Version).
		Msg("applied catalog update")
	return nil
}

func (s *Syncer) fetch(ctx context.Context) (*RemoteCatalog, error) {
	url := DefaultCatalogURL
	if custom := os.Getenv(EnvCatalogURL); custom != "" {
		url = custom
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}

	var remote RemoteCatalog
	if err := json.Unmarshal(body, &remote); err != nil {
		return nil, fmt.Errorf("failed to parse catalog response: %w", err)
	}
	return &remote, nil
}

func entryChange(current *VersionEntry, remote *VersionEntry) string {
	for platform, dl := range remote.Downloads {
		if dl.URL == URLManual || dl.URL == URLEmbedded {
			continue
		}
		existing, ok := current.Downloads[platform]
		if !ok {
			return "new platform " + platform
		}
		if existing.URL != dl.URL {
			return "url changed for " + platform
		}
		if existing.Filename != dl.Filename {
			return "filename changed for " + platform
		}
	}
	if remote.Label != "" && remote.Label != current.Label {
		return "label changed"
	}
	if remote.DefaultPort != 0 && remote.DefaultPort != current.DefaultPort {
		return "default port changed"
	}
	return ""
}
